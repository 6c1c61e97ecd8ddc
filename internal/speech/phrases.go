package speech

// CommonPhrases is the fixed set the preload endpoint warms at startup.
// These are the lines the UI speaks most: greetings and fillers BMO
// says before the first model response arrives.
var CommonPhrases = []string{
	"Hello! BMO is so happy to see you!",
	"Hi friend! Want to play video games?",
	"BMO is thinking...",
	"Oh! That is a good question!",
	"Yay! BMO loves talking with you!",
	"Hmm, let BMO think about that.",
	"Okay! BMO is ready!",
	"Goodbye friend! Come back soon!",
}
