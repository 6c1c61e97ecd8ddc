package fingerprint

import (
	"strings"
	"testing"
)

func TestChatDeterminism(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "Tell me a story about Football, and what happened next"},
		{Role: "assistant", Content: "Football is BMO's best friend!"},
		{Role: "user", Content: "And what about that adventure you mentioned?"},
	}

	a := Chat(history)
	b := Chat([]Message{
		{Role: "user", Content: "Tell me a story about Football, and what happened next"},
		{Role: "assistant", Content: "Football is BMO's best friend!"},
		{Role: "user", Content: "And what about that adventure you mentioned?"},
	})

	if a != b {
		t.Fatalf("same window produced different fingerprints: %q vs %q", a, b)
	}
}

func TestChatDifferentContentDiffers(t *testing.T) {
	a := Chat([]Message{{Role: "user", Content: "What is your favorite game?"}})
	b := Chat([]Message{{Role: "user", Content: "What is your favorite song?"}})
	if a == b {
		t.Fatalf("different questions collided: %q", a)
	}
}

func TestChatStandaloneNamespace(t *testing.T) {
	standalone := Chat([]Message{
		{Role: "user", Content: "What is your name?"},
	})
	if !strings.HasPrefix(standalone, "standalone_") {
		t.Fatalf("expected standalone namespace, got %q", standalone)
	}

	contextual := Chat([]Message{
		{Role: "user", Content: "And what about that?"},
	})
	if !strings.HasPrefix(contextual, "contextual_") {
		t.Fatalf("expected contextual namespace, got %q", contextual)
	}
}

func TestChatContextualWhenWindowIsLong(t *testing.T) {
	// A standalone-looking question still keys contextually once the
	// window holds more than one exchange.
	key := Chat([]Message{
		{Role: "user", Content: "Hello!"},
		{Role: "assistant", Content: "Hi friend!"},
		{Role: "user", Content: "What is your name?"},
	})
	if !strings.HasPrefix(key, "contextual_") {
		t.Fatalf("expected contextual namespace for long window, got %q", key)
	}
}

func TestChatIgnoresOldTurns(t *testing.T) {
	long := []Message{
		{Role: "user", Content: "something ancient nobody remembers"},
		{Role: "user", Content: "turn one of the window"},
		{Role: "assistant", Content: "turn two"},
		{Role: "user", Content: "and what came after that?"},
		{Role: "assistant", Content: "turn four"},
	}
	short := long[1:]

	if Chat(long) != Chat(short) {
		t.Fatalf("messages outside the trim window affected the fingerprint")
	}
}

func TestIsStandalone(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"What is your name?", true},
		{"And what about that?", false},
		{"Tell me more about Football", false},
		{"You said you were a hero before", false},
		{strings.Repeat("x", 200), false},
		{"but why?", false},
	}
	for _, tc := range cases {
		if got := IsStandalone(tc.content); got != tc.want {
			t.Errorf("IsStandalone(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestSpeechNormalization(t *testing.T) {
	if Speech("Hello!") != Speech("hello") {
		t.Fatalf("punctuation/case variants should share a fingerprint")
	}
	if Speech("  BMO   loves you!  ") != Speech("bmo loves you") {
		t.Fatalf("whitespace variants should share a fingerprint")
	}
	if Speech("hello friend") == Speech("goodbye friend") {
		t.Fatalf("different utterances collided")
	}
	if !strings.HasPrefix(Speech("hi"), "speech_") {
		t.Fatalf("speech fingerprints must carry the speech namespace")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  Hello,   World!! ")
	if got != "hello world" {
		t.Fatalf("Normalize = %q, want %q", got, "hello world")
	}
}
