// Package fingerprint derives short deterministic cache keys from
// conversational context and from freeform speech text.
package fingerprint

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Message is the role/content pair the chat fingerprint is computed over.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrimWindow is the number of trailing messages that participate in the
// chat fingerprint. Older turns do not affect the cache key.
const TrimWindow = 4

// standaloneMaxLen bounds how long a message can be and still be treated
// as a standalone question.
const standaloneMaxLen = 150

// contextualIndicators are substrings that mark a message as referring
// back to earlier turns. A message containing any of them is never keyed
// standalone.
var contextualIndicators = []string{
	"before", "previous", "earlier", "you said", "you mentioned",
	"that", "it", "this", "them", "they", "what about",
	"continue", "more about", "tell me more", "and what",
	"also", "another", "next",
}

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Trim returns the last TrimWindow messages of history.
func Trim(history []Message) []Message {
	if len(history) <= TrimWindow {
		return history
	}
	return history[len(history)-TrimWindow:]
}

// Chat computes the cache key for a conversation window. The window is
// trimmed to TrimWindow messages first, so callers may pass full history.
//
// A trailing user message that does not reference prior context is keyed
// on its own under the "standalone_" namespace, which lets generic
// questions hit the cache regardless of surrounding conversation.
// Everything else is keyed on the whole window under "contextual_".
func Chat(history []Message) string {
	window := Trim(history)
	if len(window) == 0 {
		return "contextual_empty"
	}

	last := window[len(window)-1]
	if len(window) <= 2 && last.Role == "user" && IsStandalone(last.Content) {
		return "standalone_" + hash(last.Content)
	}

	parts := make([]string, 0, len(window))
	for _, m := range window {
		parts = append(parts, m.Role+":"+m.Content)
	}
	return "contextual_" + hash(strings.Join(parts, "|"))
}

// Speech computes the cache key for text-to-speech input. Input is
// normalized first so that case and punctuation variants of the same
// utterance share an entry.
func Speech(text string) string {
	return "speech_" + hash(Normalize(text))
}

// IsStandalone reports whether content reads as a self-contained question
// with no back-reference to earlier turns.
func IsStandalone(content string) bool {
	if len(content) >= standaloneMaxLen {
		return false
	}
	lower := strings.ToLower(content)
	for _, prefix := range []string{"and ", "or ", "but "} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	for _, indicator := range contextualIndicators {
		if strings.Contains(lower, indicator) {
			return false
		}
	}
	return true
}

// Normalize lowercases, strips punctuation and collapses whitespace.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = nonWord.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// hash is a 64-bit murmur3 digest in base 36. Not cryptographic; a
// collision returns a wrong cached value, which the cache accepts as a
// documented tradeoff.
func hash(s string) string {
	normalized := whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
	return strconv.FormatUint(murmur3.Sum64([]byte(normalized)), 36)
}
