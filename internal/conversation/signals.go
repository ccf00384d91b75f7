package conversation

import "strings"

// defaultBoredomKeywords are phrases that suggest the room wants a new
// topic. Config can extend the list.
var defaultBoredomKeywords = []string{
	"bored",
	"boring",
	"new topic",
	"change the subject",
	"something else",
	"anyway",
}

// TopicSignals are hints passed to the scoring oracle; the oracle owns
// the actual topic-change call, these only bias it.
type TopicSignals struct {
	// BoredomKeyword is true when the current message contains a
	// boredom phrase.
	BoredomKeyword bool
	// ShortRun is true when the last 3 messages are all under 10 words,
	// a pattern of a conversation running out of steam.
	ShortRun bool
}

// BoredomSignals derives topic-change hints from the window and the
// current message. extraKeywords extends the built-in phrase list.
func BoredomSignals(w Window, current Message, extraKeywords []string) TopicSignals {
	var sig TopicSignals

	text := strings.ToLower(current.Content)
	for _, kw := range defaultBoredomKeywords {
		if strings.Contains(text, kw) {
			sig.BoredomKeyword = true
			break
		}
	}
	if !sig.BoredomKeyword {
		for _, kw := range extraKeywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				sig.BoredomKeyword = true
				break
			}
		}
	}

	tail := w.Tail(3)
	if len(tail) == 3 {
		sig.ShortRun = true
		for _, m := range tail {
			if len(strings.Fields(m.Content)) >= 10 {
				sig.ShortRun = false
				break
			}
		}
	}
	return sig
}
