package conversation

import (
	"testing"
	"time"
)

func msg(author, content string, self bool, at time.Time) Message {
	return Message{AuthorID: author, AuthorName: author, IsSelf: self, Content: content, Timestamp: at}
}

func TestAnalyzeFlowSelfSpoke(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	w := Window{
		msg("u1", "one", false, base),
		msg("u2", "two", false, base.Add(10*time.Second)),
		msg("bot", "three", true, base.Add(20*time.Second)),
		msg("u1", "four", false, base.Add(30*time.Second)),
		msg("u2", "five", false, base.Add(40*time.Second)),
	}
	now := base.Add(50 * time.Second)

	got := AnalyzeFlow(w, now)
	if got.MessagesSinceSelf != 2 {
		t.Errorf("MessagesSinceSelf = %d, want 2", got.MessagesSinceSelf)
	}
	if got.SecondsSinceSelf == nil || *got.SecondsSinceSelf != 30 {
		t.Errorf("SecondsSinceSelf = %v, want 30", got.SecondsSinceSelf)
	}
}

func TestAnalyzeFlowSelfNeverSpoke(t *testing.T) {
	base := time.Now()
	w := Window{
		msg("u1", "a", false, base),
		msg("u2", "b", false, base),
	}
	got := AnalyzeFlow(w, base)
	if got.MessagesSinceSelf != 2 {
		t.Errorf("MessagesSinceSelf = %d, want window length 2", got.MessagesSinceSelf)
	}
	if got.SecondsSinceSelf != nil {
		t.Errorf("SecondsSinceSelf = %v, want nil", *got.SecondsSinceSelf)
	}
}

func TestAnalyzeFlowZeroTimestampDegrades(t *testing.T) {
	w := Window{msg("bot", "hi", true, time.Time{})}
	got := AnalyzeFlow(w, time.Now())
	if got.MessagesSinceSelf != 0 {
		t.Errorf("MessagesSinceSelf = %d, want 0", got.MessagesSinceSelf)
	}
	if got.SecondsSinceSelf != nil {
		t.Error("SecondsSinceSelf should be nil for zero timestamp")
	}
}

func TestAnalyzeFlowActiveConversation(t *testing.T) {
	base := time.Now()
	cases := []struct {
		name    string
		authors []string
		want    bool
	}{
		{"two authors back and forth", []string{"a", "b", "a"}, true},
		{"three distinct authors", []string{"a", "b", "c"}, false},
		{"single message", []string{"a"}, false},
		{"two messages one author", []string{"a", "a"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var w Window
			for _, a := range tc.authors {
				w = append(w, msg(a, "x", false, base))
			}
			if got := AnalyzeFlow(w, base).ActiveConversation; got != tc.want {
				t.Errorf("ActiveConversation = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnalyzeAddressingPrecedence(t *testing.T) {
	selfNames := []string{"assistant", "assy"}
	humans := []string{"alice", "bob"}

	cases := []struct {
		name    string
		content string
		want    Target
	}{
		{"mentions self", "hey <@42>, thoughts?", Me},
		{"mentions other", "hey <@99>, thoughts?", SomeoneElse},
		{"mention beats self name text", "hey <@99>, forget Assistant for a sec", SomeoneElse},
		{"self name plain text", "what does assistant think", Me},
		{"self nickname", "Assy, you around?", Me},
		{"self name beats human name", "assistant, tell alice", Me},
		{"human name plain text", "alice should answer this", SomeoneElse},
		{"nobody", "the weather is nice today", Nobody},
		{"nickname mention form ignored as self", "ping <@!42> now", Me},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AnalyzeAddressing(msg("u1", tc.content, false, time.Time{}), "42", selfNames, humans)
			if got != tc.want {
				t.Errorf("AnalyzeAddressing(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestExtractMentions(t *testing.T) {
	ids := ExtractMentions("a <@1> b <@!2> c <@1> <#3> <@notanid>")
	want := []string{"1", "2", "1"}
	if len(ids) != len(want) {
		t.Fatalf("ExtractMentions = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ExtractMentions = %v, want %v", ids, want)
		}
	}
}

func TestMentionTokens(t *testing.T) {
	got := MentionTokens("hi <@1> and <@!2>")
	if got["<@1>"] != "1" || got["<@!2>"] != "2" {
		t.Errorf("MentionTokens = %v", got)
	}
}

func TestStripMentions(t *testing.T) {
	if got := StripMentions("hey <@123> there"); got != "hey  there" {
		t.Errorf("StripMentions = %q", got)
	}
}

func TestBoredomSignals(t *testing.T) {
	base := time.Now()
	longMsg := "this is a message that clearly has well over ten words in it for sure"

	w3short := Window{
		msg("a", "ok", false, base),
		msg("b", "yeah", false, base),
		msg("a", "hm", false, base),
	}

	cases := []struct {
		name    string
		window  Window
		current string
		extra   []string
		want    TopicSignals
	}{
		{"boredom keyword", nil, "this is boring", nil, TopicSignals{BoredomKeyword: true}},
		{"configured keyword", nil, "feeling meh today", []string{"meh"}, TopicSignals{BoredomKeyword: true}},
		{"short run", w3short, "hi", nil, TopicSignals{ShortRun: true}},
		{"long message breaks run", Window{w3short[0], w3short[1], msg("a", longMsg, false, base)}, "hi", nil, TopicSignals{}},
		{"too few messages", w3short[:2], "hi", nil, TopicSignals{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BoredomSignals(tc.window, msg("u", tc.current, false, base), tc.extra)
			if got != tc.want {
				t.Errorf("BoredomSignals = %+v, want %+v", got, tc.want)
			}
		})
	}
}
