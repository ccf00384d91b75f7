package scoring

import (
	"fmt"
	"strings"

	"github.com/murmurhq/murmur/internal/conversation"
)

// promptWindowSize bounds how many recent messages the prompt includes.
const promptWindowSize = 5

// BuildPrompt renders the turn-taking prompt for a request.
func BuildPrompt(req Request) string {
	var recent strings.Builder
	for _, m := range req.Window.Tail(promptWindowSize) {
		fmt.Fprintf(&recent, "%s: %s\n", m.AuthorName, m.Content)
	}

	skills := "General conversation"
	if len(req.Skills) > 0 {
		skills = strings.Join(req.Skills, ", ")
	}
	peers := orNone(req.PeerSummary)
	humans := orNone(req.HumanSummary)

	recentlyActive := "NO"
	if req.Flow.MessagesSinceSelf <= 1 {
		recentlyActive = "YES"
	}

	var topicHints strings.Builder
	if req.Topic.BoredomKeyword {
		topicHints.WriteString("• The current message hints at boredom with the topic\n")
	}
	if req.Topic.ShortRun {
		topicHints.WriteString("• The last few messages are all very short; the topic may be exhausted\n")
	}

	return fmt.Sprintf(`You are %s in a Discord conversation.

PERSONALITY: %s
SKILLS: %s

CONTEXT:
Server: %s | Channel: #%s
Bots: %s
Humans: %s

RECENT MESSAGES:
%s
CURRENT: %s: %s

KEY FACTORS:
%s%s
SCORING (0-9):
9: Direct @mention of me
7-8: Topic matches my skills, I haven't responded recently
4-6: Relevant but not urgent
1-3: Low relevance or I just responded
0: Someone else @mentioned, or I'm irrelevant

CRITICAL: If I responded in last 1-2 messages, reduce score by 3-4 points.

Respond exactly as:
REASONING: [Brief analysis]
SCORE: [0-9]
TOPIC_CHANGE: [yes or no]
ACTIVITIES: [4 activities, mundane to surreal]`,
		req.BotName,
		req.Personality,
		skills,
		req.ServerName, req.ChannelName,
		peers,
		humans,
		recent.String(),
		req.Current.AuthorName, req.Current.Content,
		keyFactors(req, recentlyActive),
		topicHints.String(),
	)
}

func keyFactors(req Request, recentlyActive string) string {
	mentioned := "False"
	if req.Addressing == conversation.Me {
		mentioned = "True"
	}
	return fmt.Sprintf(
		"• Direct mention: %s\n• Who's addressed: %s\n• My last response: %d messages ago\n• Recently active: %s\n",
		mentioned, req.Addressing, req.Flow.MessagesSinceSelf, recentlyActive)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
