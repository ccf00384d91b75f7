package scoring

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultScore  = 5
	maxActivities = 4
)

var digitRe = regexp.MustCompile(`(\d)`)

// ParseResult extracts a Result from the oracle's raw reply. Missing or
// unparseable fields degrade to defaults rather than failing: a reply
// with no usable SCORE line yields score 5 with Malformed set.
func ParseResult(raw string) *Result {
	res := &Result{Score: defaultScore, Raw: raw}
	scoreSeen := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "REASONING:"):
			res.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))

		case strings.HasPrefix(line, "SCORE:"):
			text := strings.TrimSpace(strings.TrimPrefix(line, "SCORE:"))
			if m := digitRe.FindString(text); m != "" {
				n, _ := strconv.Atoi(m)
				res.Score = clampScore(n)
				scoreSeen = true
			}

		case strings.HasPrefix(line, "TOPIC_CHANGE:"):
			text := strings.TrimSpace(strings.TrimPrefix(line, "TOPIC_CHANGE:"))
			res.TopicChange = strings.EqualFold(text, "yes") || strings.EqualFold(text, "true")

		case strings.HasPrefix(line, "ACTIVITIES:"):
			text := strings.TrimSpace(strings.TrimPrefix(line, "ACTIVITIES:"))
			for _, a := range strings.Split(text, ",") {
				if a = strings.TrimSpace(a); a != "" {
					res.Activities = append(res.Activities, a)
				}
			}
			if len(res.Activities) > maxActivities {
				res.Activities = res.Activities[:maxActivities]
			}
		}
	}

	res.Malformed = !scoreSeen
	return res
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 9 {
		return 9
	}
	return n
}
