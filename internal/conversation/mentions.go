package conversation

import "regexp"

// mentionRe matches platform mention tokens: <@123> or <@!123>.
var mentionRe = regexp.MustCompile(`<@!?(\d+)>`)

// ExtractMentions returns the user IDs mentioned in text, in order of
// appearance, duplicates included.
func ExtractMentions(text string) []string {
	var ids []string
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

// MentionTokens maps each mention token in text to the user ID it
// references. Later duplicates overwrite earlier ones, which is fine:
// the token strings are identical.
func MentionTokens(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		out[m[0]] = m[1]
	}
	return out
}

// StripMentions removes all mention tokens from text. Used when matching
// plain-text names so "<@123>" cannot shadow a name substring.
func StripMentions(text string) string {
	return mentionRe.ReplaceAllString(text, "")
}
