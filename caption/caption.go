// Package caption builds the social caption of a post.
package caption

import (
	"strings"
	"unicode/utf8"
)

// MaxLength is the Instagram caption limit in characters.
const MaxLength = 2200

// MaxHashtags is the Instagram limit on hashtags per post.
const MaxHashtags = 30

// Compose joins title, excerpt, footer and hashtags with blank lines,
// leaving out empty sections. When the result is too long the excerpt is
// shortened first.
func Compose(title, excerpt, footer string, hashtags []string) string {
	title = strings.TrimSpace(title)
	excerpt = strings.TrimSpace(excerpt)
	footer = strings.TrimSpace(footer)
	tags := Hashtags(hashtags)

	out := join(title, excerpt, footer, tags)
	if over := utf8.RuneCountInString(out) - MaxLength; over > 0 {
		excerpt = truncate(excerpt, utf8.RuneCountInString(excerpt)-over)
		out = join(title, excerpt, footer, tags)
	}
	if utf8.RuneCountInString(out) > MaxLength {
		out = truncate(out, MaxLength)
	}
	return out
}

func join(sections ...string) string {
	var parts []string
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Hashtags renders tags as "#a #b", adding the leading # where missing and
// dropping duplicates and anything past MaxHashtags.
func Hashtags(tags []string) string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimLeft(strings.TrimSpace(t), "#")
		if t == "" || strings.ContainsAny(t, " \t\n") {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, "#"+t)
		if len(out) == MaxHashtags {
			break
		}
	}
	return strings.Join(out, " ")
}

// truncate cuts s to at most n runes, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
