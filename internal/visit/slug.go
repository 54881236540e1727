package visit

import (
	"regexp"
	"strings"
)

const maxSlugLen = 50

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug normalizes a log message into an event name: lowercased, runs of
// characters outside [a-z0-9] collapsed to one underscore, trimmed, and
// truncated to 50 characters.
func Slug(s string) string {
	s = strings.ToLower(s)
	s = slugRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	return s
}
