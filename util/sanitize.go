package util

import (
	"regexp"
	"strings"
)

// Characters that are not valid in Windows filenames (the strictest target),
// plus the path separators.
const invalidFilenameChars = `<>:"|?*/\`

var whitespaceRe = regexp.MustCompile(`\s+`)

// SanitizeFilename converts an arbitrary string (e.g. a course name scraped
// from the LMS) into a safe file or directory name.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(invalidFilenameChars, r):
			b.WriteRune('_')
		case r < 32:
			// Drop control characters entirely.
		default:
			b.WriteRune(r)
		}
	}
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(b.String()), " ")
}
