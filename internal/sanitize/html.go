package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML and surrounding whitespace.
// Use for every free-text field a user can submit: topics, notes, feedback.
func Text(input string) string {
	return strings.TrimSpace(StrictPolicy.Sanitize(input))
}

// TextSlice sanitizes each string in a slice.
func TextSlice(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	sanitized := make([]string, len(inputs))
	for i, input := range inputs {
		sanitized[i] = Text(input)
	}
	return sanitized
}
