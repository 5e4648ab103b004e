package engine

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips every tag. bluemonday policies are safe for concurrent use.
var textPolicy = bluemonday.StrictPolicy()

// NormalizeText cleans free-text input before it reaches the household:
// markup is removed, entities are decoded back to plain characters and
// runs of whitespace collapse to a single space.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	clean := html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(clean), " ")
}
