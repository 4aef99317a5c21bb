package validate

import (
	"html"
	"regexp"
	"strings"
)

// allowedTags are the formatting tags kept when HTML is permitted.
var allowedTags = map[string]bool{
	"p": true, "br": true, "strong": true, "em": true, "u": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "a": true, "img": true,
}

var (
	tagPattern     = regexp.MustCompile(`(?s)<[^>]*>?`)
	tagNamePattern = regexp.MustCompile(`^</?\s*([A-Za-z0-9]+)`)
	eventAttr      = regexp.MustCompile(`(?i)\s+on\w+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsURI          = regexp.MustCompile(`(?i)javascript\s*:`)
)

// Sanitize strips null bytes, trims surrounding whitespace, and neutralises
// markup. With allowHTML false every special character is entity-encoded.
// With allowHTML true, tags outside the formatting allow-list are removed,
// and surviving tags lose on* event attributes and javascript: URIs.
func Sanitize(input string, allowHTML bool) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)

	if !allowHTML {
		return html.EscapeString(input)
	}

	return tagPattern.ReplaceAllStringFunc(input, func(tag string) string {
		m := tagNamePattern.FindStringSubmatch(tag)
		if m == nil || !allowedTags[strings.ToLower(m[1])] {
			return ""
		}
		tag = eventAttr.ReplaceAllString(tag, "")
		tag = jsURI.ReplaceAllString(tag, "")
		return tag
	})
}
