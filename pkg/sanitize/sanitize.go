// Package sanitize strips a denylist of script-injection patterns from
// arbitrary nested values, typically decoded JSON request bodies.
//
// This is defense-in-depth filtering, not context-aware HTML/JS parsing: it
// reduces injection risk but does not eliminate it, and output intended for
// HTML rendering still needs proper escaping at the template layer.
package sanitize

import (
	"regexp"
)

var (
	scriptTagRe    = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptOpenRe   = regexp.MustCompile(`(?i)<script\b[^>]*>`)
	scriptFragRe   = regexp.MustCompile(`(?i)<script`)
	javascriptRe   = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// String removes <script> blocks, javascript: URI prefixes and inline event
// handler assignments from s. Benign content passes through unchanged and
// the function is idempotent.
//
// Removal runs to a fixpoint: stripping a pattern can splice surrounding
// text into a new match (`<scr<script>ipt>`), so a single pass is not enough.
func String(s string) string {
	for {
		next := stripOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func stripOnce(s string) string {
	s = scriptTagRe.ReplaceAllString(s, "")
	// Unclosed script tags survive the paired-tag pass
	s = scriptOpenRe.ReplaceAllString(s, "")
	// Tag fragments cut off before any ">" survive both tag passes
	s = scriptFragRe.ReplaceAllString(s, "")
	s = javascriptRe.ReplaceAllString(s, "")
	s = eventHandlerRe.ReplaceAllString(s, "")
	return s
}

// Clean recursively sanitizes a decoded JSON value. Strings are filtered,
// slices element-wise, maps over both keys and values, and every other kind
// passes through unchanged. The result has the same shape as the input.
func Clean(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return String(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = Clean(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[String(k)] = Clean(item)
		}
		return out
	default:
		return v
	}
}
