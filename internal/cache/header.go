package cache

import (
	"regexp"
	"strings"
)

// headerPattern matches one <!-- key: value --> comment at the start of the
// remaining text, with the whitespace around it.
var headerPattern = regexp.MustCompile(`^\s*<!--\s*(.*?)\s*:\s*(.*?)\s*-->\s*`)

// SplitHeaders scans the contiguous run of header comments at the start of
// text. It returns the collected headers and the offset where the body
// begins. The scan stops at the first text that is not a header comment or
// at a comment with an empty key or value; a later duplicate key overwrites
// an earlier one. Neither a key nor a value spans the end of a comment.
// Without any header the offset is zero.
func SplitHeaders(text string) (map[string]string, int) {
	headers := make(map[string]string)
	end := 0

	for {
		m := headerPattern.FindStringSubmatchIndex(text[end:])
		if m == nil {
			break
		}
		key := text[end+m[2] : end+m[3]]
		value := text[end+m[4] : end+m[5]]
		if !validHeaderPart(key) || !validHeaderPart(value) {
			break
		}
		headers[key] = value
		end += m[1]
	}

	return headers, end
}

func validHeaderPart(s string) bool {
	return strings.TrimSpace(s) != "" && !strings.Contains(s, "-->")
}
