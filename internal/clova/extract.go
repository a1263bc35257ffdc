package clova

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencePattern   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	bracePattern   = regexp.MustCompile(`(?s)\{.*\}`)
	bracketPattern = regexp.MustCompile(`(?s)\[.*\]`)
)

// ExtractJSON digs a JSON value out of a model reply. Models wrap JSON in
// prose or markdown fences more often than not, so this tries the raw
// reply, then a code fence, then the outermost brace or bracket pair.
func ExtractJSON(reply string) []byte {
	trimmed := strings.TrimSpace(reply)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed)
	}
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		if candidate := strings.TrimSpace(m[1]); json.Valid([]byte(candidate)) {
			return []byte(candidate)
		}
	}
	if m := bracePattern.FindString(trimmed); m != "" {
		return []byte(m)
	}
	if m := bracketPattern.FindString(trimmed); m != "" {
		return []byte(m)
	}
	return []byte(trimmed)
}
