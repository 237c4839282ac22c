package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern matches markdown code fences with an optional language tag.
// Captures: (1) language, (2) fenced content.
var fencePattern = regexp.MustCompile(`(?s)` + "```" + `(\w*)\s*\n(.+?)\n` + "```")

// ExtractJSON pulls a JSON document out of a model response. Models wrap
// their output unpredictably, so extraction tries, in order:
//  1. fenced blocks tagged json or untagged
//  2. the first bare {...} or [...] found by bracket matching
func ExtractJSON(response string) (string, error) {
	if doc, ok := extractFenced(response); ok {
		return doc, nil
	}
	if doc, ok := extractBare(response); ok {
		return doc, nil
	}
	return "", fmt.Errorf("no valid JSON found in response")
}

// ExtractJSONAs extracts JSON from response and unmarshals it into T.
func ExtractJSONAs[T any](response string) (T, error) {
	var result T
	doc, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}
	return result, nil
}

func extractFenced(response string) (string, bool) {
	for _, match := range fencePattern.FindAllStringSubmatch(response, -1) {
		if len(match) < 3 {
			continue
		}
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(match[2])
		if !strings.HasPrefix(content, "{") && !strings.HasPrefix(content, "[") {
			continue
		}
		if json.Valid([]byte(content)) {
			return content, true
		}
	}
	return "", false
}

func extractBare(response string) (string, bool) {
	objAt := strings.Index(response, "{")
	arrAt := strings.Index(response, "[")

	start, closer := -1, byte('}')
	if objAt >= 0 && (arrAt < 0 || objAt < arrAt) {
		start, closer = objAt, '}'
	} else if arrAt >= 0 {
		start, closer = arrAt, ']'
	}
	if start < 0 {
		return "", false
	}

	doc := matchBracket(response[start:], closer)
	if doc != "" && json.Valid([]byte(doc)) {
		return doc, true
	}
	return "", false
}

// matchBracket returns the prefix of s up to the bracket closing s[0],
// tracking nesting and skipping over string literals and escapes. Returns
// empty when the brackets never balance.
func matchBracket(s string, closer byte) string {
	if len(s) == 0 {
		return ""
	}

	opener := s[0]
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
