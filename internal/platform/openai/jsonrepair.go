package openai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DecodeLoose turns model output into a map, repairing the common ways models
// mangle JSON. Stages, in order:
//
//  1. direct parse
//  2. strip markdown code fences and reparse
//  3. brace-match the largest top-level JSON object and reparse
//  4. strip trailing commas and reparse
//
// If every stage fails the raw output is preserved under "raw_output" with an
// "error" key, so callers branch on the sentinel key rather than an error.
func DecodeLoose(raw string) map[string]any {
	candidates := []string{raw}

	stripped := stripFences(raw)
	if stripped != raw {
		candidates = append(candidates, stripped)
	}
	if obj := largestJSONObject(stripped); obj != "" && obj != stripped {
		candidates = append(candidates, obj)
	}
	for _, c := range candidates {
		if m, ok := tryParse(c); ok {
			return m
		}
		if m, ok := tryParse(stripTrailingCommas(c)); ok {
			return m
		}
	}

	return map[string]any{
		"error":      "invalid_json",
		"raw_output": raw,
	}
}

func tryParse(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	if m == nil {
		return nil, false
	}
	return m, true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || isFenceTag(first) {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// largestJSONObject returns the longest balanced {...} span, skipping braces
// inside string literals.
func largestJSONObject(s string) string {
	best := ""
	depth := 0
	start := -1
	inStr := false
	escaped := false
	for i, r := range s {
		if inStr {
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inStr = false
			}
			continue
		}
		switch r {
		case '"':
			inStr = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					span := s[start : i+1]
					if len(span) > len(best) {
						best = span
					}
				}
			}
		}
	}
	return best
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}
