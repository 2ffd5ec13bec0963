package structured

import "encoding/json"

// FirstJSONObject returns the first balanced brace-delimited substring
// of text that decodes as JSON. Nesting is tracked with a depth
// counter; every run where the depth returns to zero is a candidate.
// Candidates that fail json.Valid are skipped in favour of later
// balanced runs; if none validate, the first balanced span is still
// returned so the caller's parse failure can drive a repair attempt.
// ok is false only when no balanced span exists at all.
func FirstJSONObject(text string) (span string, ok bool) {
	depth := 0
	start := -1
	first := ""

	for i, ch := range text {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := text[start : i+1]
				if first == "" {
					first = candidate
				}
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
			}
		}
	}

	if first != "" {
		return first, true
	}
	return "", false
}
