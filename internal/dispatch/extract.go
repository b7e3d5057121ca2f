package dispatch

// extractObjectSpan locates the JSON object span in a completion: the text
// from the first '{' to the last '}'. Completion services habitually wrap
// their JSON in commentary ("Here is the response: {...} Hope that helps"),
// so the span is parsed rather than the whole body.
//
// Returns "" when the text contains no brace-delimited span. Scanning bytes
// is safe here because '{' and '}' never appear inside UTF-8 multi-byte
// sequences.
func extractObjectSpan(s string) string {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	end := -1
	for i := len(s) - 1; i > start; i-- {
		if s[i] == '}' {
			end = i
			break
		}
	}
	if end == -1 {
		return ""
	}

	return s[start : end+1]
}

// snippet bounds a string for inclusion in a ParseError.
func snippet(s string) string {
	const max = 160
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
