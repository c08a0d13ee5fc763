package oracle

import "strings"

// CleanResponse strips the markdown wrapping models add despite instructions.
// It returns the contents of the first fenced code block if one is present,
// dropping a "json" language tag, and otherwise the trimmed input.
func CleanResponse(content string) string {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "```")
	if start < 0 {
		return content
	}

	body := content[start+3:]

	// A language tag sits between the opening fence and the payload.
	if idx := strings.IndexAny(body, "\n{["); idx >= 0 {
		tag := strings.TrimSpace(body[:idx])
		if tag == "" || strings.EqualFold(tag, "json") {
			body = strings.TrimPrefix(body[idx:], "\n")
		}
	}

	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}

	return strings.TrimSpace(body)
}

// ExtractJSONArray returns the first complete top-level JSON array in content,
// tolerating prose before and after it. The boolean reports whether one was
// found; the caller still has to unmarshal it.
func ExtractJSONArray(content string) (string, bool) {
	start := strings.IndexByte(content, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		ch := content[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return content[start : i+1], true
			}
		}
	}

	return "", false
}

// ExtractJSONObject is ExtractJSONArray for a top-level object.
func ExtractJSONObject(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		ch := content[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], true
			}
		}
	}

	return "", false
}
