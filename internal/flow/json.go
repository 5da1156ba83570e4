// Package flow provides the model-orchestration components for Autonoma:
// the intake dialogue engine, charter generator, update analyzer, and
// escalation advisor.
package flow

import "strings"

// ExtractJSONObject locates the first top-level brace-delimited block in the
// model's text output and returns it. The scan is string- and escape-aware
// but deliberately permissive: it finds the first balanced {...} block
// without validating it against any schema, so commentary before or after
// the JSON does not break extraction. Callers decide whether a failed parse
// of the returned block is fatal.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	// Unbalanced block: fall back to everything from the first brace, which
	// mirrors the permissive first-{ to last-} behavior for truncated output.
	end := strings.LastIndexByte(text, '}')
	if end > start {
		return text[start : end+1], true
	}
	return "", false
}
