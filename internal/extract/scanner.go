// Package extract locates and decodes structured JSON embedded in page
// markup: single bootstrap blocks, streamed script chunks, nested
// dataset nodes and tabular payloads.
package extract

// ScanBalanced scans s from start, which must point at an opening brace
// or bracket, and returns the offset just past the matching closer.
//
// The scan tracks whether it is inside a quoted string so that braces
// and brackets inside string literals do not affect nesting depth, and
// tracks backslash escaping so an escaped quote does not toggle string
// state. Both double and single quotes open strings; a string closes
// only on its own quote kind.
func ScanBalanced(s string, start int) (end int, ok bool) {
	if start < 0 || start >= len(s) {
		return 0, false
	}
	opener := s[start]
	if opener != '{' && opener != '[' {
		return 0, false
	}

	depth := 0
	inString := false
	escaped := false
	var quote byte

	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote:
				inString = false
			}
			continue
		}
		switch ch {
		case '"', '\'':
			inString = true
			quote = ch
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// FirstBalanced returns the first balanced {...} or [...] segment of s.
func FirstBalanced(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			end, ok := ScanBalanced(s, i)
			if !ok {
				return "", false
			}
			return s[i:end], true
		}
	}
	return "", false
}
