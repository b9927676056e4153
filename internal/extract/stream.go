package extract

import (
	"encoding/json"
	"strings"
)

// streamMarker anchors the script-injected fragments of the streamed
// chunk protocol. Each fragment wraps one escaped string literal.
const streamMarker = `self.__next_f.push([1,"`

// DecodeChunks returns the unescaped payload of every streamed fragment
// in the markup, in document order. Fragments whose string literal
// cannot be decoded are skipped.
func DecodeChunks(markup string) []string {
	var chunks []string
	rest := markup
	for {
		idx := strings.Index(rest, streamMarker)
		if idx == -1 {
			break
		}
		start := idx + len(streamMarker)
		end, ok := scanStringLiteral(rest, start)
		if !ok {
			break
		}
		raw := rest[start:end]
		var decoded string
		if err := json.Unmarshal([]byte(`"`+raw+`"`), &decoded); err == nil && decoded != "" {
			chunks = append(chunks, decoded)
		}
		rest = rest[end:]
	}
	return chunks
}

// scanStringLiteral finds the closing quote of the string literal that
// starts at s[start], honouring backslash escapes. Returns the offset
// of the closing quote.
func scanStringLiteral(s string, start int) (int, bool) {
	escaped := false
	for i := start; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			return i, true
		}
	}
	return 0, false
}

// Objects scans a decoded chunk for balanced top-level JSON objects and
// returns every one that parses. Invalid candidates are silently
// skipped and scanning resumes after them, so free-text noise between
// objects does not abort extraction.
func Objects(chunk string) []map[string]any {
	var out []map[string]any
	i := 0
	for i < len(chunk) {
		if chunk[i] != '{' {
			i++
			continue
		}
		end, ok := ScanBalanced(chunk, i)
		if !ok {
			// Unbalanced candidate; resume at the next opener.
			i++
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(chunk[i:end]), &obj); err == nil {
			out = append(out, obj)
		}
		i = end
	}
	return out
}

// ObjectsWithPrefix returns the parsed objects whose raw text begins
// with the given prefix, scanning every decoded chunk of the markup.
// Useful for pulling a known entity shape out of the stream.
func ObjectsWithPrefix(markup, prefix string) []map[string]any {
	var out []map[string]any
	for _, chunk := range DecodeChunks(markup) {
		idx := strings.Index(chunk, prefix)
		for idx != -1 {
			end, ok := ScanBalanced(chunk, idx)
			if !ok {
				break
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(chunk[idx:end]), &obj); err == nil {
				out = append(out, obj)
			}
			next := strings.Index(chunk[idx+len(prefix):], prefix)
			if next == -1 {
				break
			}
			idx += len(prefix) + next
		}
	}
	return out
}
