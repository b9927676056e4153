// Package jsonrepair recovers data from the messy JSON found in scraped
// pages: fenced blocks, comments, trailing commas, single quotes,
// unquoted keys, Python-style literals and truncated documents. Parsing
// runs as a cascade from strict to increasingly tolerant passes, so
// well-formed input is never altered.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/harvester/internal/extract"
)

// UnparsableError is returned when every repair pass fails.
type UnparsableError struct {
	Sample string
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("jsonrepair: unparsable input %q", e.Sample)
}

const sampleLen = 80

// Decode parses possibly-broken JSON into generic Go values. Valid
// input round-trips exactly; broken input goes through repair passes of
// increasing aggression until one parses or all fail.
func Decode(input string) (any, error) {
	cleaned := stripWrappers(input)
	if cleaned == "" {
		return nil, errFor(input)
	}

	permissive := stripTrailingCommas(stripComments(cleaned))
	candidates := []string{
		cleaned,
		closeOpenScopes(cleaned),
		permissive,
		looseQuotes(permissive),
	}
	for _, candidate := range candidates {
		if v, ok := tryParse(candidate); ok {
			return v, nil
		}
	}

	// The payload may be JSON surrounded by prose. Pull out the first
	// balanced object or array and run the cascade on that alone.
	if block, ok := firstBlock(cleaned); ok && block != cleaned {
		if v, err := Decode(block); err == nil {
			return v, nil
		}
	}

	// Last resort: rewrite foreign literals and strip control characters,
	// then run the whole cascade once more.
	rewritten := rewriteLiterals(cleaned)
	if rewritten != cleaned {
		if v, err := Decode(rewritten); err == nil {
			return v, nil
		}
	}

	return nil, errFor(input)
}

// DecodeObject is Decode restricted to a JSON object result.
func DecodeObject(input string) (map[string]any, error) {
	v, err := Decode(input)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errFor(input)
	}
	return obj, nil
}

func errFor(input string) *UnparsableError {
	sample := strings.TrimSpace(input)
	if len(sample) > sampleLen {
		sample = sample[:sampleLen]
	}
	return &UnparsableError{Sample: sample}
}

func tryParse(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// stripWrappers removes a UTF-8 BOM and markdown code fences.
func stripWrappers(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string (```json and friends).
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// closeOpenScopes appends the closers a truncated document is missing.
// Unterminated strings are closed first.
func closeOpenScopes(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if !inString && len(stack) == 0 {
		return s
	}
	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// stripComments removes // line comments and /* */ block comments
// outside of strings.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// stripTrailingCommas drops commas that directly precede a closer.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

var unquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// looseQuotes converts single-quoted strings to double-quoted ones and
// wraps bare object keys in quotes.
func looseQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
				if quote == '\'' && c == '\'' {
					// \' is not valid JSON escaping.
					b.WriteByte('\'')
					continue
				}
				b.WriteByte('\\')
				b.WriteByte(c)
				continue
			case c == '\\':
				escaped = true
				continue
			case c == quote:
				quote = 0
				b.WriteByte('"')
				continue
			case c == '"' && quote == '\'':
				b.WriteString(`\"`)
				continue
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			b.WriteByte('"')
			continue
		}
		b.WriteByte(c)
	}
	return unquotedKey.ReplaceAllString(b.String(), `$1"$2":`)
}

var foreignLiterals = strings.NewReplacer(
	"None", "null",
	"True", "true",
	"False", "false",
	"NaN", "null",
	"Infinity", "null",
	"-Infinity", "null",
)

// rewriteLiterals converts Python-style literals to their JSON
// equivalents and strips raw control characters.
func rewriteLiterals(s string) string {
	s = foreignLiterals.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// firstBlock extracts the first balanced object or array in s.
func firstBlock(s string) (string, bool) {
	obj := strings.IndexByte(s, '{')
	arr := strings.IndexByte(s, '[')
	start := obj
	if start < 0 || (arr >= 0 && arr < start) {
		start = arr
	}
	if start < 0 {
		return "", false
	}
	if end, ok := extract.ScanBalanced(s, start); ok {
		return s[start:end], true
	}
	return s[start:], true
}
