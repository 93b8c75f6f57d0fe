// Package recovery turns unreliable free-text model output into valid
// structured data. Parse applies a strict JSON decode first and then falls
// back through progressively more aggressive recovery stages: fenced code
// block extraction, textual repairs for the common generation defects
// (comments, prose around the payload, missing or trailing commas, single
// quoting) and finally bracket-matching extraction. Each stage is attempted
// only if the previous one failed.
//
// The stage ordering is load-bearing: comment stripping must precede the
// comma fixes (comments can contain stray brackets) and the quote heuristic
// must run after comma insertion (the comma patterns assume well-formed
// quoting).
package recovery

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError is the terminal failure raised when every recovery stage has
// been exhausted. It carries the original strict-parse error plus a window of
// the attempted text around the reported offset for diagnosability.
type ParseError struct {
	Err    error  // original strict-parse error
	Offset int64  // byte offset reported by the decoder, -1 if unknown
	Window string // text surrounding the failure
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Window == "" {
		return fmt.Sprintf("recovery exhausted: %v", e.Err)
	}
	return fmt.Sprintf("recovery exhausted: %v (near %q)", e.Err, e.Window)
}

// Unwrap exposes the original decode error.
func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts raw generation text into a decoded JSON value, tolerating
// the malformations LLM output commonly exhibits. Valid JSON input is
// returned unchanged by the strict first stage.
func Parse(content string) (any, error) {
	v, firstErr := strictParse(content)
	if firstErr == nil {
		return v, nil
	}

	candidate := content
	if inner, ok := stripFence(content); ok {
		candidate = inner
		if v, err := strictParse(candidate); err == nil {
			return v, nil
		}
	}

	repaired := repair(candidate)
	if v, err := strictParse(repaired); err == nil {
		return v, nil
	}

	if extracted, ok := extractBalanced(repaired); ok {
		if v, err := strictParse(extracted); err == nil {
			return v, nil
		}
	}

	return nil, newParseError(content, firstErr)
}

func strictParse(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func newParseError(content string, err error) *ParseError {
	offset := int64(-1)
	if syn, ok := err.(*json.SyntaxError); ok {
		offset = syn.Offset
	}
	window := ""
	if offset >= 0 {
		start := offset - 40
		if start < 0 {
			start = 0
		}
		end := offset + 40
		if end > int64(len(content)) {
			end = int64(len(content))
		}
		window = content[start:end]
	}
	return &ParseError{Err: err, Offset: offset, Window: window}
}

// stripFence extracts the inner text of a ```json (or generic ```) fenced
// block. Returns false when no complete fence is present.
func stripFence(s string) (string, bool) {
	start := strings.Index(s, "```json")
	skip := len("```json")
	if start < 0 {
		start = strings.Index(s, "```")
		skip = len("```")
	}
	if start < 0 {
		return "", false
	}
	rest := s[start+skip:]
	// Drop the remainder of the fence line (e.g. a language tag).
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// Missing commas at line boundaries between two adjacent value/key tokens:
// a closing token (}, ], ", number, true/false/null) at end of line followed
// by an opening token ({, [, ") on the next line.
var missingCommaRe = regexp.MustCompile(`([}\]"0-9el])[ \t\r]*\n([ \t]*["{\[])`)

// Trailing commas immediately before a closing brace or bracket.
var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// repair applies the textual repair sequence in its fixed order.
func repair(s string) string {
	s = stripComments(s)
	s = trimToStructure(s)
	s = missingCommaRe.ReplaceAllString(s, "$1,\n$2")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	if strings.Count(s, "'") > strings.Count(s, `"`) {
		s = convertSingleQuotes(s)
	}
	return s
}

// stripComments removes // line comments and /* */ block comments while
// leaving string literal contents (e.g. URLs) untouched.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
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
			i++ // consume the trailing '/'
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// trimToStructure drops any prose before the first { or [ and after the last
// matching } or ].
func trimToStructure(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return s[start:]
	}
	return s[start : end+1]
}

func structuralChar(c byte) bool {
	switch c {
	case '{', '}', '[', ']', ':', ',':
		return true
	}
	return false
}

func spaceChar(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// convertSingleQuotes turns single-quoted string delimiters into double
// quotes. Only quotes whose nearest non-whitespace neighbor on either side is
// a structural character (or start/end of text) are converted, so apostrophes
// inside prose are left alone.
func convertSingleQuotes(s string) string {
	out := []byte(s)
	for i := 0; i < len(out); i++ {
		if out[i] != '\'' {
			continue
		}
		if structuralBefore(out, i) || structuralAfter(out, i) {
			out[i] = '"'
		}
	}
	return string(out)
}

func structuralBefore(s []byte, i int) bool {
	j := i - 1
	for j >= 0 && spaceChar(s[j]) {
		j--
	}
	return j < 0 || structuralChar(s[j])
}

func structuralAfter(s []byte, i int) bool {
	j := i + 1
	for j < len(s) && spaceChar(s[j]) {
		j++
	}
	return j >= len(s) || structuralChar(s[j])
}

// extractBalanced scans from the first { or [ tracking nesting depth and
// string state (respecting backslash escapes) and returns the substring up to
// the position where depth returns to zero.
func extractBalanced(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
