package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports that no JSON payload could be recovered from a
// model response. Raw preserves the full response for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no JSON payload in response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeJSON unmarshals the first JSON document found in a model
// response into out. It tries the raw text, then the text with code
// fences stripped, then the first balanced object or array embedded in
// surrounding prose. Failure returns a *ParseError carrying the raw
// response.
func DecodeJSON(raw string, out any) error {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	return nil
}

// ExtractJSON returns the JSON document text recovered from raw, or a
// *ParseError when none can be found.
func ExtractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return trimmed, nil
	}
	stripped := stripCodeFences(trimmed)
	if stripped != trimmed && json.Valid([]byte(stripped)) {
		return stripped, nil
	}
	if span, ok := balancedSpan(stripped); ok && json.Valid([]byte(span)) {
		return span, nil
	}
	if span, ok := balancedSpan(trimmed); ok && json.Valid([]byte(span)) {
		return span, nil
	}
	return "", &ParseError{Raw: raw, Err: fmt.Errorf("no balanced object or array found")}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// balancedSpan finds the first top-level {...} or [...] in s, tracking
// string literals and escapes so braces inside strings do not count.
func balancedSpan(s string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
