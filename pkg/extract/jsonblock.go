package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a reply contains no brace-delimited object.
var ErrNoJSON = errors.New("no JSON object in reply")

// FindJSONObject returns the first balanced top-level {...} substring of reply.
// Braces inside JSON string literals do not count towards the balance.
// Surrounding commentary and markdown fences are ignored.
func FindJSONObject(reply string) (string, error) {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(reply); i++ {
		ch := reply[i]
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
				return reply[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced braces", ErrNoJSON)
}

// DecodeJSONObject locates the first object in reply and strictly decodes it into v.
func DecodeJSONObject(reply string, v any) error {
	obj, err := FindJSONObject(reply)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("failed to parse model reply: %w", err)
	}
	return nil
}
