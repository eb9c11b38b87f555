package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var errNoObject = errors.New("no JSON object in model output")

// decodeJSON tolerates markdown fences, prose around the object and unquoted keys.
func decodeJSON(raw string, v any) error {
	text := stripFences(raw)
	s := firstObject(text)
	if s == "" {
		// a half-quoted key opens a string the brace scan never closes
		if s = firstObject(repairKeys(text)); s == "" {
			return errNoObject
		}
	}
	err := json.Unmarshal([]byte(s), v)
	if err == nil {
		return nil
	}
	if repaired := repairKeys(s); repaired != s {
		if err2 := json.Unmarshal([]byte(repaired), v); err2 == nil {
			return nil
		}
	}
	return err
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstObject returns the first balanced {...} in s, ignoring braces inside strings.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// `{min: 2` and `, type":` both become properly quoted keys.
var bareKey = regexp.MustCompile(`([{,]\s*)"?([A-Za-z_][A-Za-z0-9_]*)"?\s*:`)

func repairKeys(s string) string {
	return bareKey.ReplaceAllString(s, `$1"$2":`)
}
