// Package jsonutil recovers JSON from model responses, which may arrive
// fenced in markdown, surrounded by prose, or nested under a wrapper key.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

// StripMarkdownFences returns the body of the first fenced block in text,
// dropping the info string ("json", "JSON", ...). The block ends at the last
// fence, so backticks inside JSON strings survive. Text without a fence is
// returned trimmed. An unclosed fence yields everything after it.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	open := strings.Index(text, fence)
	if open < 0 {
		return text
	}
	body := text[open+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

var errNoJSON = errors.New("no JSON object or array in response")

// ExtractJSON returns the first complete, valid JSON object or array in
// text. Brackets inside string literals are ignored. A candidate that is
// bracket-balanced but not valid JSON ("[see below]") is skipped and the
// scan resumes after it.
func ExtractJSON(text string) (string, error) {
	var lastErr error
	for from := 0; from < len(text); {
		rel := strings.IndexAny(text[from:], "{[")
		if rel < 0 {
			break
		}
		start := from + rel
		end, err := scanValue(text, start)
		if err != nil {
			lastErr = err
			if end <= start {
				break
			}
			from = end
			continue
		}
		if json.Valid([]byte(text[start:end])) {
			return text[start:end], nil
		}
		lastErr = fmt.Errorf("invalid JSON at offset %d", start)
		from = end
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", errNoJSON
}

// scanValue matches brackets from text[start] and returns the offset just
// past the closing bracket. On a mismatch it returns the offset past the
// offending byte; an unterminated value returns start.
func scanValue(text string, start int) (int, error) {
	var stack []byte
	inString, escaped := false, false
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if stack[len(stack)-1] != c {
				return i + 1, fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, nil
			}
		}
	}
	return start, fmt.Errorf("unterminated JSON starting at offset %d", start)
}

// payload locates the JSON value in a model response. A response that is
// already valid JSON is used as is, even when its strings contain fences.
// Otherwise a fenced block is preferred, then the first value in the prose.
func payload(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text != "" && (text[0] == '{' || text[0] == '[') && json.Valid([]byte(text)) {
		return text, nil
	}
	if strings.Contains(text, fence) {
		if s, err := ExtractJSON(StripMarkdownFences(text)); err == nil {
			return s, nil
		}
	}
	return ExtractJSON(text)
}

// ParseJSON decodes the JSON value embedded in a model response into T.
func ParseJSON[T any](raw string) (T, error) {
	var out T
	jsonStr, err := payload(raw)
	if err != nil {
		return out, fmt.Errorf("%w (response length %d)", err, len(raw))
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return out, fmt.Errorf("decode JSON: %w (text: %s)", err, preview(jsonStr))
	}
	return out, nil
}
