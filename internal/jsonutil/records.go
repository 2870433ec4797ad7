package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a response matches none of the accepted shapes.
var ErrMalformed = errors.New("malformed response")

// Record is one decoded object and its position in the response's list,
// counting elements that were dropped.
type Record struct {
	Index  int
	Fields map[string]any
}

// DecodeRecords decodes an LLM response that should carry a list of records.
// Accepted shapes, tried in order:
//
//  1. a bare JSON array of objects
//  2. an object holding the array under one of containerKeys
//  3. a single object, treated as a one-element list
//
// Non-object array elements are dropped. An empty array is a valid result.
func DecodeRecords(raw string, containerKeys ...string) ([]map[string]any, error) {
	recs, err := DecodeIndexedRecords(raw, containerKeys...)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = r.Fields
	}
	return out, nil
}

// DecodeIndexedRecords is DecodeRecords keeping each record's original
// position, so identifiers derived from it survive dropped elements.
func DecodeIndexedRecords(raw string, containerKeys ...string) ([]Record, error) {
	jsonStr, err := payload(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var list []any
	if err := json.Unmarshal([]byte(jsonStr), &list); err == nil {
		return objectsOf(list), nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v (text: %s)", ErrMalformed, err, preview(jsonStr))
	}
	for _, key := range containerKeys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		inner, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: container key %q is not a list", ErrMalformed, key)
		}
		return objectsOf(inner), nil
	}
	return []Record{{Index: 0, Fields: obj}}, nil
}

// DecodeObject decodes a single JSON object into T, first unwrapping it
// from any of wrapperKeys when the model nested it one level deep.
func DecodeObject[T any](raw string, wrapperKeys ...string) (T, error) {
	var zero T
	obj, err := ParseJSON[map[string]json.RawMessage](raw)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	body, err := json.Marshal(obj)
	if err != nil {
		return zero, err
	}
	for _, key := range wrapperKeys {
		if inner, ok := obj[key]; ok && len(inner) > 0 && inner[0] == '{' {
			body = inner
			break
		}
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

func objectsOf(list []any) []Record {
	out := make([]Record, 0, len(list))
	for i, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record{Index: i, Fields: m})
		}
	}
	return out
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
