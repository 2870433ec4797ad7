// Package report renders analysis results: the aggregate JSON document,
// the markdown guide, and console summaries.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Output file names inside the data directory.
const (
	ContentFile    = "analysis.json"
	StartupsFile   = "startups.json"
	GuidelinesFile = "guidelines.md"
)

// Document encodes {"<recordsKey>": records, "guidelines": guidelines}
// with the records first. A nil guidelines value encodes as null.
func Document(recordsKey string, records, guidelines any) ([]byte, error) {
	recs, err := encode(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", recordsKey, err)
	}
	guide, err := encode(guidelines)
	if err != nil {
		return nil, fmt.Errorf("encode guidelines: %w", err)
	}
	key, _ := json.Marshal(recordsKey)

	var buf bytes.Buffer
	buf.WriteString("{\n  ")
	buf.Write(key)
	buf.WriteString(": ")
	buf.Write(indentNested(recs))
	buf.WriteString(",\n  \"guidelines\": ")
	buf.Write(indentNested(guide))
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// indentNested shifts every line after the first by two spaces so the value
// sits one level inside the outer object.
func indentNested(b []byte) []byte {
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\n  "))
}
