package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type docField struct {
	key   string
	value json.RawMessage
}

// Document is a JSON object whose key order is preserved, so that the text
// field of a rerank document resolves the same way on every run.
type Document struct {
	fields []docField
}

// NewDocument builds a document with a single "text" field.
func NewDocument(text string) Document {
	var d Document
	_ = d.Set("text", text)
	return d
}

// Set appends a field, or replaces it in place when the key exists.
func (d *Document) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", key, err)
	}
	for i := range d.fields {
		if d.fields[i].key == key {
			d.fields[i].value = raw
			return nil
		}
	}
	d.fields = append(d.fields, docField{key: key, value: raw})
	return nil
}

// Keys returns field names in document order.
func (d Document) Keys() []string {
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the raw JSON of a field.
func (d Document) Get(key string) (json.RawMessage, bool) {
	for _, f := range d.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

// Text returns the "text" field when it is a string, otherwise the first
// string-valued field in document order.
func (d Document) Text() string {
	if raw, ok := d.Get("text"); ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	for _, f := range d.fields {
		var s string
		if json.Unmarshal(f.value, &s) == nil {
			return s
		}
	}
	return ""
}

func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(f.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object")
	}
	var fields []docField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected document key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode field %q: %w", key, err)
		}
		fields = append(fields, docField{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	d.fields = fields
	return nil
}

// DocumentTexts extracts the rerank text of each document.
func DocumentTexts(docs []Document) []string {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text()
	}
	return texts
}

// DecodeDocuments decodes a JSON array whose items are documents or bare
// strings; a string becomes a document with a single "text" field.
func DecodeDocuments(data []byte) ([]Document, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("documents must be a JSON array: %w", err)
	}
	docs := make([]Document, len(items))
	for i, item := range items {
		if bytes.HasPrefix(bytes.TrimSpace(item), []byte(`"`)) {
			var text string
			if err := json.Unmarshal(item, &text); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			docs[i] = NewDocument(text)
			continue
		}
		if err := json.Unmarshal(item, &docs[i]); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}
	return docs, nil
}
