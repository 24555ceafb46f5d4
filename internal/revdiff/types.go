// Package revdiff compares two saved versions of a SOW document field by field and
// renders a highlighted difference for each changed field.
package revdiff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

type ChangeType string

const (
	ChangeFieldUpdate  ChangeType = "field_update"
	ChangeContentEdit  ChangeType = "content_edit"
	ChangeStatusChange ChangeType = "status_change"
)

// FieldKind records which differ handled a field.
type FieldKind string

const (
	KindPlain      FieldKind = "plain"
	KindHTML       FieldKind = "html"
	KindStructured FieldKind = "structured_list"
)

type SegmentKind string

const (
	SegmentCommon  SegmentKind = "common"
	SegmentAdded   SegmentKind = "added"
	SegmentRemoved SegmentKind = "removed"
)

type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Value string      `json:"value"`
}

type Field struct {
	Name  string
	Value string
}

// Fields is an ordered field map. JSON objects decode in document order; non-string
// members keep their compact JSON text and null becomes the empty string.
type Fields []Field

func (f Fields) Get(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Map indexes the fields by name. Missing names read as the empty string.
func (f Fields) Map() map[string]string {
	values := make(map[string]string, len(f))
	for _, field := range f {
		values[field.Name] = field.Value
	}
	return values
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, field := range f {
		if idx > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	token, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	if token == nil {
		*f = nil
		return nil
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode fields: expected object")
	}

	fields := make(Fields, 0)
	seen := make(map[string]int)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("decode field name: %w", err)
		}
		name, _ := keyToken.(string)
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return fmt.Errorf("decode field %s: %w", name, err)
		}
		value, err := serializedValue(raw)
		if err != nil {
			return fmt.Errorf("decode field %s: %w", name, err)
		}
		// Later duplicates win, like encoding/json does for maps.
		if idx, ok := seen[name]; ok {
			fields[idx].Value = value
			continue
		}
		seen[name] = len(fields)
		fields = append(fields, Field{Name: name, Value: value})
	}
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode fields: unexpected data after object")
	}
	*f = fields
	return nil
}

func serializedValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return "", err
		}
		return value, nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return "", err
	}
	return compact.String(), nil
}

type Snapshot struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id,omitempty"`
	Version    int       `json:"version"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	Fields     Fields    `json:"fields"`
}

// SnapshotRef is the snapshot metadata echoed back with a result.
type SnapshotRef struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (s Snapshot) Ref() SnapshotRef {
	return SnapshotRef{ID: s.ID, Version: s.Version, Status: s.Status, CreatedAt: s.CreatedAt}
}

type ChangeDiff struct {
	FieldName     string     `json:"field_name"`
	PreviousValue string     `json:"previous_value"`
	NewValue      string     `json:"new_value"`
	ChangeType    ChangeType `json:"change_type"`
	DiffSummary   string     `json:"diff_summary"`
	Kind          FieldKind  `json:"field_kind"`
	Previous      []Segment  `json:"-"`
	Next          []Segment  `json:"-"`

	// Sanitized HTML bodies used by the raw view when a sanitizer is set.
	rawPrevious string
	rawNext     string
	sanitized   bool
}

type DiffResult struct {
	Snapshot1    SnapshotRef  `json:"snapshot1"`
	Snapshot2    SnapshotRef  `json:"snapshot2"`
	Changes      []ChangeDiff `json:"changes"`
	TotalChanges int          `json:"total_changes"`
}
