package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ReportFields is the fixed field list requested from the search endpoint
// and the column order of the CSV report.
var ReportFields = []string{
	"Award ID",
	"Recipient Name",
	"Award Amount",
	"Awarding Agency",
	"Awarding Sub Agency",
	"Funding Agency",
	"Funding Sub Agency",
	"PSC",
	"NAICS",
	"Start Date",
	"End Date",
	"Last Modified Date",
	"Description",
}

// ValueKind tags the shape of a raw field value returned by the API.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Value is a single raw field value. USAspending returns plain strings for
// most columns but objects ({"code": ..., "description": ...}) or arrays of
// them for classification columns such as PSC and NAICS.
type Value struct {
	Kind ValueKind

	// Text holds the string, the literal number text, or "true"/"false".
	Text string

	// Object fields. Code/Name/Description are rendered as plain text.
	Code        string
	Name        string
	Description string

	Items []Value

	raw json.RawMessage // compact JSON of an object value
}

// StringValue builds a string Value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Text: s}
}

// ObjectValue builds an object Value with the common code/name shape.
func ObjectValue(code, name string) Value {
	return Value{Kind: KindObject, Code: code, Name: name}
}

// ArrayValue builds an array Value.
func ArrayValue(items ...Value) Value {
	return Value{Kind: KindArray, Items: items}
}

// IsNull reports whether the value is JSON null or was never present.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = Value{}
		return nil
	}

	switch data[0] {
	case 'n':
		*v = Value{Kind: KindNull}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Kind: KindString, Text: s}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Value{Kind: KindBool, Text: strconv.FormatBool(b)}
	case '{':
		var fields map[string]Value
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*v = Value{
			Kind:        KindObject,
			Code:        Normalize(fields["code"]),
			Name:        Normalize(fields["name"]),
			Description: Normalize(fields["description"]),
			raw:         json.RawMessage(buf.Bytes()),
		}
	case '[':
		var items []Value
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = Value{Kind: KindArray, Items: items}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported field value %s: %w", TruncateText(string(data), 40), err)
		}
		*v = Value{Kind: KindNumber, Text: n.String()}
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Text)
	case KindNumber, KindBool:
		return []byte(v.Text), nil
	case KindObject:
		if len(v.raw) > 0 {
			return v.raw, nil
		}
		obj := map[string]string{}
		if v.Code != "" {
			obj["code"] = v.Code
		}
		if v.Name != "" {
			obj["name"] = v.Name
		}
		if v.Description != "" {
			obj["description"] = v.Description
		}
		return json.Marshal(obj)
	case KindArray:
		items := v.Items
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	}
	return []byte("null"), nil
}

// Record is one award row from the search endpoint, keyed by field label.
// Records are read-only once decoded.
type Record struct {
	Fields map[string]Value
	raw    json.RawMessage
}

// NewRecord builds a Record from already-typed values.
func NewRecord(fields map[string]Value) Record {
	return Record{Fields: fields}
}

// Get returns the value for field, or a null Value when the field is absent.
func (r Record) Get(field string) Value {
	if v, ok := r.Fields[field]; ok {
		return v
	}
	return Value{Kind: KindNull}
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]Value
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Fields = fields
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

// PageMetadata is the pagination block of a search response. The API has
// used both "hasNext" and "has_next" for the same flag.
type PageMetadata struct {
	HasNext bool
}

func (m *PageMetadata) UnmarshalJSON(data []byte) error {
	var meta struct {
		HasNext      *bool `json:"hasNext"`
		HasNextSnake *bool `json:"has_next"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	switch {
	case meta.HasNext != nil:
		m.HasNext = *meta.HasNext
	case meta.HasNextSnake != nil:
		m.HasNext = *meta.HasNextSnake
	default:
		m.HasNext = false
	}
	return nil
}

// Page is one decoded search response.
type Page struct {
	Number  int
	Records []Record
	Meta    PageMetadata
	RawMeta json.RawMessage
}

// StopReason records why the page loop ended.
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopLastPage  StopReason = "last_page"
	StopEarly     StopReason = "early_stop"
	StopSafetyCap StopReason = "safety_cap"
)

// FetchResult is everything the page loop pulled, unfiltered.
type FetchResult struct {
	Records    []Record
	Pages      int
	StopReason StopReason
	CapReached bool
	FirstPage  *Page
}
