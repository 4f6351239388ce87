package projection

import (
	"bytes"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// Field is one column of a generic record.
type Field struct {
	Name  string
	Value any
}

// Record is a generic-shape row. It marshals as a JSON object whose keys
// keep column order.
type Record []Field

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := gojson.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := gojson.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Record) set(name string, value any) Record {
	for i := range r {
		if r[i].Name == name {
			r[i].Value = value
			return r
		}
	}
	return append(r, Field{Name: name, Value: value})
}

// TypedRecord is the fixed pk/message shape. Null fields are omitted.
type TypedRecord struct {
	PK      *int64  `json:"pk,omitempty"`
	Message *string `json:"message,omitempty"`
}

func typedPK(v any) *int64 {
	switch x := v.(type) {
	case int64:
		return &x
	case gojson.Number:
		if n, err := x.Int64(); err == nil {
			return &n
		}
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

func typedMessage(v any) *string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return &x
	case int64:
		s := strconv.FormatInt(x, 10)
		return &s
	case uint64:
		s := strconv.FormatUint(x, 10)
		return &s
	case gojson.Number:
		s := x.String()
		return &s
	}
	return nil
}
