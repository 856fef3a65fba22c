package htmltable

import (
	"bytes"
	"encoding/json"
)

// Field is one key/value pair of a Record.
//
// Value is a string, a *Record, or nil when the row had no cell left for the
// column (a missing value).
type Field struct {
	Key   string
	Value any
}

// Record is an ordered mapping from key to value produced for one table row.
//
// Keys keep the order in which the row was mapped, which is the left-to-right
// column order of the table.
type Record struct {
	fields []Field
	index  map[string]int
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{index: make(map[string]int)}
}

// Set stores v under key, replacing any previous value in place.
func (r *Record) Set(key string, v any) {
	if i, ok := r.index[key]; ok {
		r.fields[i].Value = v
		return
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, Field{Key: key, Value: v})
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.index[key]
	return ok
}

// IsMissing reports whether key is present but had no value in the row.
func (r *Record) IsMissing(key string) bool {
	v, ok := r.Get(key)
	return ok && v == nil
}

// String returns the string stored under key, or "" when the key is absent,
// missing or holds a nested record.
func (r *Record) String(key string) string {
	v, _ := r.Get(key)
	s, _ := v.(string)
	return s
}

// Nested returns the nested record stored under key, or nil.
func (r *Record) Nested(key string) *Record {
	v, _ := r.Get(key)
	n, _ := v.(*Record)
	return n
}

// Len returns the number of top-level keys.
func (r *Record) Len() int { return len(r.fields) }

// Keys returns the top-level keys in order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the top-level fields in order.
func (r *Record) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Map converts the record into plain maps, recursively.
// Key order is lost; use MarshalJSON or Fields when order matters.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		if n, ok := f.Value.(*Record); ok {
			out[f.Key] = n.Map()
			continue
		}
		out[f.Key] = f.Value
	}
	return out
}

// Flatten returns one field per leaf value, with nested keys joined by sep.
// An empty sep means ".".
func (r *Record) Flatten(sep string) []Field {
	if sep == "" {
		sep = "."
	}
	var out []Field
	r.flattenInto("", sep, &out)
	return out
}

func (r *Record) flattenInto(prefix, sep string, out *[]Field) {
	for _, f := range r.fields {
		key := f.Key
		if prefix != "" {
			key = prefix + sep + key
		}
		if n, ok := f.Value.(*Record); ok {
			n.flattenInto(key, sep, out)
			continue
		}
		*out = append(*out, Field{Key: key, Value: f.Value})
	}
}

// MarshalJSON encodes the record as a JSON object with keys in record order.
// Missing values encode as null. HTML escaping is left to the caller's encoder.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Record) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(buf, f.Key); err != nil {
			return err
		}
		buf.WriteByte(':')

		switch v := f.Value.(type) {
		case nil:
			buf.WriteString("null")
		case string:
			if err := writeJSONString(buf, v); err != nil {
				return err
			}
		case *Record:
			if err := v.writeJSON(buf); err != nil {
				return err
			}
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			buf.Write(b)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
