package decode

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Value is one node of a decoded tree: Int, Uint, Text, Bytes, List or
// Record.
type Value interface {
	value()
}

// Int is a signed integer read from Width bytes.
type Int struct {
	V     int64
	Width int
}

// Uint is an unsigned integer read from Width bytes.
type Uint struct {
	V     uint64
	Width int
}

// Text is a decoded char or char array, cut at its terminator.
type Text string

// Bytes is a copy of a uint8_t array.
type Bytes []byte

// List holds the elements of a non-text, non-blob array.
type List []Value

// Member is one named field of a Record.
type Member struct {
	Name  string
	Value Value
}

// Record is a decoded struct with fields in declaration order.
type Record []Member

func (Int) value()    {}
func (Uint) value()   {}
func (Text) value()   {}
func (Bytes) value()  {}
func (List) value()   {}
func (Record) value() {}

// Get returns the value of the field called name.
func (r Record) Get(name string) (Value, bool) {
	for _, m := range r {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, m := range r {
		names[i] = m.Name
	}
	return names
}

func (v Int) String() string  { return strconv.FormatInt(v.V, 10) }
func (v Uint) String() string { return strconv.FormatUint(v.V, 10) }

// MarshalJSON writes 8-byte integers as decimal strings; JSON numbers
// lose precision past 2^53.
func (v Int) MarshalJSON() ([]byte, error) {
	if v.Width > 4 {
		return json.Marshal(v.String())
	}
	return []byte(v.String()), nil
}

func (v Uint) MarshalJSON() ([]byte, error) {
	if v.Width > 4 {
		return json.Marshal(v.String())
	}
	return []byte(v.String()), nil
}

// MarshalJSON keeps declaration order, which a Go map would lose.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML emits an ordered mapping node.
func (r Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, m := range r {
		var val yaml.Node
		if err := val.Encode(m.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.Name},
			&val,
		)
	}
	return node, nil
}

func (v Int) MarshalYAML() (any, error)  { return v.V, nil }
func (v Uint) MarshalYAML() (any, error) { return v.V, nil }

func (v Bytes) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!binary",
		Value: base64.StdEncoding.EncodeToString(v),
	}, nil
}

// Plain converts v to native Go values: int64, uint64, string, []byte,
// []any and map[string]any.
func Plain(v Value) any {
	switch v := v.(type) {
	case Int:
		return v.V
	case Uint:
		return v.V
	case Text:
		return string(v)
	case Bytes:
		return []byte(v)
	case List:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = Plain(e)
		}
		return out
	case Record:
		out := make(map[string]any, len(v))
		for _, m := range v {
			out[m.Name] = Plain(m.Value)
		}
		return out
	default:
		return nil
	}
}
