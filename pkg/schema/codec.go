package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Wire shape shared by JSON and YAML:
//
//	{ globalRoot: [{name, elementType}], structs: [{name, fields: [{name, elementType}]}] }
type wireGraph struct {
	GlobalRoot []wireField  `json:"globalRoot" yaml:"globalRoot"`
	Structs    []wireStruct `json:"structs" yaml:"structs"`
}

type wireStruct struct {
	Name   string      `json:"name" yaml:"name"`
	Fields []wireField `json:"fields" yaml:"fields"`
}

type wireField struct {
	Name string   `json:"name" yaml:"name"`
	Type wireType `json:"elementType" yaml:"elementType"`
}

type wireType struct {
	Tag    Tag       `json:"tag" yaml:"tag"`
	Name   string    `json:"name,omitempty" yaml:"name,omitempty"`
	Elem   *wireType `json:"elementType,omitempty" yaml:"elementType,omitempty"`
	Length *int      `json:"length,omitempty" yaml:"length,omitempty"`
	Signed *bool     `json:"signed,omitempty" yaml:"signed,omitempty"`
}

func toWireType(t CType) wireType {
	switch t := t.(type) {
	case Int:
		return wireType{Tag: TagInt, Length: &t.Length, Signed: &t.Signed}
	case Char:
		return wireType{Tag: TagChar, Length: &t.Length}
	case Struct:
		return wireType{Tag: TagStruct, Name: t.Name}
	case Array:
		elem := toWireType(t.Elem)
		return wireType{Tag: TagArray, Elem: &elem, Length: &t.Length}
	}
	panic(fmt.Sprintf("schema: unexpected type %T", t))
}

func (w wireType) ctype() (CType, error) {
	length := func() (int, error) {
		if w.Length == nil {
			return 0, fmt.Errorf("%w: %s without length", ErrInvalidType, w.Tag)
		}
		return *w.Length, nil
	}
	switch w.Tag {
	case TagInt:
		n, err := length()
		if err != nil {
			return nil, err
		}
		return Int{Length: n, Signed: w.Signed != nil && *w.Signed}, nil
	case TagChar:
		n, err := length()
		if err != nil {
			return nil, err
		}
		return Char{Length: n}, nil
	case TagStruct:
		return Struct{Name: w.Name}, nil
	case TagArray:
		n, err := length()
		if err != nil {
			return nil, err
		}
		if w.Elem == nil {
			return nil, fmt.Errorf("%w: array without elementType", ErrInvalidType)
		}
		elem, err := w.Elem.ctype()
		if err != nil {
			return nil, err
		}
		return Array{Elem: elem, Length: n}, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %q", ErrInvalidType, w.Tag)
	}
}

func toWireFields(fields []Field) []wireField {
	out := make([]wireField, len(fields))
	for i, f := range fields {
		out[i] = wireField{Name: f.Name, Type: toWireType(f.Type)}
	}
	return out
}

func fromWireFields(fields []wireField) ([]Field, error) {
	out := make([]Field, len(fields))
	for i, f := range fields {
		t, err := f.Type.ctype()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[i] = Field{Name: f.Name, Type: t}
	}
	return out, nil
}

func (g *Graph) wire() wireGraph {
	w := wireGraph{
		GlobalRoot: toWireFields(g.root),
		Structs:    make([]wireStruct, len(g.structs)),
	}
	for i, s := range g.structs {
		w.Structs[i] = wireStruct{Name: s.Name, Fields: toWireFields(s.Fields)}
	}
	return w
}

func (w wireGraph) graph() (*Graph, error) {
	root, err := fromWireFields(w.GlobalRoot)
	if err != nil {
		return nil, fmt.Errorf("global root: %w", err)
	}
	structs := make([]StructDef, len(w.Structs))
	for i, s := range w.Structs {
		fields, err := fromWireFields(s.Fields)
		if err != nil {
			return nil, fmt.Errorf("struct %q: %w", s.Name, err)
		}
		structs[i] = StructDef{Name: s.Name, Fields: fields}
	}
	return NewGraph(root, structs)
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.wire())
}

// UnmarshalJSON loads a graph and applies the same checks as NewGraph.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ng, err := w.graph()
	if err != nil {
		return err
	}
	*g = *ng
	return nil
}

func (g *Graph) MarshalYAML() (any, error) {
	return g.wire(), nil
}

func (g *Graph) UnmarshalYAML(node *yaml.Node) error {
	var w wireGraph
	if err := node.Decode(&w); err != nil {
		return err
	}
	ng, err := w.graph()
	if err != nil {
		return err
	}
	*g = *ng
	return nil
}

// MarshalCType encodes a single type in the graph's wire shape.
func MarshalCType(t CType) ([]byte, error) {
	if err := checkType(t); err != nil {
		return nil, err
	}
	return json.Marshal(toWireType(t))
}

// UnmarshalCType decodes a single type in the graph's wire shape.
func UnmarshalCType(data []byte) (CType, error) {
	var w wireType
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	t, err := w.ctype()
	if err != nil {
		return nil, err
	}
	if err := checkType(t); err != nil {
		return nil, err
	}
	return t, nil
}
