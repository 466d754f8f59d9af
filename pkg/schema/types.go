package schema

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownStruct  = errors.New("unknown struct")
	ErrRedefinition   = errors.New("redefinition of struct")
	ErrDuplicateField = errors.New("duplicate field")
	ErrInvalidType    = errors.New("invalid type")
)

// Tag names a CType variant on the wire.
type Tag string

const (
	TagInt    Tag = "int"
	TagChar   Tag = "char"
	TagStruct Tag = "struct"
	TagArray  Tag = "array"
)

// CType is one of Int, Char, Struct or Array.
type CType interface {
	Tag() Tag
	String() string
	ctype()
}

// Int is a fixed-width integer of Length bytes.
type Int struct {
	Length int
	Signed bool
}

// Char is one text code unit: 1 byte for UTF-8, 2 bytes for UTF-16.
type Char struct {
	Length int
}

// Struct references a StructDef of the same graph by name.
type Struct struct {
	Name string
}

// Array repeats Elem Length times with no terminator of its own.
type Array struct {
	Elem   CType
	Length int
}

func (Int) Tag() Tag    { return TagInt }
func (Char) Tag() Tag   { return TagChar }
func (Struct) Tag() Tag { return TagStruct }
func (Array) Tag() Tag  { return TagArray }

func (Int) ctype()    {}
func (Char) ctype()   {}
func (Struct) ctype() {}
func (Array) ctype()  {}

func (t Int) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d_t", t.Length*8)
	}
	return fmt.Sprintf("uint%d_t", t.Length*8)
}

func (t Char) String() string { return fmt.Sprintf("char%d_t", t.Length*8) }

func (t Struct) String() string { return "struct " + t.Name }

// String prints dimensions the way they are declared: the outermost
// length comes last.
func (t Array) String() string {
	var dims string
	var elem CType = t
	for {
		a, ok := elem.(Array)
		if !ok {
			break
		}
		dims = fmt.Sprintf("[%d]", a.Length) + dims
		elem = a.Elem
	}
	if elem == nil {
		return "<nil>" + dims
	}
	return elem.String() + dims
}

// IsByte reports whether t is uint8_t, the element type of byte blobs.
func IsByte(t CType) bool {
	i, ok := t.(Int)
	return ok && i.Length == 1 && !i.Signed
}

// Field is one named member of a struct or of the global root.
type Field struct {
	Name string
	Type CType
}

// StructDef is a packed struct layout; field order is byte order.
type StructDef struct {
	Name   string
	Fields []Field
}

// Field returns the field called name.
func (s StructDef) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func checkType(t CType) error {
	switch t := t.(type) {
	case Int:
		if t.Length <= 0 {
			return fmt.Errorf("%w: integer length %d", ErrInvalidType, t.Length)
		}
	case Char:
		if t.Length <= 0 {
			return fmt.Errorf("%w: char length %d", ErrInvalidType, t.Length)
		}
	case Struct:
		if t.Name == "" {
			return fmt.Errorf("%w: struct reference without name", ErrInvalidType)
		}
	case Array:
		if t.Length < 0 {
			return fmt.Errorf("%w: negative array length %d", ErrInvalidType, t.Length)
		}
		if t.Elem == nil {
			return fmt.Errorf("%w: array without element type", ErrInvalidType)
		}
		return checkType(t.Elem)
	case nil:
		return fmt.Errorf("%w: missing type", ErrInvalidType)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidType, t)
	}
	return nil
}

// structRefs calls fn for every struct name referenced by t.
func structRefs(t CType, fn func(string) error) error {
	switch t := t.(type) {
	case Struct:
		return fn(t.Name)
	case Array:
		return structRefs(t.Elem, fn)
	}
	return nil
}
