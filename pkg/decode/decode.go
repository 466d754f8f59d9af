// Package decode turns raw packed buffers into Values laid out by a
// schema.Graph.
package decode

import (
	"errors"
	"fmt"

	"github.com/rawbytedev/hstruct/internal/common"
	"github.com/rawbytedev/hstruct/pkg/schema"
)

// Decode interprets data as the struct called root.
func Decode(g *schema.Graph, root string, data []byte, littleEndian bool) (Value, error) {
	return NewDecoder(g, Options{BigEndian: !littleEndian}).Decode(root, data)
}

// Decode interprets data as the struct called root. len(data) must equal
// the struct's packed size.
func (d *Decoder) Decode(root string, data []byte) (Value, error) {
	return d.DecodeType(schema.Struct{Name: root}, data)
}

// DecodeType interprets data as t. len(data) must equal the packed size
// of t. Nothing is returned on error.
func (d *Decoder) DecodeType(t schema.CType, data []byte) (Value, error) {
	want, err := d.SizeOf(t)
	if err != nil {
		return nil, err
	}
	if len(data) != want {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrSizeMismatch, t, want, len(data))
	}
	return d.decode(t, data, rootPath(t))
}

func rootPath(t schema.CType) string {
	if s, ok := t.(schema.Struct); ok {
		return s.Name
	}
	return t.String()
}

// decode assumes len(b) == size of t.
func (d *Decoder) decode(t schema.CType, b []byte, path string) (Value, error) {
	switch t := t.(type) {
	case schema.Int:
		return d.decodeInt(t, b, path)
	case schema.Char:
		return d.decodeText(t.Length, b, path)
	case schema.Array:
		return d.decodeArray(t, b, path)
	case schema.Struct:
		return d.decodeStruct(t.Name, b, path)
	default:
		return nil, fmt.Errorf("%s: %w: %T", path, schema.ErrInvalidType, t)
	}
}

func (d *Decoder) decodeInt(t schema.Int, b []byte, path string) (Value, error) {
	if !common.IsIntWidth(t.Length) {
		return nil, fmt.Errorf("%s: %w: %s is %d bytes", path, ErrIntWidth, t, t.Length)
	}
	if t.Signed {
		v, err := common.ReadInt(b, t.Length, d.order)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return Int{V: v, Width: t.Length}, nil
	}
	v, err := common.ReadUint(b, t.Length, d.order)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Uint{V: v, Width: t.Length}, nil
}

func (d *Decoder) decodeText(unit int, b []byte, path string) (Value, error) {
	s, err := common.TerminatedText(b, unit, d.order)
	if errors.Is(err, common.ErrWidth) {
		return nil, fmt.Errorf("%s: %w: %d bytes", path, ErrCharWidth, unit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Text(s), nil
}

func (d *Decoder) decodeArray(t schema.Array, b []byte, path string) (Value, error) {
	if c, ok := t.Elem.(schema.Char); ok {
		return d.decodeText(c.Length, b, path)
	}
	if schema.IsByte(t.Elem) {
		return Bytes(append([]byte{}, b...)), nil
	}

	elem, err := d.SizeOf(t.Elem)
	if err != nil {
		return nil, err
	}
	// Zero-size elements consume no input, so the length is unbounded by data.
	if elem == 0 && t.Length > 0 {
		return nil, fmt.Errorf("%s: %w: %s", path, ErrZeroSize, t)
	}
	list := make(List, t.Length)
	for i := range list {
		v, err := d.decode(t.Elem, b[i*elem:(i+1)*elem], fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		list[i] = v
	}
	return list, nil
}

// decodeStruct places fields back to back with no padding.
func (d *Decoder) decodeStruct(name string, b []byte, path string) (Value, error) {
	var rec Record
	offset := 0
	err := d.g.Fields(name, func(f schema.Field) error {
		n, err := d.SizeOf(f.Type)
		if err != nil {
			return err
		}
		v, err := d.decode(f.Type, b[offset:offset+n], path+"."+f.Name)
		if err != nil {
			return err
		}
		rec = append(rec, Member{Name: f.Name, Value: v})
		offset += n
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}
