package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rawbytedev/hstruct/internal/common"
	"github.com/rawbytedev/hstruct/pkg/schema"
)

var (
	ErrSizeMismatch    = errors.New("buffer size mismatch")
	ErrIntWidth        = errors.New("unsupported integer width")
	ErrCharWidth       = errors.New("unsupported char width")
	ErrRecursiveStruct = errors.New("recursive struct")
	ErrTooLarge        = errors.New("type size overflows int")
	ErrZeroSize        = errors.New("array of zero-size elements")
)

// SizeOf returns the packed size of t in bytes.
func SizeOf(g *schema.Graph, t schema.CType) (int, error) {
	return sizeOf(g, t, map[string]bool{}, nil)
}

// sizeOf walks t. visiting holds the structs on the current path;
// cached, when set, answers struct sizes that are already known.
func sizeOf(g *schema.Graph, t schema.CType, visiting map[string]bool, cached func(string) (int, bool)) (int, error) {
	switch t := t.(type) {
	case schema.Int:
		return t.Length, nil
	case schema.Char:
		return t.Length, nil
	case schema.Array:
		elem, err := sizeOf(g, t.Elem, visiting, cached)
		if err != nil {
			return 0, err
		}
		if elem > 0 && t.Length > math.MaxInt/elem {
			return 0, fmt.Errorf("%w: %s", ErrTooLarge, t)
		}
		return elem * t.Length, nil
	case schema.Struct:
		if cached != nil {
			if n, ok := cached(t.Name); ok {
				return n, nil
			}
		}
		if visiting[t.Name] {
			return 0, fmt.Errorf("%w: %q", ErrRecursiveStruct, t.Name)
		}
		visiting[t.Name] = true
		defer delete(visiting, t.Name)

		total := 0
		err := g.Fields(t.Name, func(f schema.Field) error {
			n, err := sizeOf(g, f.Type, visiting, cached)
			if err != nil {
				return err
			}
			if total > math.MaxInt-n {
				return fmt.Errorf("%w: struct %q", ErrTooLarge, t.Name)
			}
			total += n
			return nil
		})
		return total, err
	default:
		return 0, fmt.Errorf("%w: %T", schema.ErrInvalidType, t)
	}
}

// Options configures a Decoder. The zero value decodes little-endian.
type Options struct {
	BigEndian bool
}

// Decoder decodes buffers against one graph. Struct sizes are computed
// once and cached; a Decoder is safe for concurrent use.
type Decoder struct {
	g     *schema.Graph
	order binary.ByteOrder

	mu    sync.RWMutex
	sizes map[string]int
}

// NewDecoder returns a Decoder for g.
func NewDecoder(g *schema.Graph, opts Options) *Decoder {
	return &Decoder{
		g:     g,
		order: common.Order(!opts.BigEndian),
		sizes: make(map[string]int),
	}
}

// Graph returns the graph the decoder was built for.
func (d *Decoder) Graph() *schema.Graph { return d.g }

// Size returns the packed size of the struct called name.
func (d *Decoder) Size(name string) (int, error) {
	return d.structSize(name)
}

// SizeOf returns the packed size of t, using the struct size cache.
func (d *Decoder) SizeOf(t schema.CType) (int, error) {
	if s, ok := t.(schema.Struct); ok {
		return d.structSize(s.Name)
	}
	return sizeOf(d.g, t, map[string]bool{}, d.cachedSize)
}

func (d *Decoder) cachedSize(name string) (int, bool) {
	d.mu.RLock()
	n, ok := d.sizes[name]
	d.mu.RUnlock()
	return n, ok
}

func (d *Decoder) structSize(name string) (int, error) {
	if n, ok := d.cachedSize(name); ok {
		return n, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Double-check
	if n, ok := d.sizes[name]; ok {
		return n, nil
	}
	n, err := sizeOf(d.g, schema.Struct{Name: name}, map[string]bool{}, nil)
	if err != nil {
		return 0, err
	}
	d.sizes[name] = n
	return n, nil
}
