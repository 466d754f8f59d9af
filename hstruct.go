// Package hstruct reads packed binary records described by C struct
// declarations.
//
// A header is parsed once into a schema.Graph; a Reader then decodes
// buffers or streams against any struct of that graph and can bind the
// result onto Go structs such as those emitted by pkg/typegen.
package hstruct

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/rawbytedev/hstruct/pkg/cparse"
	"github.com/rawbytedev/hstruct/pkg/decode"
	"github.com/rawbytedev/hstruct/pkg/schema"
)

var (
	ErrNotStructPtr = errors.New("expected pointer to struct")
	ErrUnsupported  = errors.New("unsupported type")
	ErrShortRead    = errors.New("short read")
)

// Options configures a Reader.
type Options struct {
	BigEndian bool // applies to every multi-byte field of a read
}

// Parse builds a graph from C header text.
func Parse(src string) (*schema.Graph, error) {
	return cparse.Build(src)
}

// DefaultRoot returns the struct of the single struct-typed top-level
// declaration, as in `struct foo { ... } instance;`.
func DefaultRoot(g *schema.Graph) (string, bool) {
	root := g.GlobalRoot()
	if len(root) != 1 {
		return "", false
	}
	s, ok := root[0].Type.(schema.Struct)
	return s.Name, ok
}

// Reader decodes records of one graph. It is safe for concurrent use.
type Reader struct {
	Opts Options
	dec  *decode.Decoder

	mu   sync.RWMutex
	prev []byte
	plan map[reflect.Type]*bindPlan
}

// NewReader returns a Reader for g.
func NewReader(g *schema.Graph, opts Options) *Reader {
	return &Reader{
		Opts: opts,
		dec:  decode.NewDecoder(g, decode.Options{BigEndian: opts.BigEndian}),
		plan: make(map[reflect.Type]*bindPlan),
	}
}

// Graph returns the graph the reader decodes against.
func (r *Reader) Graph() *schema.Graph { return r.dec.Graph() }

// Size returns the number of bytes one record of struct name occupies.
func (r *Reader) Size(name string) (int, error) {
	return r.dec.Size(name)
}

// Decode decodes data as struct name. len(data) must equal Size(name).
func (r *Reader) Decode(data []byte, name string) (decode.Value, error) {
	return r.dec.Decode(name, data)
}

// Read blocks until exactly Size(name) bytes are read from src, then
// decodes them. Running out of input first is ErrShortRead.
func (r *Reader) Read(src io.Reader, name string) (decode.Value, error) {
	n, err := r.Size(name)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(src, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: struct %q needs %d bytes, got %d: %w", ErrShortRead, name, n, got, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read struct %q: %w", name, err)
	}

	r.setPrev(buf)
	return r.dec.Decode(name, buf)
}

func (r *Reader) setPrev(buf []byte) {
	r.mu.Lock()
	r.prev = buf
	r.mu.Unlock()
}

// PreviousBuffer returns a copy of the bytes consumed by the last
// successful Read, or nil before the first one.
func (r *Reader) PreviousBuffer() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.prev == nil {
		return nil
	}
	return append([]byte{}, r.prev...)
}

// DecodeInto decodes data as struct name and binds the result onto out.
func (r *Reader) DecodeInto(data []byte, name string, out any) error {
	v, err := r.Decode(data, name)
	if err != nil {
		return err
	}
	return r.bind(v, out)
}

// ReadInto is Read followed by binding onto out.
func (r *Reader) ReadInto(src io.Reader, name string, out any) error {
	v, err := r.Read(src, name)
	if err != nil {
		return err
	}
	return r.bind(v, out)
}
