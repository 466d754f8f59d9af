package hstruct

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/rawbytedev/hstruct/pkg/decode"
	"golang.org/x/sync/errgroup"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// OpenInput returns a reader over src that transparently decompresses a
// zstd stream. Any other input is passed through unchanged. Close releases
// the decompressor; it does not close src.
func OpenInput(src io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(src)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if !bytes.Equal(head, zstdMagic) {
		return io.NopCloser(br), nil
	}
	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// ReadAll reads consecutive records of struct name until src is exhausted
// and decodes them on up to workers goroutines (unlimited when workers
// <= 0). Records come back in input order. Input ending inside a record
// is ErrShortRead.
func (r *Reader) ReadAll(ctx context.Context, src io.Reader, name string, workers int) ([]decode.Value, error) {
	n, err := r.Size(name)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: struct %q has no bytes to read", ErrUnsupported, name)
	}

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	var (
		slots   []*decode.Value
		readErr error
	)
	for i := 0; gctx.Err() == nil; i++ {
		buf := make([]byte, n)
		got, err := io.ReadFull(src, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			readErr = fmt.Errorf("%w: record %d of struct %q needs %d bytes, got %d: %w", ErrShortRead, i, name, n, got, err)
			break
		}
		if err != nil {
			readErr = fmt.Errorf("read record %d: %w", i, err)
			break
		}
		r.setPrev(buf)

		slot := new(decode.Value)
		slots = append(slots, slot)
		g.Go(func() error {
			v, err := r.dec.Decode(name, buf)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			*slot = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]decode.Value, len(slots))
	for i, s := range slots {
		out[i] = *s
	}
	return out, nil
}
