package hstruct

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/zstd"
	"github.com/rawbytedev/hstruct/pkg/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointLine = `struct P { int32_t x; int32_t y; }; struct L { struct P a; struct P b; };`

func newReader(t testing.TB, src string, opts Options) *Reader {
	t.Helper()
	g, err := Parse(src)
	require.NoError(t, err)
	return NewReader(g, opts)
}

func lineBytes(order binary.ByteOrder, vals ...int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		order.PutUint32(buf[4*i:], uint32(v))
	}
	return buf
}

func TestReaderDecode(t *testing.T) {
	r := newReader(t, pointLine, Options{})
	n, err := r.Size("L")
	require.NoError(t, err)
	require.Equal(t, 16, n)

	v, err := r.Decode(lineBytes(binary.LittleEndian, 1, 2, 3, 4), "L")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"x": int64(1), "y": int64(2)},
		"b": map[string]any{"x": int64(3), "y": int64(4)},
	}, decode.Plain(v))

	_, err = r.Decode(make([]byte, 15), "L")
	require.ErrorIs(t, err, decode.ErrSizeMismatch)
}

func TestReaderBigEndian(t *testing.T) {
	r := newReader(t, pointLine, Options{BigEndian: true})
	v, err := r.Decode(lineBytes(binary.BigEndian, -1, 2, 3, -4), "L")
	require.NoError(t, err)
	a, _ := v.(decode.Record).Get("a")
	x, _ := a.(decode.Record).Get("x")
	assert.Equal(t, decode.Int{V: -1, Width: 4}, x)
}

func TestReaderReadStream(t *testing.T) {
	r := newReader(t, pointLine, Options{})
	assert.Nil(t, r.PreviousBuffer())

	first := lineBytes(binary.LittleEndian, 1, 2, 3, 4)
	second := lineBytes(binary.LittleEndian, 5, 6, 7, 8)
	src := iotest.OneByteReader(bytes.NewReader(append(append([]byte{}, first...), second...)))

	_, err := r.Read(src, "L")
	require.NoError(t, err)
	assert.Equal(t, first, r.PreviousBuffer())

	v, err := r.Read(src, "L")
	require.NoError(t, err)
	prev := r.PreviousBuffer()
	assert.Equal(t, second, prev)
	prev[0] = 0xFF
	assert.Equal(t, second, r.PreviousBuffer(), "PreviousBuffer must return a copy")

	b, _ := v.(decode.Record).Get("b")
	y, _ := b.(decode.Record).Get("y")
	assert.Equal(t, decode.Int{V: 8, Width: 4}, y)

	_, err = r.Read(src, "L")
	require.ErrorIs(t, err, ErrShortRead)
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderShortRead(t *testing.T) {
	r := newReader(t, pointLine, Options{})
	_, err := r.Read(bytes.NewReader(make([]byte, 10)), "L")
	require.ErrorIs(t, err, ErrShortRead)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "16")
	assert.Contains(t, err.Error(), "10")
	assert.Nil(t, r.PreviousBuffer())

	boom := errors.New("boom")
	_, err = r.Read(iotest.ErrReader(boom), "L")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrShortRead)

	_, err = r.Read(bytes.NewReader(nil), "Missing")
	require.Error(t, err)
}

func TestOpenInput(t *testing.T) {
	raw := lineBytes(binary.LittleEndian, 1, 2, 3, 4)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(raw, nil)
	require.NoError(t, enc.Close())

	for name, input := range map[string][]byte{"zstd": compressed, "plain": raw} {
		t.Run(name, func(t *testing.T) {
			in, err := OpenInput(bytes.NewReader(input))
			require.NoError(t, err)
			defer in.Close()

			r := newReader(t, pointLine, Options{})
			_, err = r.Read(in, "L")
			require.NoError(t, err)
			assert.Equal(t, raw, r.PreviousBuffer())
		})
	}

	in, err := OpenInput(bytes.NewReader([]byte{0x28}))
	require.NoError(t, err)
	got, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28}, got)
}

func TestSampleHeader(t *testing.T) {
	src, err := os.ReadFile("testdata/schema.h")
	require.NoError(t, err)
	r := newReader(t, string(src), Options{})

	n, err := r.Size("test_t")
	require.NoError(t, err)
	require.Equal(t, 1+2+4+8+5+2+25, n)

	buf := make([]byte, n)
	buf[0] = 0x7F
	binary.LittleEndian.PutUint64(buf[7:], 1<<60)
	copy(buf[15:], "hello")
	buf[22] = 9

	v, err := r.Decode(buf, "test_t")
	require.NoError(t, err)
	rec := v.(decode.Record)
	assert.Equal(t, []string{"field1", "field2", "field3", "field4", "arr", "field6"}, rec.Names())
	arr, _ := rec.Get("arr")
	assert.Equal(t, decode.Bytes("hello"), arr)
	f6, _ := rec.Get("field6")
	mat, _ := f6.(decode.Record).Get("mat")
	assert.Equal(t, decode.Bytes{9, 0, 0, 0, 0}, mat.(decode.List)[0])
}

func TestNonSquareArrays(t *testing.T) {
	r := newReader(t, `typedef uint8_t pair_t[2];
struct T { uint8_t m[2][3]; int8_t s[2][3]; pair_t p[3]; };`, Options{})
	n, err := r.Size("T")
	require.NoError(t, err)
	require.Equal(t, 18, n)

	buf := []byte{
		1, 2, 3, 4, 5, 6,
		0xFF, 1, 0xFE, 2, 0xFD, 3,
		7, 8, 9, 10, 11, 12,
	}
	v, err := r.Decode(buf, "T")
	require.NoError(t, err)
	rec := v.(decode.Record)
	m, _ := rec.Get("m")
	assert.Equal(t, decode.List{decode.Bytes{1, 2}, decode.Bytes{3, 4}, decode.Bytes{5, 6}}, m)
	s, _ := rec.Get("s")
	assert.Equal(t, []any{[]any{int64(-1), int64(1)}, []any{int64(-2), int64(2)}, []any{int64(-3), int64(3)}}, decode.Plain(s))
	p, _ := rec.Get("p")
	assert.Equal(t, decode.List{decode.Bytes{7, 8}, decode.Bytes{9, 10}, decode.Bytes{11, 12}}, p)

	def, _ := r.Graph().Struct("T")
	assert.Equal(t, "uint8_t[2][3]", def.Fields[0].Type.String())
}

func TestReaderConcurrent(t *testing.T) {
	r := newReader(t, pointLine, Options{})
	data := lineBytes(binary.LittleEndian, 1, 2, 3, 4)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out Line
			assert.NoError(t, r.DecodeInto(data, "L", &out))
			assert.Equal(t, Line{A: Point{X: 1, Y: 2}, B: Point{X: 3, Y: 4}}, out)
			_, err := r.Read(bytes.NewReader(data), "L")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestReadAll(t *testing.T) {
	r := newReader(t, pointLine, Options{})
	var stream []byte
	for i := int32(0); i < 50; i++ {
		stream = append(stream, lineBytes(binary.LittleEndian, i, i+1, i+2, i+3)...)
	}

	vals, err := r.ReadAll(context.Background(), bytes.NewReader(stream), "L", 4)
	require.NoError(t, err)
	require.Len(t, vals, 50)
	for i, v := range vals {
		var out Line
		require.NoError(t, Bind(v, &out))
		assert.Equal(t, Line{A: Point{X: int32(i), Y: int32(i + 1)}, B: Point{X: int32(i + 2), Y: int32(i + 3)}}, out)
	}
	assert.Equal(t, stream[len(stream)-16:], r.PreviousBuffer())

	vals, err = r.ReadAll(context.Background(), bytes.NewReader(nil), "L", 0)
	require.NoError(t, err)
	assert.Empty(t, vals)

	_, err = r.ReadAll(context.Background(), bytes.NewReader(stream[:40]), "L", 2)
	require.ErrorIs(t, err, ErrShortRead)
	assert.Contains(t, err.Error(), "record 2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ReadAll(ctx, bytes.NewReader(stream), "L", 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadAllDecodeError(t *testing.T) {
	r := newReader(t, `struct odd { uint8_t a; int24_t b; };`, Options{})
	_, err := r.ReadAll(context.Background(), bytes.NewReader(make([]byte, 8)), "odd", 2)
	require.ErrorIs(t, err, decode.ErrIntWidth)

	empty := newReader(t, `struct none { };`, Options{})
	_, err = empty.ReadAll(context.Background(), bytes.NewReader(nil), "none", 1)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestDefaultRoot(t *testing.T) {
	g, err := Parse(`struct a { uint8_t x; } inst;`)
	require.NoError(t, err)
	name, ok := DefaultRoot(g)
	require.True(t, ok)
	assert.Equal(t, "a", name)

	for _, src := range []string{pointLine, `uint8_t x;`, `struct a { uint8_t x; } i; struct a j;`} {
		g, err := Parse(src)
		require.NoError(t, err)
		_, ok := DefaultRoot(g)
		assert.False(t, ok, src)
	}
}
