package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = `#include <stdint.h>
#define N 2
struct point { int32_t x; int32_t y; };
struct shape { uint16_t id; char8_t tag[4]; struct point pts[N]; } shape_instance;
`

func shapeBytes(id uint16, tag string, pts ...int32) []byte {
	buf := make([]byte, 2+4+4*len(pts))
	binary.LittleEndian.PutUint16(buf, id)
	copy(buf[2:6], tag)
	for i, p := range pts {
		binary.LittleEndian.PutUint32(buf[6+4*i:], uint32(p))
	}
	return buf
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunJSON(t *testing.T) {
	cfg := config{
		header: writeFile(t, "shape.h", []byte(header)),
		bin:    writeFile(t, "shape.bin", shapeBytes(7, "sq", 1, 2, 3, 4)),
		format: "json",
	}
	var out bytes.Buffer
	require.NoError(t, run(cfg, nil, &out))
	assert.JSONEq(t, `{"id":7,"tag":"sq","pts":[{"x":1,"y":2},{"x":3,"y":4}]}`, out.String())
}

func TestRunYAMLFromStdinZstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	stream := enc.EncodeAll(append(shapeBytes(1, "a", 0, 0, 0, 0), shapeBytes(2, "b", -1, 0, 0, 0)...), nil)
	require.NoError(t, enc.Close())

	cfg := config{
		header:  writeFile(t, "shape.h", []byte(header)),
		bin:     "-",
		root:    "shape",
		format:  "yaml",
		all:     true,
		workers: 2,
	}
	var out bytes.Buffer
	require.NoError(t, run(cfg, bytes.NewReader(stream), &out))
	docs := strings.Split(out.String(), "---\n")
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0], "id: 1")
	assert.Contains(t, docs[1], "tag: b")
	assert.Contains(t, docs[1], "x: -1")
}

func TestRunEmitGraphAndTypes(t *testing.T) {
	dir := t.TempDir()
	cfg := config{
		header:    writeFile(t, "shape.h", []byte(header)),
		emitGraph: filepath.Join(dir, "shape.graph.yaml"),
		emitTypes: filepath.Join(dir, "types.go"),
		pkg:       "shapes",
		format:    "json",
	}
	require.NoError(t, run(cfg, nil, nil))

	types, err := os.ReadFile(cfg.emitTypes)
	require.NoError(t, err)
	assert.Contains(t, string(types), "package shapes")
	assert.Contains(t, string(types), "type Shape struct")

	// The emitted graph decodes the same input as the header.
	var out bytes.Buffer
	require.NoError(t, run(config{
		graph:  cfg.emitGraph,
		bin:    writeFile(t, "shape.bin", shapeBytes(9, "tri", 5, 6, 7, 8)),
		root:   "shape",
		format: "json",
	}, nil, &out))
	assert.JSONEq(t, `{"id":9,"tag":"tri","pts":[{"x":5,"y":6},{"x":7,"y":8}]}`, out.String())
}

func TestRunErrors(t *testing.T) {
	h := writeFile(t, "shape.h", []byte(header))
	tests := []struct {
		name string
		cfg  config
		want string
	}{
		{"no schema", config{format: "json"}, "-header or -graph"},
		{"both schemas", config{header: h, graph: h, format: "json"}, "mutually exclusive"},
		{"bad format", config{header: h, format: "xml"}, "xml"},
		{"short input", config{header: h, bin: writeFile(t, "short.bin", []byte{1, 2, 3}), format: "json"}, "short read"},
		{"no root", config{header: writeFile(t, "p.h", []byte("struct p { uint8_t v; };")), bin: "-", format: "json"}, "-root"},
		{"bad header", config{header: writeFile(t, "bad.h", []byte("struct p { float v; };")), format: "json"}, "float"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.cfg, bytes.NewReader(nil), &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
