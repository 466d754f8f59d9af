package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/rawbytedev/hstruct"
	"github.com/rawbytedev/hstruct/pkg/cparse"
	"github.com/rawbytedev/hstruct/pkg/decode"
	"github.com/rawbytedev/hstruct/pkg/schema"
	"github.com/rawbytedev/hstruct/pkg/typegen"
	"gopkg.in/yaml.v3"
)

type config struct {
	header     string
	graph      string
	bin        string
	root       string
	bigEndian  bool
	format     string
	all        bool
	workers    int
	emitGraph  string
	emitTypes  string
	pkg        string
	verbose    bool
	memProfile string
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("hstruct: ")

	var cfg config
	flag.StringVar(&cfg.header, "header", "", "C header describing the structs")
	flag.StringVar(&cfg.graph, "graph", "", "type graph as JSON or YAML (instead of -header)")
	flag.StringVar(&cfg.bin, "bin", "", "binary input, zstd detected automatically; - reads stdin")
	flag.StringVar(&cfg.root, "root", "", "struct to decode (default: the single top-level instance)")
	flag.BoolVar(&cfg.bigEndian, "big-endian", false, "decode multi-byte fields as big-endian")
	flag.StringVar(&cfg.format, "format", "json", "output format: json or yaml")
	flag.BoolVar(&cfg.all, "all", false, "decode consecutive records until the input ends")
	flag.IntVar(&cfg.workers, "workers", runtime.GOMAXPROCS(0), "decode goroutines for -all")
	flag.StringVar(&cfg.emitGraph, "emit-graph", "", "write the type graph to this path (.yaml/.yml for YAML)")
	flag.StringVar(&cfg.emitTypes, "emit-types", "", "write Go type definitions to this path")
	flag.StringVar(&cfg.pkg, "package", "types", "package name for -emit-types")
	flag.BoolVar(&cfg.verbose, "v", false, "log preprocessor directives")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write a heap profile to this path on exit")
	flag.Parse()

	if err := run(cfg, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config, stdin io.Reader, stdout io.Writer) error {
	if cfg.format != "json" && cfg.format != "yaml" {
		return fmt.Errorf("unknown -format %q", cfg.format)
	}
	if cfg.memProfile != "" {
		defer writeHeapProfile(cfg.memProfile)
	}

	g, err := loadGraph(cfg)
	if err != nil {
		return err
	}
	if cfg.emitGraph != "" {
		if err := writeGraph(g, cfg.emitGraph); err != nil {
			return err
		}
	}
	if cfg.emitTypes != "" {
		src, err := typegen.Generate(g, typegen.Config{Package: cfg.pkg})
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.emitTypes, src, 0o644); err != nil {
			return err
		}
	}
	if cfg.bin == "" {
		return nil
	}

	root := cfg.root
	if root == "" {
		var ok bool
		if root, ok = hstruct.DefaultRoot(g); !ok {
			return errors.New("-root is required: the header has no single top-level struct instance")
		}
	}

	in, err := openBinary(cfg.bin, stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	r := hstruct.NewReader(g, hstruct.Options{BigEndian: cfg.bigEndian})
	var values []decode.Value
	if cfg.all {
		values, err = r.ReadAll(context.Background(), in, root, cfg.workers)
	} else {
		var v decode.Value
		v, err = r.Read(in, root)
		values = []decode.Value{v}
	}
	if err != nil {
		return err
	}
	return writeValues(stdout, cfg.format, values)
}

func loadGraph(cfg config) (*schema.Graph, error) {
	switch {
	case cfg.header != "" && cfg.graph != "":
		return nil, errors.New("-header and -graph are mutually exclusive")
	case cfg.header != "":
		src, err := os.ReadFile(cfg.header)
		if err != nil {
			return nil, err
		}
		var p cparse.Parser
		g, err := p.Build(string(src))
		if cfg.verbose {
			for _, d := range p.Directives() {
				log.Printf("%s:%d: %s %s", cfg.header, d.Line, d.Kind, d.Text)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.header, err)
		}
		return g, nil
	case cfg.graph != "":
		data, err := os.ReadFile(cfg.graph)
		if err != nil {
			return nil, err
		}
		var g schema.Graph
		if isYAML(cfg.graph) {
			err = yaml.Unmarshal(data, &g)
		} else {
			err = json.Unmarshal(data, &g)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.graph, err)
		}
		return &g, nil
	default:
		return nil, errors.New("one of -header or -graph is required")
	}
}

func writeGraph(g *schema.Graph, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(g)
	} else {
		data, err = json.MarshalIndent(g, "", "    ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func openBinary(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return hstruct.OpenInput(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	in, err := hstruct.OpenInput(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return closeBoth{in, f}, nil
}

type closeBoth struct {
	io.ReadCloser
	file *os.File
}

func (c closeBoth) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.file.Close())
}

func writeValues(w io.Writer, format string, values []decode.Value) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		for _, v := range values {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		for _, v := range values {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return enc.Close()
	}
	return nil
}

func isYAML(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Print(err)
		return
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Print(err)
	}
}
