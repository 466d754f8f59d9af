// Package cparse builds a schema.Graph from C struct declarations.
//
// The accepted subset is object-like #define, #include (recorded, not
// resolved), C and C++ comments, typedef, nestable `struct NAME { ... }`
// and fields `TYPE name;` / `TYPE name[N]...;` whose primitive types are
// u?int{8,16,32,64}_t and char{8,16}_t.
package cparse

import (
	"fmt"

	"github.com/rawbytedev/hstruct/pkg/schema"
)

// Parser builds graphs and keeps the diagnostics of its last Build.
// The zero value is ready to use. A Parser is not safe for concurrent
// Build calls; independent Parsers are.
type Parser struct {
	unit Unit
}

// Build parses src into a graph.
func Build(src string) (*schema.Graph, error) {
	var p Parser
	return p.Build(src)
}

// Build preprocesses src, flattens struct bodies, parses the global
// statements and then every struct body in registration order.
func (p *Parser) Build(src string) (*schema.Graph, error) {
	p.unit = Preprocess(src)

	f := newFlattener()
	global, err := f.reduce(Lex(p.unit.Body))
	if err != nil {
		return nil, err
	}

	fp := &fieldParser{
		structs:  f.bodies,
		typedefs: make(map[string]alias),
	}
	root, err := fp.parseFields(global)
	if err != nil {
		return nil, err
	}
	structs := make([]schema.StructDef, 0, len(f.order))
	for _, name := range f.order {
		fields, err := fp.parseFields(f.bodies[name])
		if err != nil {
			return nil, fmt.Errorf("struct %q: %w", name, err)
		}
		structs = append(structs, schema.StructDef{Name: name, Fields: fields})
	}
	return schema.NewGraph(root, structs)
}

// Directives returns the '#' markers seen by the last Build.
func (p *Parser) Directives() []Directive {
	return append([]Directive(nil), p.unit.Directives...)
}

// Macros returns the #define table of the last Build.
func (p *Parser) Macros() []Macro {
	return append([]Macro(nil), p.unit.Macros...)
}
