package schema

import (
	"fmt"
	"slices"
)

// Graph is the resolved schema: named struct layouts plus the top-level
// field list. It is read-only after NewGraph and safe to share between
// goroutines.
type Graph struct {
	root    []Field
	structs []StructDef
	index   map[string]int
}

// NewGraph validates root and structs and returns the graph holding
// copies of them. Struct names must be unique, field names must be
// unique within a struct (and within root) and every struct reference
// must resolve.
func NewGraph(root []Field, structs []StructDef) (*Graph, error) {
	g := &Graph{
		root:    cloneFields(root),
		structs: make([]StructDef, 0, len(structs)),
		index:   make(map[string]int, len(structs)),
	}
	for _, s := range structs {
		if _, ok := g.index[s.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrRedefinition, s.Name)
		}
		g.index[s.Name] = len(g.structs)
		g.structs = append(g.structs, StructDef{Name: s.Name, Fields: cloneFields(s.Fields)})
	}

	if err := g.checkFields("global root", g.root); err != nil {
		return nil, err
	}
	for _, s := range g.structs {
		if err := g.checkFields("struct "+s.Name, s.Fields); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) checkFields(owner string, fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("%w: %q in %s", ErrDuplicateField, f.Name, owner)
		}
		seen[f.Name] = struct{}{}
		if err := checkType(f.Type); err != nil {
			return fmt.Errorf("%s field %q: %w", owner, f.Name, err)
		}
		err := structRefs(f.Type, func(name string) error {
			if _, ok := g.index[name]; !ok {
				return fmt.Errorf("%w: %q referenced by %s field %q", ErrUnknownStruct, name, owner, f.Name)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Struct returns the definition of the struct called name.
func (g *Graph) Struct(name string) (StructDef, bool) {
	i, ok := g.index[name]
	if !ok {
		return StructDef{}, false
	}
	s := g.structs[i]
	return StructDef{Name: s.Name, Fields: cloneFields(s.Fields)}, true
}

// Fields calls fn for each field of struct name in declaration order
// without copying the definition.
func (g *Graph) Fields(name string, fn func(Field) error) error {
	i, ok := g.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStruct, name)
	}
	for _, f := range g.structs[i].Fields {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// StructNames returns the struct names in definition order.
func (g *Graph) StructNames() []string {
	names := make([]string, len(g.structs))
	for i, s := range g.structs {
		names[i] = s.Name
	}
	return names
}

// Structs returns a copy of every struct definition in definition order.
func (g *Graph) Structs() []StructDef {
	out := make([]StructDef, len(g.structs))
	for i, s := range g.structs {
		out[i] = StructDef{Name: s.Name, Fields: cloneFields(s.Fields)}
	}
	return out
}

// GlobalRoot returns a copy of the top-level fields.
func (g *Graph) GlobalRoot() []Field {
	return cloneFields(g.root)
}

// Field types are values, so copying the slice detaches the caller.
func cloneFields(fields []Field) []Field {
	if fields == nil {
		return []Field{}
	}
	return slices.Clone(fields)
}
