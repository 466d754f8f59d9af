// Package typegen writes Go type declarations mirroring the structs of a
// schema.Graph, one struct per C struct plus a TypeIndex by C name.
package typegen

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"strings"
	"text/template"
	"unicode"

	"github.com/rawbytedev/hstruct/pkg/schema"
)

var (
	ErrUnsupported = errors.New("type has no Go mapping")
	ErrNameClash   = errors.New("Go name clash")
	ErrPackage     = errors.New("invalid package name")
)

// indexName is the generated map from C struct name to Go type.
const indexName = "TypeIndex"

// Config controls generation. An empty Package means "types".
type Config struct {
	Package string
}

type goField struct {
	CName  string
	GoName string
	GoType string
}

type goStruct struct {
	CName  string
	GoName string
	Fields []goField
}

var fileTmpl = template.Must(template.New("types").Parse(`// Code generated by hstruct. DO NOT EDIT.

package {{.Package}}

import "reflect"
{{range .Structs}}
// {{.GoName}} mirrors struct {{.CName}}.
type {{.GoName}} struct {
{{- range .Fields}}
	{{.GoName}} {{.GoType}} ` + "`json:\"{{.CName}}\"`" + `
{{- end}}
}
{{end}}
// TypeIndex maps C struct names to their generated types.
var {{.Index}} = map[string]reflect.Type{
{{- range .Structs}}
	{{printf "%q" .CName}}: reflect.TypeOf({{.GoName}}{}),
{{- end}}
}
`))

// Generate returns gofmt-formatted Go source for every struct in g.
func Generate(g *schema.Graph, cfg Config) ([]byte, error) {
	pkg := cfg.Package
	if pkg == "" {
		pkg = "types"
	}
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("%w: %q", ErrPackage, pkg)
	}

	names := make(map[string]string)
	seen := make(map[string]string)
	for _, name := range g.StructNames() {
		goName := TypeName(name)
		if goName == indexName {
			return nil, fmt.Errorf("%w: struct %q maps to %s, which names the type index", ErrNameClash, name, goName)
		}
		if prev, ok := seen[goName]; ok {
			return nil, fmt.Errorf("%w: structs %q and %q both map to %s", ErrNameClash, prev, name, goName)
		}
		seen[goName] = name
		names[name] = goName
	}

	var structs []goStruct
	for _, def := range g.Structs() {
		gs := goStruct{CName: def.Name, GoName: names[def.Name]}
		fieldSeen := make(map[string]string)
		for _, f := range def.Fields {
			goName := FieldName(f.Name)
			if prev, ok := fieldSeen[goName]; ok {
				return nil, fmt.Errorf("%w: struct %q fields %q and %q both map to %s", ErrNameClash, def.Name, prev, f.Name, goName)
			}
			fieldSeen[goName] = f.Name

			goType, err := goTypeOf(f.Type, names)
			if err != nil {
				return nil, fmt.Errorf("struct %q field %q: %w", def.Name, f.Name, err)
			}
			gs.Fields = append(gs.Fields, goField{CName: f.Name, GoName: goName, GoType: goType})
		}
		structs = append(structs, gs)
	}

	var buf bytes.Buffer
	err := fileTmpl.Execute(&buf, map[string]any{
		"Package": pkg,
		"Index":   indexName,
		"Structs": structs,
	})
	if err != nil {
		return nil, err
	}
	return format.Source(buf.Bytes())
}

func goTypeOf(t schema.CType, names map[string]string) (string, error) {
	switch t := t.(type) {
	case schema.Int:
		prefix := "uint"
		if t.Signed {
			prefix = "int"
		}
		switch t.Length {
		case 1, 2, 4, 8:
			return fmt.Sprintf("%s%d", prefix, t.Length*8), nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupported, t)
	case schema.Char:
		return "string", nil
	case schema.Array:
		if _, ok := t.Elem.(schema.Char); ok {
			return "string", nil
		}
		if schema.IsByte(t.Elem) {
			return "[]byte", nil
		}
		elem, err := goTypeOf(t.Elem, names)
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case schema.Struct:
		name, ok := names[t.Name]
		if !ok {
			return "", fmt.Errorf("%w: %q", schema.ErrUnknownStruct, t.Name)
		}
		return name, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupported, t)
	}
}

var initialisms = map[string]bool{
	"id": true, "url": true, "api": true, "http": true, "json": true,
	"xml": true, "sql": true, "io": true, "ip": true, "tcp": true, "udp": true,
	"crc": true, "utf": true,
}

// TypeName converts a C struct name to an exported Go name, dropping a
// trailing "_t": test_t becomes Test.
func TypeName(name string) string {
	if trimmed := strings.TrimSuffix(name, "_t"); trimmed != "" {
		name = trimmed
	}
	return FieldName(name)
}

// FieldName converts a C identifier to an exported Go name: snake_case
// parts are capitalized and known initialisms upper-cased.
func FieldName(name string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '_' }) {
		if initialisms[strings.ToLower(part)] {
			b.WriteString(strings.ToUpper(part))
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}
