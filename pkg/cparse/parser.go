package cparse

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rawbytedev/hstruct/pkg/schema"
)

var (
	intTypeRe  = regexp.MustCompile(`^(u?)int([0-9]+)_t$`)
	charTypeRe = regexp.MustCompile(`^char(8|16)_t$`)
)

// typedefPasses is how many alias hops a type name may take.
const typedefPasses = 2

// statement is one parsed `;`-terminated declaration.
type statement struct {
	typedef bool
	base    string // "uint8_t", "struct foo", "my_alias"
	name    string
	dims    []int // in source order
	line    int
}

// alias is the right-hand side of a typedef.
type alias struct {
	base string
	dims []int
}

// fieldParser turns statements into fields. Its typedef table lives for
// one Build call.
type fieldParser struct {
	structs  map[string][]Token
	typedefs map[string]alias
}

// parseFields parses a flattened statement list in source order.
func (p *fieldParser) parseFields(toks []Token) ([]schema.Field, error) {
	var fields []schema.Field
	for _, stmt := range splitStatements(toks) {
		st, ok, err := parseStatement(stmt)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if st.typedef {
			p.typedefs[st.name] = alias{base: st.base, dims: st.dims}
			continue
		}
		t, err := p.resolve(st.base, st.dims)
		if err != nil {
			return nil, fmt.Errorf("line %d: field %q: %w", st.line, st.name, err)
		}
		fields = append(fields, schema.Field{Name: st.name, Type: t})
	}
	return fields, nil
}

func splitStatements(toks []Token) [][]Token {
	var (
		out   [][]Token
		start int
	)
	for i, tok := range toks {
		if tok.Type == SEMICOLON {
			if i > start {
				out = append(out, toks[start:i])
			}
			start = i + 1
		}
	}
	if start < len(toks) {
		out = append(out, toks[start:])
	}
	return out
}

// stmtParser is a recursive-descent parser over one statement:
//
//	statement := ["typedef"] qualifier* typeSpec [IDENT] dims
//	typeSpec  := "struct" IDENT | IDENT+
//	dims      := ("[" NUMBER "]")*
type stmtParser struct {
	toks []Token
	pos  int
}

func (p *stmtParser) peek() Token {
	if p.pos >= len(p.toks) {
		line := 0
		if len(p.toks) > 0 {
			line = p.toks[len(p.toks)-1].Line
		}
		return Token{Type: EOF, Line: line}
	}
	return p.toks[p.pos]
}

func (p *stmtParser) next() Token {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *stmtParser) expect(tt TokenType) (Token, error) {
	tok := p.next()
	if tok.Type != tt {
		return tok, fmt.Errorf("line %d: %w: expected %s, found %s", tok.Line, ErrSyntax, tt, tok)
	}
	return tok, nil
}

// parseStatement returns ok=false for contentless statements such as a
// leftover `struct NAME` forward reference or a lone type name.
func parseStatement(toks []Token) (statement, bool, error) {
	p := &stmtParser{toks: toks}
	st := statement{line: p.peek().Line}

	if p.peek().Type == TYPEDEF {
		p.next()
		st.typedef = true
	}
	p.skipQualifiers()

	var words []string
	if p.peek().Type == STRUCT {
		p.next()
		name, err := p.expect(IDENT)
		if err != nil {
			return st, false, err
		}
		st.base = "struct " + name.Lexeme
		p.skipQualifiers()
		if p.peek().Type == IDENT {
			st.name = p.next().Lexeme
		}
	} else {
		for p.peek().Type == IDENT {
			words = append(words, p.next().Lexeme)
			p.skipQualifiers()
		}
		switch len(words) {
		case 0:
		case 1:
			st.base = words[0]
		default:
			st.base = strings.Join(words[:len(words)-1], " ")
			st.name = words[len(words)-1]
		}
	}

	dims, err := p.parseDims()
	if err != nil {
		return st, false, err
	}
	st.dims = dims

	if tok := p.peek(); tok.Type != EOF {
		if tok.Type == STAR {
			return st, false, fmt.Errorf("line %d: %w: pointer", tok.Line, ErrUnsupported)
		}
		return st, false, fmt.Errorf("line %d: %w: unexpected %s", tok.Line, ErrSyntax, tok)
	}

	if st.name == "" {
		if len(dims) > 0 || st.typedef {
			return st, false, fmt.Errorf("line %d: %w", st.line, ErrMissingName)
		}
		return st, false, nil
	}
	return st, true, nil
}

func (p *stmtParser) skipQualifiers() {
	for t := p.peek().Type; t == CONST || t == VOLATILE; t = p.peek().Type {
		p.next()
	}
}

func (p *stmtParser) parseDims() ([]int, error) {
	var dims []int
	for p.peek().Type == LBRACKET {
		p.next()
		num, err := p.expect(NUMBER)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(num.Lexeme, 0, 31)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: array length %s", num.Line, ErrSyntax, num)
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		dims = append(dims, int(n))
	}
	return dims, nil
}

// resolve maps a type name plus array dimensions to a CType. Typedefs are
// substituted at most typedefPasses times; an alias's own dimensions sit
// inside the field's. Each trailing [N] wraps everything before it, so
// m[2][3] is three elements of uint8_t[2].
func (p *fieldParser) resolve(base string, dims []int) (schema.CType, error) {
	for range typedefPasses {
		a, ok := p.typedefs[base]
		if !ok {
			break
		}
		base = a.base
		dims = append(slices.Clip(a.dims), dims...)
	}

	t, err := p.element(base)
	if err != nil {
		return nil, err
	}
	for _, n := range dims {
		t = schema.Array{Elem: t, Length: n}
	}
	return t, nil
}

func (p *fieldParser) element(base string) (schema.CType, error) {
	if name, ok := strings.CutPrefix(base, "struct "); ok {
		if _, known := p.structs[name]; !known {
			return nil, fmt.Errorf("%w: %q", schema.ErrUnknownStruct, name)
		}
		return schema.Struct{Name: name}, nil
	}
	if m := intTypeRe.FindStringSubmatch(base); m != nil {
		bits, err := strconv.Atoi(m[2])
		if err == nil && bits > 0 && bits%8 == 0 {
			return schema.Int{Length: bits / 8, Signed: m[1] == ""}, nil
		}
	}
	if m := charTypeRe.FindStringSubmatch(base); m != nil {
		bits, _ := strconv.Atoi(m[1])
		return schema.Char{Length: bits / 8}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, base)
}
