package cparse

import (
	"errors"
	"fmt"

	"github.com/rawbytedev/hstruct/pkg/schema"
)

var (
	ErrUnknownType = errors.New("unknown type")
	ErrMissingName = errors.New("missing field name")
	ErrSyntax      = errors.New("syntax error")
	ErrUnsupported = errors.New("unsupported declaration")
)

// flattener extracts struct bodies into a flat store. Bodies are stored
// already flattened, in registration order: inner structs come before
// the struct that encloses them.
type flattener struct {
	bodies map[string][]Token
	order  []string
}

func newFlattener() *flattener {
	return &flattener{bodies: make(map[string][]Token)}
}

// reduce replaces every `struct NAME { ... }` in toks with `struct NAME`
// and registers the body under NAME.
func (f *flattener) reduce(toks []Token) ([]Token, error) {
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); {
		if !isStructHead(toks, i) {
			out = append(out, toks[i])
			i++
			continue
		}
		name := toks[i+1]
		end, err := closingBrace(toks, i+2)
		if err != nil {
			return nil, fmt.Errorf("struct %q: %w", name.Lexeme, err)
		}
		body, err := f.reduce(toks[i+3 : end])
		if err != nil {
			return nil, err
		}
		if _, ok := f.bodies[name.Lexeme]; ok {
			return nil, fmt.Errorf("line %d: %w: %q", name.Line, schema.ErrRedefinition, name.Lexeme)
		}
		f.bodies[name.Lexeme] = body
		f.order = append(f.order, name.Lexeme)

		out = append(out, toks[i], name)
		i = end + 1
	}
	return out, nil
}

func isStructHead(toks []Token, i int) bool {
	return i+2 < len(toks) &&
		toks[i].Type == STRUCT &&
		toks[i+1].Type == IDENT &&
		toks[i+2].Type == LBRACE
}

// closingBrace returns the index of the brace matching the one at open.
func closingBrace(toks []Token, open int) (int, error) {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Type {
		case LBRACE:
			depth++
		case RBRACE:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("line %d: %w: unterminated struct body", toks[open].Line, ErrSyntax)
}
