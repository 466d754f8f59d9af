package cparse

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota

	IDENT
	NUMBER

	STRUCT
	TYPEDEF
	CONST
	VOLATILE

	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
	SEMICOLON // ;
	STAR      // *
	PUNCT     // any other single character
)

var tokenNames = map[TokenType]string{
	EOF:       "end of input",
	IDENT:     "identifier",
	NUMBER:    "number",
	STRUCT:    "struct",
	TYPEDEF:   "typedef",
	CONST:     "const",
	VOLATILE:  "volatile",
	LBRACE:    "{",
	RBRACE:    "}",
	LBRACKET:  "[",
	RBRACKET:  "]",
	SEMICOLON: ";",
	STAR:      "*",
	PUNCT:     "punctuation",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var keywords = map[string]TokenType{
	"struct":   STRUCT,
	"typedef":  TYPEDEF,
	"const":    CONST,
	"volatile": VOLATILE,
}

// Token is one lexeme of preprocessed header text.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
}

func (t Token) String() string {
	if t.Type == EOF {
		return t.Type.String()
	}
	return fmt.Sprintf("%q", t.Lexeme)
}

// Lexer scans preprocessed text. Comments must already be stripped.
type Lexer struct {
	src  string
	pos  int
	line int
}

func newLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) advance() byte {
	c := l.peek()
	l.pos++
	if c == '\n' {
		l.line++
	}
	return c
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && isSpace(l.peek()) {
		l.advance()
	}
}

// scanWord collects an identifier or keyword. Numbers are scanned the
// same way so that suffixed or hex literals stay one token.
func (l *Lexer) scanWord(tt TokenType) Token {
	line, start := l.line, l.pos
	for l.pos < len(l.src) && isIdentChar(l.peek()) {
		l.advance()
	}
	lexeme := l.src[start:l.pos]
	if tt == IDENT {
		if kw, ok := keywords[lexeme]; ok {
			tt = kw
		}
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

func (l *Lexer) nextToken() Token {
	l.skipWhitespace()
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Line: l.line}
	}
	c := l.peek()
	switch {
	case isIdentStart(c):
		return l.scanWord(IDENT)
	case isDigit(c):
		return l.scanWord(NUMBER)
	}

	line := l.line
	l.advance()
	tt := PUNCT
	switch c {
	case '{':
		tt = LBRACE
	case '}':
		tt = RBRACE
	case '[':
		tt = LBRACKET
	case ']':
		tt = RBRACKET
	case ';':
		tt = SEMICOLON
	case '*':
		tt = STAR
	}
	return Token{Type: tt, Lexeme: string(c), Line: line}
}

// Lex returns every token of src, without the trailing EOF.
func Lex(src string) []Token {
	l := newLexer(src)
	var toks []Token
	for {
		tok := l.nextToken()
		if tok.Type == EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
