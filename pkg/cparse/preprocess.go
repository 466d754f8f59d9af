package cparse

import (
	"strings"
)

// DirectiveKind classifies a '#' line.
type DirectiveKind int

const (
	Define DirectiveKind = iota
	Include
	Unknown
)

func (k DirectiveKind) String() string {
	switch k {
	case Define:
		return "define"
	case Include:
		return "include"
	default:
		return "unknown"
	}
}

// Directive is an inert marker left by a '#' line. Includes are recorded,
// never resolved.
type Directive struct {
	Kind DirectiveKind
	Line int
	Text string
}

// Macro is an object-like #define.
type Macro struct {
	Name  string
	Value string
}

// Unit is the result of preprocessing one header.
type Unit struct {
	// Body keeps one line per source line so token line numbers match
	// the header; directive and comment-only lines are blank.
	Body       string
	Macros     []Macro
	Directives []Directive
}

// macroPasses is how many times the macro table is applied to the body.
// A macro whose value names another macro resolves one level deep;
// longer chains stay partially expanded.
const macroPasses = 2

// Preprocess strips comments, records directives and expands macros.
// It never fails: malformed directives become Unknown markers.
func Preprocess(src string) Unit {
	var (
		unit    Unit
		index   = map[string]int{}
		inBlock bool
	)
	lines := strings.Split(src, "\n")
	body := make([]string, len(lines))
	for i, line := range lines {
		lineNo := i + 1
		line = strings.TrimSuffix(line, "\r")

		startedInBlock := inBlock
		trimmed := strings.TrimSpace(line)
		if !startedInBlock && strings.HasPrefix(trimmed, "#") {
			d, m, ok := directive(trimmed, lineNo, &inBlock)
			unit.Directives = append(unit.Directives, d)
			if ok {
				if at, seen := index[m.Name]; seen {
					unit.Macros[at].Value = m.Value
				} else {
					index[m.Name] = len(unit.Macros)
					unit.Macros = append(unit.Macros, m)
				}
			}
			continue
		}
		body[i] = strings.TrimSpace(stripComments(line, &inBlock))
	}

	text := strings.Join(body, "\n")
	for range macroPasses {
		text = applyMacros(text, unit.Macros)
	}
	unit.Body = text
	return unit
}

func directive(line string, lineNo int, inBlock *bool) (Directive, Macro, bool) {
	rest := strings.TrimSpace(stripComments(line[1:], inBlock))
	var word string
	if fields := strings.Fields(rest); len(fields) > 0 {
		word = fields[0]
		rest = strings.TrimSpace(rest[len(word):])
	}

	switch word {
	case "define":
		fields := strings.Fields(rest)
		if len(fields) == 0 || !isIdentStart(fields[0][0]) {
			return Directive{Kind: Unknown, Line: lineNo, Text: line}, Macro{}, false
		}
		name := fields[0]
		value := strings.TrimSpace(strings.TrimPrefix(rest, name))
		return Directive{Kind: Define, Line: lineNo, Text: name}, Macro{Name: name, Value: value}, true
	case "include":
		target := strings.Trim(rest, `"<> `)
		return Directive{Kind: Include, Line: lineNo, Text: target}, Macro{}, false
	default:
		return Directive{Kind: Unknown, Line: lineNo, Text: line}, Macro{}, false
	}
}

// stripComments removes // and /* */ comments from one line. inBlock
// carries an unterminated block comment over to the next line.
func stripComments(line string, inBlock *bool) string {
	var b strings.Builder
	for i := 0; i < len(line); {
		if *inBlock {
			end := strings.Index(line[i:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 2
			*inBlock = false
			b.WriteByte(' ')
			continue
		}
		if strings.HasPrefix(line[i:], "//") {
			break
		}
		if strings.HasPrefix(line[i:], "/*") {
			*inBlock = true
			i += 2
			continue
		}
		b.WriteByte(line[i])
		i++
	}
	return b.String()
}

func applyMacros(text string, macros []Macro) string {
	for _, m := range macros {
		text = replaceIdent(text, m.Name, m.Value)
	}
	return text
}

// replaceIdent substitutes whole identifiers equal to name. Number
// literals are skipped as a unit so that suffixes are never rewritten.
func replaceIdent(text, name, value string) string {
	if !strings.Contains(text, name) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		c := text[i]
		if !isIdentChar(c) {
			b.WriteByte(c)
			i++
			continue
		}
		j := i
		for j < len(text) && isIdentChar(text[j]) {
			j++
		}
		if word := text[i:j]; isIdentStart(c) && word == name {
			b.WriteString(value)
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String()
}
