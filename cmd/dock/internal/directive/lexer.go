package directive

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tLabel
	tString
	tInt
	tSymbol
	tLBrace
	tRBrace
	tLParen
	tRParen
	tLBracket
	tRBracket
	tComma
	tAssign
	tArrow
	tOr
	tDot
	tPipe
)

var tokenNames = map[tokenKind]string{
	tEOF:      "end of line",
	tIdent:    "identifier",
	tLabel:    "label",
	tString:   "string",
	tInt:      "integer",
	tSymbol:   "symbol",
	tLBrace:   "'{'",
	tRBrace:   "'}'",
	tLParen:   "'('",
	tRParen:   "')'",
	tLBracket: "'['",
	tRBracket: "']'",
	tComma:    "','",
	tAssign:   "'='",
	tArrow:    "'=>'",
	tOr:       "'||'",
	tDot:      "'.'",
	tPipe:     "'|'",
}

func (k tokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// strPart is a literal run or an interpolated expression inside a
// double-quoted string.
type strPart struct {
	lit    string
	expr   string
	interp bool
}

type token struct {
	kind  tokenKind
	text  string
	parts []strPart
	line  int
}

// lexLine tokenizes a single physical line. Everything after an unquoted '#'
// is a comment.
func lexLine(src string, line int) ([]token, error) {
	var toks []token
	rs := []rune(src)
	i := 0

	errf := func(format string, args ...any) error {
		return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
	}

	for i < len(rs) {
		c := rs[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			return toks, nil
		case c == '\'':
			s, n, err := lexSingleQuoted(rs[i:])
			if err != nil {
				return nil, errf("%v", err)
			}
			toks = append(toks, token{kind: tString, parts: []strPart{{lit: s}}, line: line})
			i += n
		case c == '"':
			parts, n, err := lexDoubleQuoted(rs[i:])
			if err != nil {
				return nil, errf("%v", err)
			}
			toks = append(toks, token{kind: tString, parts: parts, line: line})
			i += n
		case unicode.IsDigit(c) || (c == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '_') {
				i++
			}
			text := strings.ReplaceAll(string(rs[start:i]), "_", "")
			toks = append(toks, token{kind: tInt, text: text, line: line})
		case c == ':' && i+1 < len(rs) && isIdentStart(rs[i+1]):
			start := i + 1
			i = start
			for i < len(rs) && isIdentChar(rs[i]) {
				i++
			}
			if i < len(rs) && (rs[i] == '!' || rs[i] == '?') {
				i++
			}
			toks = append(toks, token{kind: tSymbol, text: string(rs[start:i]), line: line})
		case isIdentStart(c):
			start := i
			for i < len(rs) && isIdentChar(rs[i]) {
				i++
			}
			if i < len(rs) && (rs[i] == '!' || rs[i] == '?') && (i+1 >= len(rs) || rs[i+1] != '=') {
				i++
			}
			text := string(rs[start:i])
			if i < len(rs) && rs[i] == ':' && (i+1 >= len(rs) || rs[i+1] != ':') {
				i++
				toks = append(toks, token{kind: tLabel, text: text, line: line})
				continue
			}
			toks = append(toks, token{kind: tIdent, text: text, line: line})
		case c == '=':
			if i+1 < len(rs) && rs[i+1] == '>' {
				toks = append(toks, token{kind: tArrow, text: "=>", line: line})
				i += 2
				continue
			}
			if i+1 < len(rs) && rs[i+1] == '=' {
				return nil, errf("comparison operators are not supported")
			}
			toks = append(toks, token{kind: tAssign, text: "=", line: line})
			i++
		case c == '|':
			if i+1 < len(rs) && rs[i+1] == '|' {
				toks = append(toks, token{kind: tOr, text: "||", line: line})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tPipe, text: "|", line: line})
			i++
		default:
			kind, ok := punctuation[c]
			if !ok {
				return nil, errf("unexpected character %q", c)
			}
			toks = append(toks, token{kind: kind, text: string(c), line: line})
			i++
		}
	}
	return toks, nil
}

var punctuation = map[rune]tokenKind{
	'{': tLBrace,
	'}': tRBrace,
	'(': tLParen,
	')': tRParen,
	'[': tLBracket,
	']': tRBracket,
	',': tComma,
	'.': tDot,
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentChar(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

// lexSingleQuoted reads a '...' literal. Only \' and \\ are escapes.
func lexSingleQuoted(rs []rune) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(rs); i++ {
		switch rs[i] {
		case '\\':
			if i+1 < len(rs) && (rs[i+1] == '\'' || rs[i+1] == '\\') {
				b.WriteRune(rs[i+1])
				i++
				continue
			}
			b.WriteRune('\\')
		case '\'':
			return b.String(), i + 1, nil
		default:
			b.WriteRune(rs[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

var doubleEscapes = map[rune]rune{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'0':  0,
	'e':  0x1b,
	's':  ' ',
	'"':  '"',
	'\\': '\\',
	'#':  '#',
}

// lexDoubleQuoted reads a "..." literal, splitting it into literal runs and
// #{...} interpolations.
func lexDoubleQuoted(rs []rune) ([]strPart, int, error) {
	var parts []strPart
	var b strings.Builder

	flush := func() {
		if b.Len() > 0 {
			parts = append(parts, strPart{lit: b.String()})
			b.Reset()
		}
	}

	for i := 1; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '\\':
			if i+1 >= len(rs) {
				return nil, 0, fmt.Errorf("unterminated string")
			}
			if r, ok := doubleEscapes[rs[i+1]]; ok {
				b.WriteRune(r)
			} else {
				b.WriteRune(rs[i+1])
			}
			i++
		case c == '#' && i+1 < len(rs) && rs[i+1] == '{':
			end := -1
			for j := i + 2; j < len(rs); j++ {
				if rs[j] == '}' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, 0, fmt.Errorf("unterminated interpolation")
			}
			expr := strings.TrimSpace(string(rs[i+2 : end]))
			if expr == "" {
				return nil, 0, fmt.Errorf("empty interpolation")
			}
			flush()
			parts = append(parts, strPart{expr: expr, interp: true})
			i = end
		case c == '"':
			flush()
			if len(parts) == 0 {
				parts = append(parts, strPart{})
			}
			return parts, i + 1, nil
		default:
			b.WriteRune(c)
		}
	}
	return nil, 0, fmt.Errorf("unterminated string")
}
