// Package directive reads the Ruby-flavoured configuration DSL used by
// application server process managers. It understands literals, local
// variables, string interpolation, ENV access and do/end blocks, and nothing
// else: the file is data, it is never executed.
package directive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SyntaxError reports a malformed statement.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Parser holds parse settings. The zero value reads ENV from the process
// environment.
type Parser struct {
	// LookupEnv resolves ENV['X'] reads that were not assigned in the file.
	LookupEnv func(key string) (string, bool)
}

// Parse reads a configuration file using the process environment.
func Parse(name string, r io.Reader) (*File, error) {
	return Parser{}.Parse(name, r)
}

// ParseFile opens and parses path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return Parse(path, f)
}

// Parse reads a configuration file.
func (p Parser) Parse(name string, r io.Reader) (*File, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	st := &state{
		file:   &File{Name: name, Env: map[string]string{}, Vars: map[string]Value{}},
		lookup: lookup,
	}

	if err := st.run(lines); err != nil {
		if se, ok := err.(*SyntaxError); ok && se.File == "" {
			se.File = name
		}
		return nil, err
	}
	return st.file, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

type state struct {
	file   *File
	lookup func(string) (string, bool)
}

func (s *state) run(lines []string) error {
	for i := 0; i < len(lines); i++ {
		lineNo := i + 1
		toks, err := lexLine(lines[i], lineNo)
		if err != nil {
			return err
		}
		if len(toks) == 0 {
			continue
		}

		// Statements continue onto the next line after a trailing comma or
		// while brackets are open.
		for needsContinuation(toks) && i+1 < len(lines) {
			i++
			more, err := lexLine(lines[i], i+1)
			if err != nil {
				return err
			}
			toks = append(toks, more...)
		}

		if toks[0].kind == tIdent && toks[0].text == "end" {
			return &SyntaxError{Line: lineNo, Msg: "unexpected 'end'"}
		}

		if len(toks) >= 2 && toks[0].kind == tIdent && toks[1].kind == tIdent && toks[1].text == "do" {
			end, body, err := collectBlock(lines, i+1, lineNo)
			if err != nil {
				return err
			}
			s.file.Hooks = append(s.file.Hooks, Hook{Name: toks[0].text, Body: body, Line: lineNo})
			i = end
			continue
		}

		if err := s.statement(toks, lineNo); err != nil {
			return err
		}
	}
	return nil
}

func needsContinuation(toks []token) bool {
	if toks[len(toks)-1].kind == tComma {
		return true
	}
	depth := 0
	for _, t := range toks {
		switch t.kind {
		case tLBrace, tLParen, tLBracket:
			depth++
		case tRBrace, tRParen, tRBracket:
			depth--
		}
	}
	return depth > 0
}

var blockOpeners = map[string]bool{
	"if": true, "unless": true, "def": true, "class": true, "module": true,
	"begin": true, "case": true, "while": true, "until": true,
}

// collectBlock returns the index of the line holding the matching 'end' and
// the body between. Nesting is tracked by line-leading keywords and trailing
// 'do' so that hook bodies can hold arbitrary Ruby.
func collectBlock(lines []string, start, openLine int) (int, string, error) {
	depth := 1
	var body []string
	for i := start; i < len(lines); i++ {
		fields := strings.Fields(stripComment(lines[i]))
		if len(fields) > 0 {
			first := fields[0]
			switch {
			case first == "end":
				depth--
			case blockOpeners[first]:
				depth++
			case containsDo(fields):
				depth++
			}
		}
		if depth == 0 {
			return i, strings.Join(body, "\n"), nil
		}
		body = append(body, lines[i])
	}
	return 0, "", &SyntaxError{Line: openLine, Msg: "block is missing its 'end'"}
}

func containsDo(fields []string) bool {
	for i, f := range fields {
		if f == "do" {
			// "do" or "do |args|" at the end of the line
			rest := strings.Join(fields[i+1:], " ")
			return rest == "" || (strings.HasPrefix(rest, "|") && strings.HasSuffix(rest, "|"))
		}
	}
	return false
}

// stripComment drops a trailing comment, ignoring '#' inside quotes.
func stripComment(line string) string {
	var quote rune
	for i, c := range line {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '#':
			return line[:i]
		}
	}
	return line
}

func (s *state) statement(toks []token, line int) error {
	c := &cursor{toks: toks, line: line, st: s}
	head := c.next()

	if head.kind != tIdent {
		return c.errorf("expected a directive, got %s", head.kind)
	}

	// ENV['X'] = value
	if head.text == "ENV" && c.peek().kind == tLBracket {
		key, err := c.envKey()
		if err != nil {
			return err
		}
		if c.peek().kind != tAssign {
			return c.errorf("ENV[%q] must be assigned", key)
		}
		c.next()
		v, err := c.expr()
		if err != nil {
			return err
		}
		if err := c.expectEnd(); err != nil {
			return err
		}
		if _, seen := s.file.Env[key]; !seen {
			s.file.EnvKeys = append(s.file.EnvKeys, key)
		}
		s.file.Env[key] = v.Text()
		return nil
	}

	// local = value
	if c.peek().kind == tAssign {
		c.next()
		v, err := c.expr()
		if err != nil {
			return err
		}
		if err := c.expectEnd(); err != nil {
			return err
		}
		s.file.Vars[head.text] = v
		return nil
	}

	args, err := c.arguments()
	if err != nil {
		return err
	}
	s.file.Directives = append(s.file.Directives, Directive{Name: head.text, Args: args, Line: line})
	return nil
}

type cursor struct {
	toks []token
	pos  int
	line int
	st   *state
}

func (c *cursor) peek() token {
	if c.pos >= len(c.toks) {
		return token{kind: tEOF, line: c.line}
	}
	return c.toks[c.pos]
}

func (c *cursor) next() token {
	t := c.peek()
	if c.pos < len(c.toks) {
		c.pos++
	}
	return t
}

func (c *cursor) errorf(format string, args ...any) error {
	line := c.line
	if c.pos < len(c.toks) {
		line = c.toks[c.pos].line
	}
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (c *cursor) expect(kind tokenKind) (token, error) {
	t := c.next()
	if t.kind != kind {
		return t, c.errorf("expected %s, got %s", kind, t.kind)
	}
	return t, nil
}

func (c *cursor) expectEnd() error {
	if t := c.peek(); t.kind != tEOF {
		return c.errorf("unexpected %s", t.kind)
	}
	return nil
}

// arguments parses `a, b, key: v` or `(a, b, key: v)`.
func (c *cursor) arguments() ([]Value, error) {
	paren := false
	if c.peek().kind == tLParen {
		c.next()
		paren = true
	}

	var args []Value
	closing := tEOF
	if paren {
		closing = tRParen
	}

	for c.peek().kind != closing {
		if c.peek().kind == tLabel || c.isArrowPair() {
			h, err := c.pairs(closing)
			if err != nil {
				return nil, err
			}
			args = append(args, h)
			break
		}
		v, err := c.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if c.peek().kind != tComma {
			break
		}
		c.next()
	}

	if paren {
		if _, err := c.expect(tRParen); err != nil {
			return nil, err
		}
	}
	if err := c.expectEnd(); err != nil {
		return nil, err
	}
	return args, nil
}

// isArrowPair looks ahead for `:key =>` or `'key' =>` without consuming.
func (c *cursor) isArrowPair() bool {
	t := c.peek()
	if t.kind != tSymbol && t.kind != tString {
		return false
	}
	return c.pos+1 < len(c.toks) && c.toks[c.pos+1].kind == tArrow
}

// expr parses a value with optional `||` fallbacks.
func (c *cursor) expr() (Value, error) {
	v, err := c.primary()
	if err != nil {
		return Nil, err
	}
	for c.peek().kind == tOr {
		c.next()
		alt, err := c.primary()
		if err != nil {
			return Nil, err
		}
		if !v.Truthy() {
			v = alt
		}
	}
	return v, nil
}

func (c *cursor) primary() (Value, error) {
	t := c.next()
	switch t.kind {
	case tString:
		s, err := c.st.interpolate(t.parts, t.line)
		if err != nil {
			return Nil, err
		}
		return String(s), nil
	case tInt:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return Nil, &SyntaxError{Line: t.line, Msg: fmt.Sprintf("invalid integer %q", t.text)}
		}
		return Int(n), nil
	case tSymbol:
		return Symbol(t.text), nil
	case tLBrace:
		h, err := c.pairs(tRBrace)
		if err != nil {
			return Nil, err
		}
		if _, err := c.expect(tRBrace); err != nil {
			return Nil, err
		}
		return h, nil
	case tLParen:
		v, err := c.expr()
		if err != nil {
			return Nil, err
		}
		if _, err := c.expect(tRParen); err != nil {
			return Nil, err
		}
		return v, nil
	case tIdent:
		return c.identValue(t)
	default:
		return Nil, &SyntaxError{Line: t.line, Msg: fmt.Sprintf("unexpected %s", t.kind)}
	}
}

func (c *cursor) identValue(t token) (Value, error) {
	switch t.text {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "nil":
		return Nil, nil
	case "ENV":
		return c.envRead()
	}
	if v, ok := c.st.file.Vars[t.text]; ok {
		return v, nil
	}
	return Nil, &SyntaxError{Line: t.line, Msg: fmt.Sprintf("undefined local variable %q", t.text)}
}

// envRead handles ENV['X'] and ENV.fetch('X'[, default]).
func (c *cursor) envRead() (Value, error) {
	switch c.peek().kind {
	case tLBracket:
		key, err := c.envKey()
		if err != nil {
			return Nil, err
		}
		if v, ok := c.st.env(key); ok {
			return String(v), nil
		}
		return Nil, nil
	case tDot:
		c.next()
		method, err := c.expect(tIdent)
		if err != nil {
			return Nil, err
		}
		if method.text != "fetch" {
			return Nil, c.errorf("unsupported ENV method %q", method.text)
		}
		if _, err := c.expect(tLParen); err != nil {
			return Nil, err
		}
		keyVal, err := c.expr()
		if err != nil {
			return Nil, err
		}
		fallback := Nil
		hasFallback := false
		if c.peek().kind == tComma {
			c.next()
			if fallback, err = c.expr(); err != nil {
				return Nil, err
			}
			hasFallback = true
		}
		if _, err := c.expect(tRParen); err != nil {
			return Nil, err
		}
		if v, ok := c.st.env(keyVal.Text()); ok {
			return String(v), nil
		}
		if !hasFallback {
			return Nil, c.errorf("ENV.fetch(%q): variable is not set", keyVal.Text())
		}
		return fallback, nil
	default:
		return Nil, c.errorf("ENV must be indexed")
	}
}

func (c *cursor) envKey() (string, error) {
	if _, err := c.expect(tLBracket); err != nil {
		return "", err
	}
	key, err := c.expr()
	if err != nil {
		return "", err
	}
	if key.Kind != KindString {
		return "", c.errorf("ENV key must be a string")
	}
	if _, err := c.expect(tRBracket); err != nil {
		return "", err
	}
	return key.Str, nil
}

// pairs parses hash entries up to (not including) the closing token.
func (c *cursor) pairs(closing tokenKind) (Value, error) {
	h := Value{Kind: KindHash}
	for c.peek().kind != closing {
		var key string
		t := c.next()
		switch t.kind {
		case tLabel:
			key = t.text
		case tSymbol, tString:
			if t.kind == tSymbol {
				key = t.text
			} else {
				s, err := c.st.interpolate(t.parts, t.line)
				if err != nil {
					return Nil, err
				}
				key = s
			}
			if _, err := c.expect(tArrow); err != nil {
				return Nil, err
			}
		default:
			return Nil, &SyntaxError{Line: t.line, Msg: fmt.Sprintf("expected hash key, got %s", t.kind)}
		}

		v, err := c.expr()
		if err != nil {
			return Nil, err
		}
		h.Hash = append(h.Hash, Pair{Key: key, Value: v})

		if c.peek().kind != tComma {
			break
		}
		c.next()
	}
	return h, nil
}

func (s *state) env(key string) (string, bool) {
	if v, ok := s.file.Env[key]; ok {
		return v, true
	}
	return s.lookup(key)
}

// interpolate evaluates the parts of a double-quoted string. Each #{...}
// holds a single expression using the same grammar as arguments.
func (s *state) interpolate(parts []strPart, line int) (string, error) {
	var b strings.Builder
	for _, p := range parts {
		if !p.interp {
			b.WriteString(p.lit)
			continue
		}
		toks, err := lexLine(p.expr, line)
		if err != nil {
			return "", err
		}
		c := &cursor{toks: toks, line: line, st: s}
		v, err := c.expr()
		if err != nil {
			return "", err
		}
		if err := c.expectEnd(); err != nil {
			return "", err
		}
		b.WriteString(v.Text())
	}
	return b.String(), nil
}
