package directive

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the type of a Value.
type Kind int

const (
	KindNil Kind = iota
	KindString
	KindInt
	KindBool
	KindSymbol
	KindHash
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	case KindSymbol:
		return "symbol"
	case KindHash:
		return "hash"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a literal argument of a directive.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Bool bool
	Hash []Pair
}

// Pair is one entry of a hash literal. Keys keep their source order.
type Pair struct {
	Key   string
	Value Value
}

// Nil is the nil literal.
var Nil = Value{Kind: KindNil}

// String returns a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int returns an integer Value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Symbol returns a symbol Value.
func Symbol(s string) Value { return Value{Kind: KindSymbol, Str: s} }

// Truthy reports whether the value counts as true in a `||` chain: anything
// except nil and false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.Bool
	default:
		return true
	}
}

// Text renders the value as it would appear when interpolated into a string.
func (v Value) Text() string {
	switch v.Kind {
	case KindNil:
		return ""
	case KindString, KindSymbol:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.String()
	}
}

// String renders the value as a source literal.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindString:
		return strconv.Quote(v.Str)
	case KindSymbol:
		return ":" + v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindHash:
		items := make([]string, 0, len(v.Hash))
		for _, p := range v.Hash {
			items = append(items, p.Key+": "+p.Value.String())
		}
		return "{ " + strings.Join(items, ", ") + " }"
	default:
		return "?"
	}
}

// Directive is one top-level method call of the configuration file.
type Directive struct {
	Name string
	Args []Value
	Line int
}

// Hook is a `name do ... end` block. The body is kept verbatim and never run.
type Hook struct {
	Name string
	Body string
	Line int
}

// File is the parsed form of a configuration file.
type File struct {
	Name       string
	Directives []Directive
	Hooks      []Hook

	// Env holds ENV['X'] = ... assignments in source order of first write.
	Env     map[string]string
	EnvKeys []string

	// Vars holds local variable assignments.
	Vars map[string]Value
}
