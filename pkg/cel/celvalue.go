// Package cel parses and emits the restricted CEL (Common Expression
// Language) grammar used as a certification descriptor: a fixed schema of
// object/array/function/string shapes, never a general expression
// evaluator. See §4.C.
package cel

import (
	"fmt"
	"strings"
)

// ValueKind discriminates the intermediate CEL AST shapes produced by the
// parser, before they are mapped onto a typed Descriptor.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueArray
	ValueObject
	ValueFunction
)

// Value is the intermediate, schema-agnostic parse tree: {String | Array |
// Object(name, fields) | Function(name, args)}.
type Value struct {
	Kind ValueKind
	Str  string

	Elements []Value

	Name   string          // Object or Function name
	Fields map[string]Value // Object fields
	Args   []Value          // Function arguments
}

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return fmt.Sprintf("%q", v.Str)
	case ValueArray:
		parts := make([]string, len(v.Elements))
		for i, e := range v.Elements {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case ValueObject:
		return v.Name + "{...}"
	case ValueFunction:
		return v.Name + "(...)"
	default:
		return "<invalid>"
	}
}
