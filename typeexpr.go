package btrc

import (
	"strings"

	"github.com/samber/lo"
)

// fnPtrBase is the internal marker base used to carry lambda types
// through the node-type map. Its first generic argument is the return
// type, the rest are parameter types.
const fnPtrBase = "__fn_ptr"

// TypeExpr describes a btrc type: a base name (primitive, class,
// container, or a composite like "unsigned long"), optional generic
// arguments, pointer depth, and C-style array decoration.
type TypeExpr struct {
	Base         string
	GenericArgs  []*TypeExpr
	PointerDepth int
	IsArray      bool
	ArraySize    Expr
	Line         int
	Col          int
}

func NewTypeExpr(base string) *TypeExpr {
	return &TypeExpr{Base: base}
}

func NewPointerType(base string, depth int) *TypeExpr {
	return &TypeExpr{Base: base, PointerDepth: depth}
}

func NewGenericType(base string, args ...*TypeExpr) *TypeExpr {
	return &TypeExpr{Base: base, GenericArgs: args}
}

// Clone returns a deep copy of the type expression. ArraySize is
// shared; expression nodes are never mutated after parsing.
func (t *TypeExpr) Clone() *TypeExpr {
	if t == nil {
		return nil
	}
	c := *t
	c.GenericArgs = lo.Map(t.GenericArgs, func(a *TypeExpr, _ int) *TypeExpr { return a.Clone() })
	return &c
}

// Equal compares two types structurally, ignoring positions.
func (t *TypeExpr) Equal(o *TypeExpr) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Base != o.Base || t.PointerDepth != o.PointerDepth ||
		t.IsArray != o.IsArray || len(t.GenericArgs) != len(o.GenericArgs) {
		return false
	}
	for i, a := range t.GenericArgs {
		if !a.Equal(o.GenericArgs[i]) {
			return false
		}
	}
	return true
}

// String renders the type the way it is spelled in source, e.g.
// "List<int>", "Token*", "Map<string, int>". Used in diagnostics.
func (t *TypeExpr) String() string {
	if t == nil {
		return "void"
	}
	var b strings.Builder
	b.WriteString(t.Base)
	if len(t.GenericArgs) > 0 {
		b.WriteString("<")
		for i, a := range t.GenericArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteString(">")
	}
	b.WriteString(strings.Repeat("*", t.PointerDepth))
	return b.String()
}

func (t *TypeExpr) isVoid() bool {
	return t == nil || (t.Base == "void" && t.PointerDepth == 0)
}

func (t *TypeExpr) isStringLike() bool {
	if t == nil {
		return false
	}
	return t.Base == "string" || (t.Base == "char" && t.PointerDepth >= 1)
}

func (t *TypeExpr) isCollection() bool {
	if t == nil {
		return false
	}
	switch t.Base {
	case "List", "Map", "Array", "Set":
		return true
	}
	return false
}

// builtinGenericArity maps the built-in containers to their expected
// generic argument count, used by the analyzer's arity check.
var builtinGenericArity = map[string]int{
	"List": 1, "Map": 2, "Array": 1, "Set": 1,
}
