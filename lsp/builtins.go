// Package lsp extracts completion data from btrc stdlib sources. It
// parses them with the compiler's own lexer and parser and exports a
// static table of class, field, method and property signatures for an
// unrelated completion service to consume.
package lsp

import (
	"github.com/samber/lo"

	btrc "github.com/schiffy91/btrc"
)

// ParamInfo is one parameter of a builtin method signature.
type ParamInfo struct {
	Name       string
	Type       string
	HasDefault bool
}

// MethodInfo is a builtin method or constructor signature.
type MethodInfo struct {
	Name       string
	Access     string
	ReturnType string
	Params     []ParamInfo
	IsStatic   bool
}

// FieldInfo is a builtin field or property.
type FieldInfo struct {
	Name       string
	Access     string
	Type       string
	IsProperty bool
}

// ClassInfo is one builtin class with its members.
type ClassInfo struct {
	Name    string
	Parent  string
	Fields  []FieldInfo
	Methods []MethodInfo
}

// FunctionInfo is one free function signature.
type FunctionInfo struct {
	Name       string
	ReturnType string
	Params     []ParamInfo
}

// Builtins is the exported completion table.
type Builtins struct {
	Classes   []ClassInfo
	Functions []FunctionInfo
	Enums     map[string][]string
}

// CollectBuiltins parses stdlib-shaped source text and reads the
// signatures out of the resulting AST. Semantic diagnostics in stdlib
// sources are ignored — the table only needs declared shapes.
func CollectBuiltins(source string) (*Builtins, error) {
	analyzed, err := btrc.Analyze(source)
	if err != nil {
		return nil, err
	}

	table := &Builtins{Enums: analyzed.EnumTable}

	for _, name := range analyzed.ClassOrder {
		cls := analyzed.ClassTable[name]
		info := ClassInfo{Name: name, Parent: cls.Parent}

		for _, fld := range cls.OrderedFields() {
			info.Fields = append(info.Fields, FieldInfo{
				Name:   fld.Name,
				Access: fld.Access,
				Type:   fld.Type.String(),
			})
		}
		for _, propName := range cls.PropertyOrder {
			prop := cls.Properties[propName]
			info.Fields = append(info.Fields, FieldInfo{
				Name:       prop.Name,
				Access:     prop.Access,
				Type:       prop.Type.String(),
				IsProperty: true,
			})
		}
		for _, method := range cls.OrderedMethods() {
			info.Methods = append(info.Methods, MethodInfo{
				Name:       method.Name,
				Access:     method.Access,
				ReturnType: method.ReturnType.String(),
				Params:     paramInfos(method.Params),
				IsStatic:   method.Access == "class",
			})
		}
		table.Classes = append(table.Classes, info)
	}

	for _, fn := range analyzed.FunctionTable {
		table.Functions = append(table.Functions, FunctionInfo{
			Name:       fn.Name,
			ReturnType: fn.ReturnType.String(),
			Params:     paramInfos(fn.Params),
		})
	}

	return table, nil
}

func paramInfos(params []*btrc.Param) []ParamInfo {
	return lo.Map(params, func(p *btrc.Param, _ int) ParamInfo {
		return ParamInfo{
			Name:       p.Name,
			Type:       p.Type.String(),
			HasDefault: p.Default != nil,
		}
	})
}

// Lookup finds a class by name.
func (b *Builtins) Lookup(name string) (ClassInfo, bool) {
	return lo.Find(b.Classes, func(c ClassInfo) bool { return c.Name == name })
}

// CompletionsFor returns the member names a completion request on the
// given class should offer, public members only.
func (b *Builtins) CompletionsFor(className string) []string {
	cls, ok := b.Lookup(className)
	if !ok {
		return nil
	}
	var names []string
	for _, f := range cls.Fields {
		if f.Access != "private" {
			names = append(names, f.Name)
		}
	}
	for _, m := range cls.Methods {
		if m.Access != "private" && m.Name != className {
			names = append(names, m.Name)
		}
	}
	return names
}
