package btrc

import (
	"fmt"
	"strings"
)

// Expression lowering. Everything renders to a C expression string;
// the few constructs that need statements first (f-strings as values)
// emit those through the writer and hand back the temp name.

func (g *CodeGen) exprToC(expr Expr) string {
	if expr == nil {
		return ""
	}

	switch e := expr.(type) {
	case *IntLiteral:
		// 0o/0O octal spelling becomes C's 0 prefix.
		if strings.HasPrefix(e.Raw, "0o") || strings.HasPrefix(e.Raw, "0O") {
			return "0" + e.Raw[2:]
		}
		return e.Raw

	case *FloatLiteral:
		return e.Raw

	case *StringLiteral:
		return e.Value

	case *CharLiteral:
		return e.Value

	case *BoolLiteral:
		if e.Value {
			return "true"
		}
		return "false"

	case *NullLiteral:
		return "NULL"

	case *Identifier:
		return e.Name

	case *SelfExpr:
		return "self"

	case *BinaryExpr:
		return g.binaryToC(e)

	case *UnaryExpr:
		return g.unaryToC(e)

	case *CallExpr:
		return g.callToC(e)

	case *IndexExpr:
		return g.indexToC(e)

	case *FieldAccessExpr:
		return g.fieldAccessToC(e)

	case *AssignExpr:
		return g.assignToC(e)

	case *TernaryExpr:
		return fmt.Sprintf("(%s ? %s : %s)",
			g.exprToC(e.Cond), g.exprToC(e.TrueExpr), g.exprToC(e.FalseExpr))

	case *CastExpr:
		return fmt.Sprintf("((%s)%s)", g.typeToC(e.TargetType), g.exprToC(e.Expr))

	case *SizeofExpr:
		if e.TypeOperand != nil {
			return fmt.Sprintf("sizeof(%s)", g.typeToC(e.TypeOperand))
		}
		return fmt.Sprintf("sizeof(%s)", g.exprToC(e.ExprOperand))

	case *NewExpr:
		return g.newToC(e)

	case *ListLiteral:
		// List literals normally lower at the var-decl site.
		return "/* list literal */"

	case *MapLiteral:
		return "/* map literal */"

	case *FStringLiteral:
		return g.fstringToC(e)

	case *TupleLiteral:
		return g.tupleToC(e)

	case *BraceInitializer:
		elems := make([]string, 0, len(e.Elements))
		for _, el := range e.Elements {
			elems = append(elems, g.exprToC(el))
		}
		return "{" + strings.Join(elems, ", ") + "}"

	case *LambdaExpr:
		if e.CName != "" {
			return e.CName
		}
		return "/* lambda */"
	}
	return "/* unknown expr */"
}

// opMethodNames maps binary operators to the dunder method a class may
// define to overload them. Codegen is authoritative here; the analyzer
// does not normalize operator overloads.
var opMethodNames = map[string]string{
	"+": "__add__", "-": "__sub__", "*": "__mul__", "/": "__div__",
	"%": "__mod__", "==": "__eq__", "!=": "__ne__",
	"<": "__lt__", ">": "__gt__", "<=": "__le__", ">=": "__ge__",
}

func (g *CodeGen) binaryToC(e *BinaryExpr) string {
	leftType := g.nodeTypes[e.Left]

	// Operator overloading: dispatch when the left operand's class
	// defines the matching dunder method.
	if leftType != nil {
		if cls, ok := g.classTable[leftType.Base]; ok {
			if method, ok := opMethodNames[e.Op]; ok {
				if _, defined := cls.Methods[method]; defined {
					return fmt.Sprintf("%s_%s(%s, %s)",
						leftType.Base, method, g.exprToC(e.Left), g.exprToC(e.Right))
				}
			}
		}
	}

	// Null coalescing evaluates the left side exactly once via a
	// statement expression.
	if e.Op == "??" {
		cType := "void*"
		if leftType != nil {
			cType = g.typeToC(leftType)
		}
		g.tmpCounter++
		tmp := fmt.Sprintf("__btrc_tmp_%d", g.tmpCounter)
		return fmt.Sprintf("({ %s %s = %s; %s != NULL ? %s : %s; })",
			cType, tmp, g.exprToC(e.Left), tmp, tmp, g.exprToC(e.Right))
	}

	if leftType != nil && leftType.Base == "string" {
		left, right := g.exprToC(e.Left), g.exprToC(e.Right)
		switch e.Op {
		case "+":
			return fmt.Sprintf("__btrc_strcat(%s, %s)", left, right)
		case "==":
			return fmt.Sprintf("(strcmp(%s, %s) == 0)", left, right)
		case "!=":
			return fmt.Sprintf("(strcmp(%s, %s) != 0)", left, right)
		case "<", ">", "<=", ">=":
			return fmt.Sprintf("(strcmp(%s, %s) %s 0)", left, right, e.Op)
		}
	}

	left, right := g.exprToC(e.Left), g.exprToC(e.Right)

	// Division and modulo on known numeric types route through the
	// safety helpers.
	if e.Op == "/" || e.Op == "%" {
		rightType := g.nodeTypes[e.Right]
		knownNumeric := leftType != nil && leftType.PointerDepth == 0 &&
			(leftType.Base == "int" || leftType.Base == "float" || leftType.Base == "double")
		if knownNumeric {
			if e.Op == "/" {
				if leftType.Base != "int" || (rightType != nil && (rightType.Base == "float" || rightType.Base == "double")) {
					return fmt.Sprintf("__btrc_div_double(%s, %s)", left, right)
				}
				return fmt.Sprintf("__btrc_div_int(%s, %s)", left, right)
			}
			return fmt.Sprintf("__btrc_mod_int(%s, %s)", left, right)
		}
	}

	return fmt.Sprintf("(%s %s %s)", left, e.Op, right)
}

func (g *CodeGen) unaryToC(e *UnaryExpr) string {
	// Unary minus overloading via __neg__.
	if e.Prefix && e.Op == "-" {
		if t := g.nodeTypes[e.Operand]; t != nil {
			if cls, ok := g.classTable[t.Base]; ok {
				if _, defined := cls.Methods["__neg__"]; defined {
					operand := g.exprToC(e.Operand)
					if t.PointerDepth > 0 {
						return fmt.Sprintf("%s___neg__(%s)", t.Base, operand)
					}
					return fmt.Sprintf("%s___neg__(&%s)", t.Base, operand)
				}
			}
		}
	}
	operand := g.exprToC(e.Operand)
	if e.Prefix {
		return fmt.Sprintf("(%s%s)", e.Op, operand)
	}
	return fmt.Sprintf("(%s%s)", operand, e.Op)
}

func (g *CodeGen) indexToC(e *IndexExpr) string {
	obj := g.exprToC(e.Obj)
	idx := g.exprToC(e.Index)
	collType := g.collectionTypeOf(e.Obj)
	if collType != nil {
		switch collType.Base {
		case "List":
			return fmt.Sprintf("%s_get(%s, %s)", g.typeToC(collType), g.collectionRef(obj, collType), idx)
		case "Array":
			if collType.PointerDepth > 0 {
				return fmt.Sprintf("%s->data[%s]", obj, idx)
			}
			return fmt.Sprintf("%s.data[%s]", obj, idx)
		case "Map":
			return fmt.Sprintf("%s_get(%s, %s)", g.typeToC(collType), g.collectionRef(obj, collType), idx)
		}
	}
	return fmt.Sprintf("%s[%s]", obj, idx)
}

func (g *CodeGen) collectionTypeOf(obj Expr) *TypeExpr {
	if t := g.nodeTypes[obj]; t != nil && t.isCollection() {
		return t
	}
	return nil
}

// collectionRef renders a receiver for container helper calls, which
// always take the struct by pointer.
func (g *CodeGen) collectionRef(objC string, t *TypeExpr) string {
	if t.PointerDepth > 0 {
		return objC
	}
	return "&" + objC
}

func (g *CodeGen) assignToC(e *AssignExpr) string {
	// Property setter rewriting: obj.prop = value.
	if access, ok := e.Target.(*FieldAccessExpr); ok && e.Op == "=" {
		if prop := g.propertyFor(access); prop != nil && prop.HasSetter {
			if className := g.classNameFor(access.Obj); className != "" {
				return fmt.Sprintf("%s_set_%s(%s, %s)",
					className, access.Field, g.exprToC(access.Obj), g.exprToC(e.Value))
			}
		}
	}

	// Index assignment on List/Map lowers to _set/_put.
	if idx, ok := e.Target.(*IndexExpr); ok && e.Op == "=" {
		if collType := g.collectionTypeOf(idx.Obj); collType != nil {
			objC := g.exprToC(idx.Obj)
			switch collType.Base {
			case "List":
				return fmt.Sprintf("%s_set(%s, %s, %s)", g.typeToC(collType),
					g.collectionRef(objC, collType), g.exprToC(idx.Index), g.exprToC(e.Value))
			case "Map":
				return fmt.Sprintf("%s_put(%s, %s, %s)", g.typeToC(collType),
					g.collectionRef(objC, collType), g.exprToC(idx.Index), g.exprToC(e.Value))
			}
		}
	}

	target := g.exprToC(e.Target)
	targetType := g.nodeTypes[e.Target]

	// Collection literal assignment: x = [] / x = {} re-initializes.
	isCollectionLit := false
	switch v := e.Value.(type) {
	case *ListLiteral, *MapLiteral:
		isCollectionLit = true
	case *BraceInitializer:
		isCollectionLit = len(v.Elements) == 0
	}
	if isCollectionLit && targetType != nil && targetType.isCollection() {
		return fmt.Sprintf("(%s = %s_new())", target, g.typeToC(targetType))
	}

	value := g.exprToC(e.Value)

	if e.Op == "+=" && targetType != nil && targetType.Base == "string" {
		return fmt.Sprintf("(%s = __btrc_strcat(%s, %s))", target, target, value)
	}

	if (e.Op == "/=" || e.Op == "%=") && targetType != nil && targetType.PointerDepth == 0 {
		switch targetType.Base {
		case "int", "float", "double":
			if e.Op == "/=" {
				if targetType.Base == "int" {
					return fmt.Sprintf("(%s = __btrc_div_int(%s, %s))", target, target, value)
				}
				return fmt.Sprintf("(%s = __btrc_div_double(%s, %s))", target, target, value)
			}
			return fmt.Sprintf("(%s = __btrc_mod_int(%s, %s))", target, target, value)
		}
	}

	return fmt.Sprintf("(%s %s %s)", target, e.Op, value)
}

// ---- Calls ----

func (g *CodeGen) callToC(expr *CallExpr) string {
	if _, ok := expr.Callee.(*FieldAccessExpr); ok {
		return g.methodCallToC(expr)
	}

	if ident, ok := expr.Callee.(*Identifier); ok {
		// Constructor spelled ClassName(args).
		if g.isClassName(ident.Name) {
			args := g.fillConstructorArgs(ident.Name, expr.Args)
			return fmt.Sprintf("%s_new(%s)", ident.Name, strings.Join(args, ", "))
		}
		// print() builtin unless the user defined their own.
		if ident.Name == "print" && !g.hasUserFunction("print") {
			return g.printToC(expr)
		}
		args := g.fillFunctionArgs(ident.Name, expr.Args)
		return fmt.Sprintf("%s(%s)", ident.Name, strings.Join(args, ", "))
	}

	args := make([]string, 0, len(expr.Args))
	for _, arg := range expr.Args {
		args = append(args, g.exprToC(arg))
	}
	return fmt.Sprintf("%s(%s)", g.exprToC(expr.Callee), strings.Join(args, ", "))
}

func (g *CodeGen) hasUserFunction(name string) bool {
	_, ok := g.analyzed.FunctionTable[name]
	return ok
}

// fillDefaultArgs appends default expressions for trailing parameters
// a call site omitted.
func (g *CodeGen) fillDefaultArgs(params []*Param, provided []Expr) []string {
	args := make([]string, 0, len(params))
	for _, arg := range provided {
		args = append(args, g.exprToC(arg))
	}
	for i := len(provided); i < len(params); i++ {
		if params[i].Default != nil {
			args = append(args, g.exprToC(params[i].Default))
		}
	}
	return args
}

func (g *CodeGen) fillFunctionArgs(name string, provided []Expr) []string {
	if fn, ok := g.analyzed.FunctionTable[name]; ok {
		return g.fillDefaultArgs(fn.Params, provided)
	}
	args := make([]string, 0, len(provided))
	for _, arg := range provided {
		args = append(args, g.exprToC(arg))
	}
	return args
}

func (g *CodeGen) fillConstructorArgs(className string, provided []Expr) []string {
	if cls, ok := g.classTable[className]; ok && cls.Constructor != nil {
		return g.fillDefaultArgs(cls.Constructor.Params, provided)
	}
	args := make([]string, 0, len(provided))
	for _, arg := range provided {
		args = append(args, g.exprToC(arg))
	}
	return args
}

func (g *CodeGen) fillMethodArgs(className, methodName string, provided []Expr) []string {
	if cls, ok := g.classTable[className]; ok {
		if method, ok := cls.Methods[methodName]; ok {
			return g.fillDefaultArgs(method.Params, provided)
		}
	}
	args := make([]string, 0, len(provided))
	for _, arg := range provided {
		args = append(args, g.exprToC(arg))
	}
	return args
}

// collectionPtrArgMethods take a second collection of the same type by
// pointer.
var collectionPtrArgMethods = map[string]bool{
	"extend": true, "unite": true, "intersect": true, "subtract": true,
	"merge": true, "symmetricDifference": true, "isSubsetOf": true,
	"isSupersetOf": true, "addAll": true,
}

func (g *CodeGen) methodCallToC(expr *CallExpr) string {
	access := expr.Callee.(*FieldAccessExpr)
	obj := access.Obj
	methodName := access.Field

	// Stdlib static dispatch: Strings.x() / Math.x(), unless shadowed
	// by a user class of the same name.
	if ident, ok := obj.(*Identifier); ok && !g.isClassName(ident.Name) {
		switch ident.Name {
		case "Strings":
			return g.stringsStaticToC(methodName, expr.Args)
		case "Math":
			return g.mathStaticToC(methodName, expr.Args)
		}
	}

	// Static method call: ClassName.method(args).
	if ident, ok := obj.(*Identifier); ok && g.isClassName(ident.Name) {
		if _, inScope := g.nodeTypes[obj]; !inScope {
			args := g.fillMethodArgs(ident.Name, methodName, expr.Args)
			return fmt.Sprintf("%s_%s(%s)", ident.Name, methodName, strings.Join(args, ", "))
		}
	}

	objC := g.exprToC(obj)
	objType := g.nodeTypes[obj]

	// Numeric/bool toString().
	if objType != nil && objType.PointerDepth == 0 && methodName == "toString" {
		switch objType.Base {
		case "int":
			return fmt.Sprintf("__btrc_intToString(%s)", objC)
		case "long":
			return fmt.Sprintf("__btrc_longToString(%s)", objC)
		case "float":
			return fmt.Sprintf("__btrc_floatToString(%s)", objC)
		case "double":
			return fmt.Sprintf("__btrc_doubleToString(%s)", objC)
		case "bool":
			return fmt.Sprintf("(%s ? \"true\" : \"false\")", objC)
		}
	}

	if objType != nil && objType.isStringLike() {
		return g.stringMethodToC(objC, methodName, expr.Args)
	}

	if collType := g.collectionTypeOf(obj); collType != nil {
		return g.collectionMethodToC(collType, objC, methodName, expr.Args, access.Arrow)
	}

	// Instance method on a user class; self is already a pointer.
	if className := g.classNameFor(obj); className != "" {
		args := append([]string{objC}, g.fillMethodArgs(className, methodName, expr.Args)...)
		return fmt.Sprintf("%s_%s(%s)", className, methodName, strings.Join(args, ", "))
	}

	// Fallback: C-style member function pointer.
	args := make([]string, 0, len(expr.Args))
	for _, arg := range expr.Args {
		args = append(args, g.exprToC(arg))
	}
	sep := "."
	if access.Arrow {
		sep = "->"
	}
	return fmt.Sprintf("%s%s%s(%s)", objC, sep, methodName, strings.Join(args, ", "))
}

func (g *CodeGen) collectionMethodToC(t *TypeExpr, objC, methodName string, args []Expr, arrow bool) string {
	// Aliases.
	switch methodName {
	case "addAll":
		methodName = "extend"
	case "subList":
		methodName = "slice"
	case "removeAt":
		methodName = "remove"
	}
	cType := g.typeToC(t)
	objRef := objC
	if !arrow && t.PointerDepth == 0 {
		objRef = "&" + objC
	}
	translated := make([]string, 0, len(args)+1)
	translated = append(translated, objRef)
	for i, arg := range args {
		argC := g.exprToC(arg)
		if i == 0 && collectionPtrArgMethods[methodName] {
			if argType := g.nodeTypes[arg]; argType != nil && argType.PointerDepth == 0 {
				argC = "&" + argC
			}
		}
		translated = append(translated, argC)
	}
	return fmt.Sprintf("%s_%s(%s)", cType, methodName, strings.Join(translated, ", "))
}

// classNameFor resolves the receiver's class. self always dispatches
// through the class currently being emitted so inherited methods stay
// monomorphic against the child.
func (g *CodeGen) classNameFor(obj Expr) string {
	if _, ok := obj.(*SelfExpr); ok && g.currentClass != nil {
		return g.currentClass.Name
	}
	if t := g.nodeTypes[obj]; t != nil && g.isClassName(t.Base) {
		return t.Base
	}
	if ident, ok := obj.(*Identifier); ok && g.isClassName(ident.Name) {
		return ident.Name
	}
	return ""
}

// ---- String methods ----

func (g *CodeGen) stringMethodToC(objC, methodName string, argExprs []Expr) string {
	args := make([]string, 0, len(argExprs))
	for _, a := range argExprs {
		args = append(args, g.exprToC(a))
	}
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch methodName {
	case "len", "byteLen":
		return fmt.Sprintf("(int)strlen(%s)", objC)
	case "charLen":
		return fmt.Sprintf("__btrc_utf8_charlen(%s)", objC)
	case "contains":
		return fmt.Sprintf("__btrc_strContains(%s, %s)", objC, arg(0))
	case "startsWith":
		return fmt.Sprintf("__btrc_startsWith(%s, %s)", objC, arg(0))
	case "endsWith":
		return fmt.Sprintf("__btrc_endsWith(%s, %s)", objC, arg(0))
	case "substring":
		return fmt.Sprintf("__btrc_substring(%s, %s)", objC, strings.Join(args, ", "))
	case "trim":
		return fmt.Sprintf("__btrc_trim(%s)", objC)
	case "lstrip":
		return fmt.Sprintf("__btrc_lstrip(%s)", objC)
	case "rstrip":
		return fmt.Sprintf("__btrc_rstrip(%s)", objC)
	case "toUpper":
		return fmt.Sprintf("__btrc_toUpper(%s)", objC)
	case "toLower":
		return fmt.Sprintf("__btrc_toLower(%s)", objC)
	case "indexOf":
		return fmt.Sprintf("__btrc_indexOf(%s, %s)", objC, arg(0))
	case "lastIndexOf":
		return fmt.Sprintf("__btrc_lastIndexOf(%s, %s)", objC, arg(0))
	case "split":
		return fmt.Sprintf("__btrc_split(%s, %s)", objC, arg(0))
	case "charAt":
		return fmt.Sprintf("__btrc_charAt(%s, %s)", objC, arg(0))
	case "equals":
		return fmt.Sprintf("(strcmp(%s, %s) == 0)", objC, arg(0))
	case "replace":
		return fmt.Sprintf("__btrc_replace(%s, %s, %s)", objC, arg(0), arg(1))
	case "repeat":
		return fmt.Sprintf("__btrc_repeat(%s, %s)", objC, arg(0))
	case "count":
		return fmt.Sprintf("__btrc_count(%s, %s)", objC, arg(0))
	case "find":
		return fmt.Sprintf("__btrc_find(%s, %s, %s)", objC, arg(0), arg(1))
	case "capitalize":
		return fmt.Sprintf("__btrc_capitalize(%s)", objC)
	case "title":
		return fmt.Sprintf("__btrc_title(%s)", objC)
	case "swapCase":
		return fmt.Sprintf("__btrc_swapCase(%s)", objC)
	case "padLeft":
		return fmt.Sprintf("__btrc_padLeft(%s, %s, %s)", objC, arg(0), arg(1))
	case "padRight":
		return fmt.Sprintf("__btrc_padRight(%s, %s, %s)", objC, arg(0), arg(1))
	case "center":
		return fmt.Sprintf("__btrc_center(%s, %s, %s)", objC, arg(0), arg(1))
	case "zfill":
		return fmt.Sprintf("__btrc_zfill(%s, %s)", objC, arg(0))
	case "isBlank":
		return fmt.Sprintf("__btrc_isBlank(%s)", objC)
	case "isAlnum":
		return fmt.Sprintf("__btrc_isAlnumStr(%s)", objC)
	case "isUpper":
		return fmt.Sprintf("__btrc_isUpper(%s)", objC)
	case "isLower":
		return fmt.Sprintf("__btrc_isLower(%s)", objC)
	case "isDigitStr":
		return fmt.Sprintf("__btrc_isDigitStr(%s)", objC)
	case "isAlphaStr":
		return fmt.Sprintf("__btrc_isAlphaStr(%s)", objC)
	case "toInt":
		return fmt.Sprintf("atoi(%s)", objC)
	case "toFloat":
		return fmt.Sprintf("((float)atof(%s))", objC)
	case "toDouble":
		return fmt.Sprintf("atof(%s)", objC)
	case "toLong":
		return fmt.Sprintf("atol(%s)", objC)
	case "toBool":
		return fmt.Sprintf("(strlen(%s) > 0 && strcmp(%s, \"false\") != 0 && strcmp(%s, \"0\") != 0)", objC, objC, objC)
	case "reverse":
		return fmt.Sprintf("__btrc_reverse(%s)", objC)
	case "isEmpty":
		return fmt.Sprintf("__btrc_isEmpty(%s)", objC)
	case "removePrefix":
		return fmt.Sprintf("__btrc_removePrefix(%s, %s)", objC, arg(0))
	case "removeSuffix":
		return fmt.Sprintf("__btrc_removeSuffix(%s, %s)", objC, arg(0))
	}
	return fmt.Sprintf("/* unknown string method: %s */", methodName)
}

// stringsStaticToC maps Strings.method(...) to a C expression
// template.
func (g *CodeGen) stringsStaticToC(methodName string, argExprs []Expr) string {
	args := make([]string, 0, len(argExprs))
	for _, a := range argExprs {
		args = append(args, g.exprToC(a))
	}
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch methodName {
	case "isDigit":
		return fmt.Sprintf("isdigit((unsigned char)%s)", arg(0))
	case "isAlpha":
		return fmt.Sprintf("isalpha((unsigned char)%s)", arg(0))
	case "isAlnum":
		return fmt.Sprintf("isalnum((unsigned char)%s)", arg(0))
	case "isSpace":
		return fmt.Sprintf("isspace((unsigned char)%s)", arg(0))
	case "toInt":
		return fmt.Sprintf("atoi(%s)", arg(0))
	case "toFloat":
		return fmt.Sprintf("((float)atof(%s))", arg(0))
	case "fromInt":
		return fmt.Sprintf("__btrc_fromInt(%s)", arg(0))
	case "fromFloat":
		return fmt.Sprintf("__btrc_fromFloat(%s)", arg(0))
	case "join":
		return fmt.Sprintf("__btrc_join(%s, %s)", arg(0), arg(1))
	case "repeat":
		return fmt.Sprintf("__btrc_repeat(%s, %s)", arg(0), arg(1))
	case "replace":
		return fmt.Sprintf("__btrc_replace(%s, %s, %s)", arg(0), arg(1), arg(2))
	case "count":
		return fmt.Sprintf("__btrc_count(%s, %s)", arg(0), arg(1))
	case "find":
		return fmt.Sprintf("__btrc_find(%s, %s, %s)", arg(0), arg(1), arg(2))
	case "rfind":
		return fmt.Sprintf("__btrc_lastIndexOf(%s, %s)", arg(0), arg(1))
	case "capitalize":
		return fmt.Sprintf("__btrc_capitalize(%s)", arg(0))
	case "title":
		return fmt.Sprintf("__btrc_title(%s)", arg(0))
	case "swapCase":
		return fmt.Sprintf("__btrc_swapCase(%s)", arg(0))
	case "padLeft":
		return fmt.Sprintf("__btrc_padLeft(%s, %s, %s)", arg(0), arg(1), arg(2))
	case "padRight":
		return fmt.Sprintf("__btrc_padRight(%s, %s, %s)", arg(0), arg(1), arg(2))
	case "center":
		return fmt.Sprintf("__btrc_center(%s, %s, %s)", arg(0), arg(1), arg(2))
	case "lstrip":
		return fmt.Sprintf("__btrc_lstrip(%s)", arg(0))
	case "rstrip":
		return fmt.Sprintf("__btrc_rstrip(%s)", arg(0))
	case "isDigitStr":
		return fmt.Sprintf("__btrc_isDigitStr(%s)", arg(0))
	case "isAlphaStr":
		return fmt.Sprintf("__btrc_isAlphaStr(%s)", arg(0))
	case "isAlnumStr":
		return fmt.Sprintf("__btrc_isAlnumStr(%s)", arg(0))
	case "isBlank":
		return fmt.Sprintf("__btrc_isBlank(%s)", arg(0))
	case "isUpper":
		return fmt.Sprintf("__btrc_isUpper(%s)", arg(0))
	case "isLower":
		return fmt.Sprintf("__btrc_isLower(%s)", arg(0))
	case "indexOf":
		return fmt.Sprintf("__btrc_indexOf(%s, %s)", arg(0), arg(1))
	case "lastIndexOf":
		return fmt.Sprintf("__btrc_lastIndexOf(%s, %s)", arg(0), arg(1))
	case "contains":
		return fmt.Sprintf("__btrc_strContains(%s, %s)", arg(0), arg(1))
	case "startsWith":
		return fmt.Sprintf("__btrc_startsWith(%s, %s)", arg(0), arg(1))
	case "endsWith":
		return fmt.Sprintf("__btrc_endsWith(%s, %s)", arg(0), arg(1))
	case "substring":
		return fmt.Sprintf("__btrc_substring(%s, %s, %s)", arg(0), arg(1), arg(2))
	case "trim":
		return fmt.Sprintf("__btrc_trim(%s)", arg(0))
	case "toUpper":
		return fmt.Sprintf("__btrc_toUpper(%s)", arg(0))
	case "toLower":
		return fmt.Sprintf("__btrc_toLower(%s)", arg(0))
	case "reverse":
		return fmt.Sprintf("__btrc_reverse(%s)", arg(0))
	case "isEmpty":
		return fmt.Sprintf("__btrc_isEmpty(%s)", arg(0))
	case "charAt":
		return fmt.Sprintf("%s[(int)%s]", arg(0), arg(1))
	}
	return fmt.Sprintf("/* unknown Strings method: %s */", methodName)
}

// mathStaticToC maps Math.method(...) to a C expression template.
func (g *CodeGen) mathStaticToC(methodName string, argExprs []Expr) string {
	args := make([]string, 0, len(argExprs))
	for _, a := range argExprs {
		args = append(args, g.exprToC(a))
	}
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch methodName {
	// constants
	case "PI":
		return "3.14159265358979323846"
	case "E":
		return "2.71828182845904523536"
	case "TAU":
		return "6.28318530717958647692"
	case "INF":
		return "(1.0 / 0.0)"
	// basic operations
	case "abs":
		return fmt.Sprintf("((%s) < 0 ? -(%s) : (%s))", arg(0), arg(0), arg(0))
	case "fabs":
		return fmt.Sprintf("fabsf(%s)", arg(0))
	case "max":
		return fmt.Sprintf("((%s) > (%s) ? (%s) : (%s))", arg(0), arg(1), arg(0), arg(1))
	case "min":
		return fmt.Sprintf("((%s) < (%s) ? (%s) : (%s))", arg(0), arg(1), arg(0), arg(1))
	case "fmax":
		return fmt.Sprintf("fmaxf(%s, %s)", arg(0), arg(1))
	case "fmin":
		return fmt.Sprintf("fminf(%s, %s)", arg(0), arg(1))
	case "clamp", "fclamp":
		v, lo, hi := arg(0), arg(1), arg(2)
		return fmt.Sprintf("((%s) < (%s) ? (%s) : ((%s) > (%s) ? (%s) : (%s)))", v, lo, lo, v, hi, hi, v)
	// power and roots
	case "power":
		return fmt.Sprintf("powf(%s, (float)(%s))", arg(0), arg(1))
	case "sqrt":
		return fmt.Sprintf("sqrtf(%s)", arg(0))
	// combinatorics
	case "factorial":
		return fmt.Sprintf("__btrc_math_factorial(%s)", arg(0))
	case "gcd":
		return fmt.Sprintf("__btrc_math_gcd(%s, %s)", arg(0), arg(1))
	case "lcm":
		return fmt.Sprintf("__btrc_math_lcm(%s, %s)", arg(0), arg(1))
	case "fibonacci":
		return fmt.Sprintf("__btrc_math_fibonacci(%s)", arg(0))
	// checks
	case "isPrime":
		return fmt.Sprintf("__btrc_math_isPrime(%s)", arg(0))
	case "isEven":
		return fmt.Sprintf("((%s) %% 2 == 0)", arg(0))
	case "isOdd":
		return fmt.Sprintf("((%s) %% 2 != 0)", arg(0))
	// list reductions
	case "sum":
		return fmt.Sprintf("__btrc_math_sum_int(%s.data, %s.len)", arg(0), arg(0))
	case "fsum":
		return fmt.Sprintf("__btrc_math_fsum(%s.data, %s.len)", arg(0), arg(0))
	// trigonometry
	case "sin":
		return fmt.Sprintf("sinf(%s)", arg(0))
	case "cos":
		return fmt.Sprintf("cosf(%s)", arg(0))
	case "tan":
		return fmt.Sprintf("tanf(%s)", arg(0))
	case "asin":
		return fmt.Sprintf("asinf(%s)", arg(0))
	case "acos":
		return fmt.Sprintf("acosf(%s)", arg(0))
	case "atan":
		return fmt.Sprintf("atanf(%s)", arg(0))
	case "atan2":
		return fmt.Sprintf("atan2f(%s, %s)", arg(0), arg(1))
	// rounding
	case "ceil":
		return fmt.Sprintf("ceilf(%s)", arg(0))
	case "floor":
		return fmt.Sprintf("floorf(%s)", arg(0))
	case "round":
		return fmt.Sprintf("((int)roundf(%s))", arg(0))
	case "truncate":
		return fmt.Sprintf("((int)truncf(%s))", arg(0))
	// logarithms and exponentials
	case "log":
		return fmt.Sprintf("logf(%s)", arg(0))
	case "log10":
		return fmt.Sprintf("log10f(%s)", arg(0))
	case "log2":
		return fmt.Sprintf("log2f(%s)", arg(0))
	case "exp":
		return fmt.Sprintf("expf(%s)", arg(0))
	// conversions
	case "toRadians":
		return fmt.Sprintf("((%s) * 3.14159265358979323846f / 180.0f)", arg(0))
	case "toDegrees":
		return fmt.Sprintf("((%s) * 180.0f / 3.14159265358979323846f)", arg(0))
	// utility
	case "sign":
		return fmt.Sprintf("((%s) > 0 ? 1 : ((%s) < 0 ? -1 : 0))", arg(0), arg(0))
	case "fsign":
		return fmt.Sprintf("((%s) > 0.0f ? 1.0f : ((%s) < 0.0f ? -1.0f : 0.0f))", arg(0), arg(0))
	}
	return fmt.Sprintf("/* unknown Math method: %s */", methodName)
}

// ---- Field access ----

func (g *CodeGen) propertyFor(expr *FieldAccessExpr) *PropertyDecl {
	if t := g.nodeTypes[expr.Obj]; t != nil {
		if cls, ok := g.classTable[t.Base]; ok {
			if prop, ok := cls.Properties[expr.Field]; ok {
				return prop
			}
		}
	}
	if _, ok := expr.Obj.(*SelfExpr); ok && g.currentClass != nil {
		if prop, ok := g.currentClass.Properties[expr.Field]; ok {
			return prop
		}
	}
	return nil
}

func (g *CodeGen) fieldAccessToC(expr *FieldAccessExpr) string {
	// Property getter rewriting.
	if prop := g.propertyFor(expr); prop != nil && prop.HasGetter {
		if className := g.classNameFor(expr.Obj); className != "" {
			return fmt.Sprintf("%s_get_%s(%s)", className, expr.Field, g.exprToC(expr.Obj))
		}
	}

	obj := g.exprToC(expr.Obj)
	if _, ok := expr.Obj.(*SelfExpr); ok {
		return fmt.Sprintf("self->%s", expr.Field)
	}
	if expr.Optional {
		// Optional chaining guards with a NULL test and a
		// type-appropriate default.
		return fmt.Sprintf("(%s != NULL ? %s->%s : %s)", obj, obj, expr.Field, g.defaultForField(expr))
	}
	if expr.Arrow {
		return fmt.Sprintf("%s->%s", obj, expr.Field)
	}
	if t := g.nodeTypes[expr.Obj]; t != nil && t.PointerDepth > 0 {
		return fmt.Sprintf("%s->%s", obj, expr.Field)
	}
	return fmt.Sprintf("%s.%s", obj, expr.Field)
}

func (g *CodeGen) defaultForField(expr *FieldAccessExpr) string {
	if t := g.nodeTypes[expr]; t != nil {
		if t.PointerDepth > 0 || t.Base == "string" {
			return "NULL"
		}
		switch t.Base {
		case "float", "double":
			return "0.0"
		case "bool":
			return "false"
		}
	}
	return "0"
}

// ---- new / tuple ----

func (g *CodeGen) newToC(expr *NewExpr) string {
	cType := g.typeToC(expr.Type)
	if g.isClassName(expr.Type.Base) {
		// Constructors allocate; the pointer star from the class-type
		// upgrade is dropped to name the function.
		args := g.fillConstructorArgs(expr.Type.Base, expr.Args)
		return fmt.Sprintf("%s_new(%s)", strings.TrimRight(cType, "*"), strings.Join(args, ", "))
	}
	return fmt.Sprintf("(%s*)malloc(sizeof(%s))", cType, cType)
}

func (g *CodeGen) tupleToC(expr *TupleLiteral) string {
	typeArgs := make([]*TypeExpr, 0, len(expr.Elements))
	for _, el := range expr.Elements {
		if t := g.nodeTypes[el]; t != nil {
			typeArgs = append(typeArgs, t)
		} else {
			typeArgs = append(typeArgs, NewTypeExpr("int"))
		}
	}
	structName := "btrc_Tuple_" + g.mangleTypes(typeArgs)
	elems := make([]string, 0, len(expr.Elements))
	for _, el := range expr.Elements {
		elems = append(elems, g.exprToC(el))
	}
	return fmt.Sprintf("(%s){%s}", structName, strings.Join(elems, ", "))
}

// ---- f-strings and print ----

// emitFStringAsValue materializes an f-string into a heap buffer with
// two snprintf calls (sizing then fill) and returns the temp name.
func (g *CodeGen) emitFStringAsValue(expr *FStringLiteral) string {
	fmtStr, args := g.fstringFormat(expr)
	g.fstrCounter++
	tmp := fmt.Sprintf("__btrc_fstr_%d", g.fstrCounter)
	argsStr := ""
	if len(args) > 0 {
		argsStr = ", " + strings.Join(args, ", ")
	}
	g.out.writeilf("int %s_len = snprintf(NULL, 0, \"%s\"%s);", tmp, fmtStr, argsStr)
	g.out.writeilf("char* %s = (char*)malloc(%s_len + 1);", tmp, tmp)
	g.out.writeilf("snprintf(%s, %s_len + 1, \"%s\"%s);", tmp, tmp, fmtStr, argsStr)
	return tmp
}

// fstringFormat flattens the parts into a printf format string plus
// its arguments.
func (g *CodeGen) fstringFormat(expr *FStringLiteral) (string, []string) {
	var fmtParts []string
	var args []string
	for _, part := range expr.Parts {
		if !part.IsExpr() {
			fmtParts = append(fmtParts, strings.ReplaceAll(part.Text, "%", "%%"))
			continue
		}
		fmtParts = append(fmtParts, g.formatSpecFor(part.Expr))
		args = append(args, g.printfArgFor(part.Expr, g.exprToC(part.Expr)))
	}
	return strings.Join(fmtParts, ""), args
}

func (g *CodeGen) fstringToC(expr *FStringLiteral) string {
	fmtStr, args := g.fstringFormat(expr)
	if len(args) > 0 {
		return fmt.Sprintf("\"%s\", %s", fmtStr, strings.Join(args, ", "))
	}
	return fmt.Sprintf("\"%s\"", fmtStr)
}

// printfArgFor wraps arguments needing adaptation, e.g. bools become a
// true/false ternary.
func (g *CodeGen) printfArgFor(expr Expr, cArg string) string {
	if t := g.nodeTypes[expr]; t != nil && t.Base == "bool" && t.PointerDepth == 0 {
		return fmt.Sprintf("((%s) ? \"true\" : \"false\")", cArg)
	}
	if _, ok := expr.(*BoolLiteral); ok {
		return fmt.Sprintf("((%s) ? \"true\" : \"false\")", cArg)
	}
	return cArg
}

func (g *CodeGen) formatSpecFor(expr Expr) string {
	if t := g.nodeTypes[expr]; t != nil {
		if t.PointerDepth > 0 && t.Base != "string" && t.Base != "char" {
			return "%p"
		}
		switch t.Base {
		case "bool":
			return "%s"
		case "int", "short":
			return "%d"
		case "long":
			return "%ld"
		case "long long", "unsigned long long":
			return "%lld"
		case "unsigned", "unsigned int":
			return "%u"
		case "unsigned long":
			return "%lu"
		case "float", "double":
			return "%f"
		case "string":
			return "%s"
		case "char":
			if t.PointerDepth > 0 {
				return "%s"
			}
			return "%c"
		}
	}
	switch expr.(type) {
	case *IntLiteral:
		return "%d"
	case *FloatLiteral:
		return "%f"
	case *StringLiteral, *BoolLiteral, *FStringLiteral:
		return "%s"
	case *CharLiteral:
		return "%c"
	}
	return "%d"
}

// printToC lowers the print() builtin to printf with a trailing
// newline; f-string arguments inline into the format string.
func (g *CodeGen) printToC(expr *CallExpr) string {
	if len(expr.Args) == 0 {
		return `printf("\n")`
	}

	var fmtParts []string
	var cArgs []string
	for _, arg := range expr.Args {
		switch a := arg.(type) {
		case *FStringLiteral:
			fmtStr, args := g.fstringFormat(a)
			fmtParts = append(fmtParts, fmtStr)
			cArgs = append(cArgs, args...)
		case *StringLiteral:
			fmtParts = append(fmtParts, strings.Trim(a.Value, "\""))
		default:
			fmtParts = append(fmtParts, g.formatSpecFor(arg))
			cArgs = append(cArgs, g.printfArgFor(arg, g.exprToC(arg)))
		}
	}

	format := strings.Join(fmtParts, " ") + "\\n"
	if len(cArgs) > 0 {
		return fmt.Sprintf("printf(\"%s\", %s)", format, strings.Join(cArgs, ", "))
	}
	return fmt.Sprintf("printf(\"%s\")", format)
}
