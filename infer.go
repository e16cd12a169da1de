package btrc

import "github.com/samber/lo"

// Type inference is local and bottom-up with no unification: literals
// map to primitives, lookups go through the scope chain and the class
// table, calls resolve by callee shape, and binary promotion follows
// double > float > long > int. Unknown expressions infer to nil, which
// is not an error — they may come from C headers.

func (a *Analyzer) inferType(expr Expr) *TypeExpr {
	switch e := expr.(type) {
	case *IntLiteral:
		return NewTypeExpr("int")
	case *FloatLiteral:
		return NewTypeExpr("float")
	case *StringLiteral:
		return NewTypeExpr("string")
	case *CharLiteral:
		return NewTypeExpr("char")
	case *BoolLiteral:
		return NewTypeExpr("bool")
	case *NullLiteral:
		return NewPointerType("void", 1)

	case *Identifier:
		if sym := a.scope.Lookup(e.Name); sym != nil {
			return sym.Type
		}
		return nil

	case *SelfExpr:
		if a.currentClass != nil {
			return NewPointerType(a.currentClass.Name, 1)
		}
		return nil

	case *FieldAccessExpr:
		objType := a.inferType(e.Obj)
		if objType == nil {
			return nil
		}
		if cls, ok := a.classTable[objType.Base]; ok {
			// Properties shadow fields in lookup order.
			if prop, ok := cls.Properties[e.Field]; ok {
				return prop.Type
			}
			if field, ok := cls.Fields[e.Field]; ok {
				return field.Type
			}
		}
		if objType.Base == "Tuple" && len(e.Field) >= 2 && e.Field[0] == '_' {
			idx := int(e.Field[1] - '0')
			if idx >= 0 && idx < len(objType.GenericArgs) {
				return objType.GenericArgs[idx]
			}
		}
		return nil

	case *CallExpr:
		return a.inferCallType(e)

	case *NewExpr:
		t := e.Type.Clone()
		if t.PointerDepth == 0 {
			t.PointerDepth = 1
		}
		return t

	case *IndexExpr:
		objType := a.inferType(e.Obj)
		if objType == nil {
			return nil
		}
		if (objType.Base == "List" || objType.Base == "Array") && len(objType.GenericArgs) > 0 {
			return objType.GenericArgs[0]
		}
		if objType.Base == "Map" && len(objType.GenericArgs) == 2 {
			return objType.GenericArgs[1]
		}
		return nil

	case *BinaryExpr:
		switch e.Op {
		case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
			return NewTypeExpr("bool")
		}
		leftType := a.inferType(e.Left)
		rightType := a.inferType(e.Right)
		if leftType != nil && rightType != nil {
			// Promotion: double > float > long > int.
			for _, base := range []string{"double", "float", "long"} {
				if leftType.Base == base || rightType.Base == base {
					return NewTypeExpr(base)
				}
			}
			if leftType.Base == "int" && rightType.Base == "int" {
				return NewTypeExpr("int")
			}
		}
		if leftType != nil {
			return leftType
		}
		return rightType

	case *CastExpr:
		return e.TargetType

	case *UnaryExpr:
		return a.inferType(e.Operand)

	case *TernaryExpr:
		return a.inferType(e.TrueExpr)

	case *AssignExpr:
		return a.inferType(e.Target)

	case *SizeofExpr:
		return NewTypeExpr("int")

	case *LambdaExpr:
		// Carrier type for function pointers: __fn_ptr<ret, params...>
		ret := e.ReturnType
		if ret == nil {
			ret = a.inferLambdaReturn(e)
		}
		args := append([]*TypeExpr{ret},
			lo.Map(e.Params, func(p *Param, _ int) *TypeExpr { return p.Type })...)
		return &TypeExpr{Base: fnPtrBase, GenericArgs: args}

	case *TupleLiteral:
		return a.tupleTypeOf(e)

	case *ListLiteral:
		if len(e.Elements) > 0 {
			if elemType := a.inferType(e.Elements[0]); elemType != nil {
				return NewGenericType("List", elemType)
			}
		}
		return NewGenericType("List", NewTypeExpr("int"))

	case *MapLiteral:
		if len(e.Entries) > 0 {
			keyType := a.inferType(e.Entries[0].Key)
			valType := a.inferType(e.Entries[0].Value)
			if keyType != nil && valType != nil {
				return NewGenericType("Map", keyType, valType)
			}
		}
		return NewGenericType("Map", NewTypeExpr("string"), NewTypeExpr("int"))

	case *FStringLiteral:
		return NewTypeExpr("string")
	}
	return nil
}

func (a *Analyzer) inferCallType(e *CallExpr) *TypeExpr {
	if ident, ok := e.Callee.(*Identifier); ok {
		if _, isClass := a.classTable[ident.Name]; isClass {
			return NewPointerType(ident.Name, 1)
		}
		if fn, ok := a.funcTable[ident.Name]; ok {
			return fn.ReturnType
		}
		return nil
	}

	access, ok := e.Callee.(*FieldAccessExpr)
	if !ok {
		return nil
	}
	objType := a.inferType(access.Obj)

	// Numeric/bool .toString()
	if objType != nil && objType.PointerDepth == 0 && access.Field == "toString" {
		switch objType.Base {
		case "int", "float", "double", "long", "bool":
			return NewTypeExpr("string")
		}
	}
	if objType != nil && objType.isStringLike() {
		return stringMethodReturnType(access.Field)
	}
	if objType != nil && objType.Base == "Map" && len(objType.GenericArgs) == 2 {
		return mapMethodReturnType(access.Field, objType)
	}
	if objType != nil && objType.Base == "List" && len(objType.GenericArgs) > 0 {
		return listMethodReturnType(access.Field, objType)
	}
	if objType != nil && objType.Base == "Set" && len(objType.GenericArgs) > 0 {
		return setMethodReturnType(access.Field, objType)
	}
	if objType != nil {
		if cls, ok := a.classTable[objType.Base]; ok {
			if method, ok := cls.Methods[access.Field]; ok {
				return method.ReturnType
			}
		}
	}
	// Static method: ClassName.method().
	if ident, ok := access.Obj.(*Identifier); ok {
		if cls, ok := a.classTable[ident.Name]; ok {
			if method, ok := cls.Methods[access.Field]; ok {
				return method.ReturnType
			}
		}
	}
	return nil
}

// inferLambdaReturn picks the lambda's return type from its first
// returning statement, defaulting to int.
func (a *Analyzer) inferLambdaReturn(expr *LambdaExpr) *TypeExpr {
	if expr.Body != nil {
		for _, stmt := range expr.Body.Statements {
			if ret, ok := stmt.(*ReturnStmt); ok && ret.Value != nil {
				if t := a.inferType(ret.Value); t != nil {
					return t
				}
			}
		}
	}
	return NewTypeExpr("int")
}

// tupleTypeOf builds the Tuple<...> type of a tuple literal, falling
// back to int for elements that do not infer.
func (a *Analyzer) tupleTypeOf(e *TupleLiteral) *TypeExpr {
	elemTypes := lo.Map(e.Elements, func(el Expr, _ int) *TypeExpr {
		if t := a.inferType(el); t != nil {
			return t
		}
		return NewTypeExpr("int")
	})
	return &TypeExpr{Base: "Tuple", GenericArgs: elemTypes}
}

// elementTypeOf picks the for-in element type from the iterable's
// type: List/Array/Set element, string → char, Map handled by the
// caller. Non-iterable known types raise a diagnostic.
func (a *Analyzer) elementTypeOf(iterType *TypeExpr, line, col int) *TypeExpr {
	if iterType == nil {
		return nil
	}
	switch iterType.Base {
	case "List", "Array", "Set":
		if len(iterType.GenericArgs) > 0 {
			return iterType.GenericArgs[0]
		}
		return nil
	case "Map":
		return nil
	}
	if iterType.isStringLike() {
		return NewTypeExpr("char")
	}
	if _, ok := a.classTable[iterType.Base]; ok {
		a.errorf(line, col, "Type '%s' is not iterable", iterType.Base)
		return nil
	}
	switch iterType.Base {
	case "int", "float", "double", "bool":
		a.errorf(line, col, "Type '%s' is not iterable", iterType.Base)
	}
	return nil
}

// ---- Built-in method return-type tables ----

func stringMethodReturnType(method string) *TypeExpr {
	intT := NewTypeExpr("int")
	boolT := NewTypeExpr("bool")
	stringT := NewTypeExpr("string")
	table := map[string]*TypeExpr{
		// length
		"len": intT, "byteLen": intT, "charLen": intT,
		// search
		"contains": boolT, "startsWith": boolT, "endsWith": boolT,
		"equals": boolT, "indexOf": intT, "lastIndexOf": intT,
		"find": intT, "count": intT,
		// char access
		"charAt": NewTypeExpr("char"),
		// transform
		"substring": stringT, "trim": stringT, "lstrip": stringT,
		"rstrip": stringT, "toUpper": stringT, "toLower": stringT,
		"replace": stringT, "repeat": stringT,
		"capitalize": stringT, "title": stringT, "swapCase": stringT,
		"padLeft": stringT, "padRight": stringT, "center": stringT,
		"zfill": stringT, "reverse": stringT,
		"removePrefix": stringT, "removeSuffix": stringT,
		// predicates
		"isBlank": boolT, "isAlnum": boolT,
		"isDigitStr": boolT, "isAlphaStr": boolT,
		"isUpper": boolT, "isLower": boolT, "isEmpty": boolT,
		// conversion
		"toInt": intT, "toFloat": NewTypeExpr("float"),
		"toDouble": NewTypeExpr("double"), "toLong": NewTypeExpr("long"),
		"toBool": boolT,
		// split returns char** (string array)
		"split": NewPointerType("string", 1),
	}
	return table[method]
}

func mapMethodReturnType(method string, mapType *TypeExpr) *TypeExpr {
	keyType, valType := mapType.GenericArgs[0], mapType.GenericArgs[1]
	switch method {
	case "get", "getOrDefault":
		return valType
	case "has", "contains", "containsValue", "isEmpty":
		return NewTypeExpr("bool")
	case "keys":
		return NewGenericType("List", keyType)
	case "values":
		return NewGenericType("List", valType)
	case "put", "remove", "free", "clear", "forEach", "putIfAbsent", "merge":
		return NewTypeExpr("void")
	case "size":
		return NewTypeExpr("int")
	}
	return nil
}

func listMethodReturnType(method string, listType *TypeExpr) *TypeExpr {
	elemType := listType.GenericArgs[0]
	switch method {
	case "get", "pop", "first", "last", "reduce", "min", "max", "sum":
		return elemType
	case "contains", "any", "all", "isEmpty":
		return NewTypeExpr("bool")
	case "indexOf", "lastIndexOf", "count", "findIndex", "size":
		return NewTypeExpr("int")
	case "slice", "subList", "filter", "sorted", "distinct", "reversed", "take", "drop", "map":
		return NewGenericType("List", elemType)
	case "join", "joinToString":
		return NewTypeExpr("string")
	case "push", "set", "remove", "removeAt", "reverse", "sort", "clear", "free",
		"forEach", "extend", "addAll", "insert", "fill", "removeAll", "swap":
		return NewTypeExpr("void")
	}
	return nil
}

func setMethodReturnType(method string, setType *TypeExpr) *TypeExpr {
	elemType := setType.GenericArgs[0]
	switch method {
	case "contains", "has", "any", "all", "isEmpty", "isSubsetOf", "isSupersetOf":
		return NewTypeExpr("bool")
	case "toList":
		return NewGenericType("List", elemType)
	case "add", "remove", "free", "clear", "forEach":
		return NewTypeExpr("void")
	case "filter", "unite", "intersect", "subtract", "symmetricDifference", "copy":
		return NewGenericType("Set", elemType)
	case "size":
		return NewTypeExpr("int")
	}
	return nil
}
