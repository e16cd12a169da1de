package btrc

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Diagnostic is one accumulated semantic error. The analyzer keeps
// going after reporting one wherever it can.
type Diagnostic struct {
	Msg  string
	Line int
	Col  int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at %d:%d", d.Msg, d.Line, d.Col)
}

// SemanticError aggregates the analyzer's diagnostics into a single
// error for the pipeline entry points.
type SemanticError struct {
	Diagnostics []Diagnostic
}

func (e *SemanticError) Error() string {
	lines := lo.Map(e.Diagnostics, func(d Diagnostic, _ int) string { return d.String() })
	return strings.Join(lines, "\n")
}

// ClassInfo is the class table entry: fields, methods and properties
// in declaration order (parents first), the constructor if any, and
// the parent link.
type ClassInfo struct {
	Name          string
	GenericParams []string
	Parent        string

	FieldOrder []string
	Fields     map[string]*FieldDecl

	MethodOrder []string
	Methods     map[string]*MethodDecl

	PropertyOrder []string
	Properties    map[string]*PropertyDecl

	Constructor *MethodDecl
}

func newClassInfo(name string) *ClassInfo {
	return &ClassInfo{
		Name:       name,
		Fields:     map[string]*FieldDecl{},
		Methods:    map[string]*MethodDecl{},
		Properties: map[string]*PropertyDecl{},
	}
}

func (c *ClassInfo) addField(f *FieldDecl) {
	if _, ok := c.Fields[f.Name]; !ok {
		c.FieldOrder = append(c.FieldOrder, f.Name)
	}
	c.Fields[f.Name] = f
}

func (c *ClassInfo) addMethod(m *MethodDecl) {
	if _, ok := c.Methods[m.Name]; !ok {
		c.MethodOrder = append(c.MethodOrder, m.Name)
	}
	c.Methods[m.Name] = m
}

func (c *ClassInfo) addProperty(prop *PropertyDecl) {
	if _, ok := c.Properties[prop.Name]; !ok {
		c.PropertyOrder = append(c.PropertyOrder, prop.Name)
	}
	c.Properties[prop.Name] = prop
}

// OrderedFields returns the fields in layout order.
func (c *ClassInfo) OrderedFields() []*FieldDecl {
	return lo.Map(c.FieldOrder, func(name string, _ int) *FieldDecl { return c.Fields[name] })
}

// OrderedMethods returns the methods in declaration order.
func (c *ClassInfo) OrderedMethods() []*MethodDecl {
	return lo.Map(c.MethodOrder, func(name string, _ int) *MethodDecl { return c.Methods[name] })
}

// SymbolInfo is one entry in a lexical scope.
type SymbolInfo struct {
	Name string
	Type *TypeExpr
	Kind string // "variable" | "function" | "param"
}

// Scope is a link in the lexical scope chain.
type Scope struct {
	symbols map[string]*SymbolInfo
	parent  *Scope
}

func newScope(parent *Scope) *Scope {
	return &Scope{symbols: map[string]*SymbolInfo{}, parent: parent}
}

func (s *Scope) Lookup(name string) *SymbolInfo {
	if sym, ok := s.symbols[name]; ok {
		return sym
	}
	if s.parent != nil {
		return s.parent.Lookup(name)
	}
	return nil
}

func (s *Scope) Define(name string, info *SymbolInfo) {
	s.symbols[name] = info
}

// GenericInstance is one (base, concrete argument tuple) pair in the
// generic instance set.
type GenericInstance struct {
	Args []*TypeExpr
}

// AnalyzedProgram is the analyzer's output: the mutated AST plus the
// side tables codegen consumes.
type AnalyzedProgram struct {
	Program *Program

	ClassOrder []string
	ClassTable map[string]*ClassInfo

	FunctionTable map[string]*FunctionDecl
	EnumTable     map[string][]string

	// GenericInstances records every (base, args) that appears in the
	// program, in first-seen order per base.
	GenericOrder     []string
	GenericInstances map[string][]GenericInstance

	// NodeTypes is the node-type map: expression node identity →
	// best-effort inferred type.
	NodeTypes map[Expr]*TypeExpr

	Errors []Diagnostic
}

// Analyzer runs the two semantic passes: registration, then body
// analysis. It mutates the AST in place (class-type upgrade, var
// inference) and builds the side tables.
type Analyzer struct {
	classOrder []string
	classTable map[string]*ClassInfo
	funcTable  map[string]*FunctionDecl
	enumTable  map[string][]string

	genericOrder     []string
	genericInstances map[string][]GenericInstance

	nodeTypes map[Expr]*TypeExpr
	errors    []Diagnostic

	scope             *Scope
	currentClass      *ClassInfo
	currentMethod     *MethodDecl
	currentReturnType *TypeExpr
	loopDepth         int
	breakDepth        int
	inGpuFunction     bool
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		classTable:       map[string]*ClassInfo{},
		funcTable:        map[string]*FunctionDecl{},
		enumTable:        map[string][]string{},
		genericInstances: map[string][]GenericInstance{},
		nodeTypes:        map[Expr]*TypeExpr{},
		scope:            newScope(nil),
	}
}

// Analyze runs both passes and returns the annotated program together
// with every diagnostic found.
func (a *Analyzer) Analyze(prog *Program) *AnalyzedProgram {
	a.registerDeclarations(prog)
	a.validateInheritance(prog)

	for _, decl := range prog.Declarations {
		a.analyzeDecl(decl)
	}

	return &AnalyzedProgram{
		Program:          prog,
		ClassOrder:       a.classOrder,
		ClassTable:       a.classTable,
		FunctionTable:    a.funcTable,
		EnumTable:        a.enumTable,
		GenericOrder:     a.genericOrder,
		GenericInstances: a.genericInstances,
		NodeTypes:        a.nodeTypes,
		Errors:           a.errors,
	}
}

func (a *Analyzer) errorf(line, col int, format string, args ...any) {
	a.errors = append(a.errors, Diagnostic{Msg: fmt.Sprintf(format, args...), Line: line, Col: col})
}

func (a *Analyzer) pushScope() { a.scope = newScope(a.scope) }
func (a *Analyzer) popScope()  { a.scope = a.scope.parent }

// ---- Pass 1: registration ----

func (a *Analyzer) registerDeclarations(prog *Program) {
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *ClassDecl:
			a.registerClass(d)
		case *FunctionDecl:
			a.registerFunction(d)
		case *EnumDecl:
			a.enumTable[d.Name] = lo.Map(d.Values, func(v EnumValue, _ int) string { return v.Name })
		}
	}
}

func (a *Analyzer) registerClass(decl *ClassDecl) {
	if _, ok := a.classTable[decl.Name]; ok {
		a.errorf(decl.Line, decl.Col, "Duplicate class name '%s'", decl.Name)
	}

	info := newClassInfo(decl.Name)
	info.GenericParams = decl.GenericParams
	info.Parent = decl.Parent

	// Inheritance resolves at registration: parent fields and methods
	// (except the parent's constructor) are copied in; child
	// declarations override by name.
	if decl.Parent != "" {
		if parent, ok := a.classTable[decl.Parent]; ok {
			for _, fname := range parent.FieldOrder {
				info.addField(parent.Fields[fname])
			}
			for _, mname := range parent.MethodOrder {
				if mname != parent.Name {
					info.addMethod(parent.Methods[mname])
				}
			}
			for _, pname := range parent.PropertyOrder {
				info.addProperty(parent.Properties[pname])
			}
		}
	}

	seenFields := map[string]bool{}
	seenMethods := map[string]bool{}
	for _, member := range decl.Members {
		switch m := member.(type) {
		case *FieldDecl:
			if seenFields[m.Name] {
				a.errorf(m.Line, m.Col, "Duplicate field '%s' in class '%s'", m.Name, decl.Name)
			}
			seenFields[m.Name] = true
			info.addField(m)
		case *MethodDecl:
			if seenMethods[m.Name] {
				a.errorf(m.Line, m.Col, "Duplicate method '%s' in class '%s'", m.Name, decl.Name)
			}
			seenMethods[m.Name] = true
			if m.Name == decl.Name {
				info.Constructor = m
			}
			info.addMethod(m)
		case *PropertyDecl:
			info.addProperty(m)
		}
	}

	if _, ok := a.classTable[decl.Name]; !ok {
		a.classOrder = append(a.classOrder, decl.Name)
	}
	a.classTable[decl.Name] = info
}

func (a *Analyzer) registerFunction(decl *FunctionDecl) {
	existing, ok := a.funcTable[decl.Name]
	if !ok {
		a.funcTable[decl.Name] = decl
		return
	}
	// A prototype followed by a definition is replaced; a definition
	// followed by a prototype is kept; two definitions collide.
	if existing.Body == nil {
		a.funcTable[decl.Name] = decl
		return
	}
	if decl.Body != nil {
		a.errorf(decl.Line, decl.Col, "Duplicate function '%s'", decl.Name)
	}
}

// validateInheritance walks every parent chain checking for missing
// parents and cycles.
func (a *Analyzer) validateInheritance(prog *Program) {
	for _, decl := range prog.Declarations {
		cls, ok := decl.(*ClassDecl)
		if !ok || cls.Parent == "" {
			continue
		}
		if _, ok := a.classTable[cls.Parent]; !ok {
			a.errorf(cls.Line, cls.Col, "Parent class '%s' not found", cls.Parent)
			continue
		}
		seen := map[string]bool{cls.Name: true}
		cur := cls.Parent
		for cur != "" {
			if seen[cur] {
				a.errorf(cls.Line, cls.Col, "Circular inheritance detected: '%s' -> '%s'", cls.Name, cur)
				break
			}
			seen[cur] = true
			info, ok := a.classTable[cur]
			if !ok {
				break
			}
			cur = info.Parent
		}
	}
}

// ---- Pass 2: body analysis ----

func (a *Analyzer) analyzeDecl(decl Decl) {
	switch d := decl.(type) {
	case *ClassDecl:
		a.analyzeClass(d)
	case *FunctionDecl:
		a.analyzeFunction(d)
	case *VarDeclStmt:
		a.analyzeVarDecl(d)
	}
	// PreprocessorDirective, StructDecl, EnumDecl, TypedefDecl need no
	// body analysis.
}

func (a *Analyzer) analyzeClass(decl *ClassDecl) {
	prevClass := a.currentClass
	a.currentClass = a.classTable[decl.Name]
	defer func() { a.currentClass = prevClass }()

	for _, member := range decl.Members {
		switch m := member.(type) {
		case *FieldDecl:
			m.Type = a.upgradeClassType(m.Type)
			a.collectGenericInstances(m.Type)
			if m.Initializer != nil {
				a.analyzeExpr(m.Initializer)
			}
		case *MethodDecl:
			a.analyzeMethod(m)
		case *PropertyDecl:
			a.analyzeProperty(m)
		}
	}
}

// upgradeClassType rewrites class-typed bindings to pointer form so
// class instances are reference types everywhere. The rewrite recurses
// into generic arguments and is idempotent.
func (a *Analyzer) upgradeClassType(t *TypeExpr) *TypeExpr {
	if t == nil {
		return nil
	}
	for i, arg := range t.GenericArgs {
		t.GenericArgs[i] = a.upgradeClassType(arg)
	}
	if _, ok := a.classTable[t.Base]; ok && t.PointerDepth == 0 {
		t.PointerDepth = 1
	}
	return t
}

func (a *Analyzer) validateDefaultParams(params []*Param, line, col int) {
	seenDefault := false
	for _, param := range params {
		if param.Default != nil {
			seenDefault = true
		} else if seenDefault {
			a.errorf(param.Line, param.Col,
				"Non-default parameter '%s' follows default parameter", param.Name)
			return
		}
	}
}

func (a *Analyzer) analyzeMethod(method *MethodDecl) {
	prevMethod, prevReturn, prevGpu := a.currentMethod, a.currentReturnType, a.inGpuFunction
	a.currentMethod = method
	a.currentReturnType = method.ReturnType
	a.inGpuFunction = method.IsGpu
	defer func() {
		a.currentMethod, a.currentReturnType, a.inGpuFunction = prevMethod, prevReturn, prevGpu
	}()

	for _, param := range method.Params {
		param.Type = a.upgradeClassType(param.Type)
	}

	className := ""
	if a.currentClass != nil {
		className = a.currentClass.Name
	}
	isConstructor := method.Name == className
	if isConstructor {
		if method.ReturnType != nil && method.ReturnType.Base != "void" && method.ReturnType.Base != className {
			a.errorf(method.Line, method.Col,
				"Constructor '%s' cannot have return type '%s'", method.Name, method.ReturnType.Base)
		}
	} else {
		method.ReturnType = a.upgradeClassType(method.ReturnType)
	}

	a.pushScope()
	defer a.popScope()

	a.validateDefaultParams(method.Params, method.Line, method.Col)

	if method.Access != "class" && a.currentClass != nil {
		a.scope.Define("self", &SymbolInfo{
			Name: "self",
			Type: NewPointerType(a.currentClass.Name, 1),
			Kind: "param",
		})
	}

	for _, param := range method.Params {
		a.collectGenericInstances(param.Type)
		a.scope.Define(param.Name, &SymbolInfo{Name: param.Name, Type: param.Type, Kind: "param"})
	}

	a.collectGenericInstances(method.ReturnType)
	a.analyzeBlock(method.Body)

	if !isConstructor && method.ReturnType != nil && method.ReturnType.Base != "void" &&
		method.Body != nil && !a.hasReturn(method.Body) {
		a.errorf(method.Line, method.Col,
			"Method '%s.%s' has non-void return type but no return statement", className, method.Name)
	}
}

// analyzeProperty checks a property declaration; a synthetic method
// keeps self/value validation working inside accessor bodies.
func (a *Analyzer) analyzeProperty(prop *PropertyDecl) {
	prop.Type = a.upgradeClassType(prop.Type)
	a.collectGenericInstances(prop.Type)

	synthetic := &MethodDecl{Access: prop.Access, ReturnType: prop.Type, Name: "_prop_" + prop.Name}
	prevMethod := a.currentMethod
	a.currentMethod = synthetic
	defer func() { a.currentMethod = prevMethod }()

	selfType := NewPointerType(a.currentClass.Name, 1)

	if prop.GetterBody != nil {
		a.pushScope()
		a.scope.Define("self", &SymbolInfo{Name: "self", Type: selfType, Kind: "param"})
		a.analyzeBlock(prop.GetterBody)
		a.popScope()
	}
	if prop.SetterBody != nil {
		a.pushScope()
		a.scope.Define("self", &SymbolInfo{Name: "self", Type: selfType, Kind: "param"})
		a.scope.Define("value", &SymbolInfo{Name: "value", Type: prop.Type, Kind: "param"})
		a.analyzeBlock(prop.SetterBody)
		a.popScope()
	}
}

func (a *Analyzer) analyzeFunction(fn *FunctionDecl) {
	prevReturn, prevGpu := a.currentReturnType, a.inGpuFunction
	a.currentReturnType = fn.ReturnType
	a.inGpuFunction = fn.IsGpu
	defer func() { a.currentReturnType, a.inGpuFunction = prevReturn, prevGpu }()

	for _, param := range fn.Params {
		param.Type = a.upgradeClassType(param.Type)
	}
	fn.ReturnType = a.upgradeClassType(fn.ReturnType)

	a.pushScope()
	defer a.popScope()

	a.validateDefaultParams(fn.Params, fn.Line, fn.Col)

	a.scope.Define(fn.Name, &SymbolInfo{Name: fn.Name, Type: fn.ReturnType, Kind: "function"})

	for _, param := range fn.Params {
		a.collectGenericInstances(param.Type)
		a.scope.Define(param.Name, &SymbolInfo{Name: param.Name, Type: param.Type, Kind: "param"})
	}

	a.collectGenericInstances(fn.ReturnType)
	a.analyzeBlock(fn.Body)

	if fn.ReturnType != nil && fn.ReturnType.Base != "void" && fn.Body != nil && !a.hasReturn(fn.Body) {
		a.errorf(fn.Line, fn.Col,
			"Function '%s' has non-void return type but no return statement", fn.Name)
	}
}

// ---- Return exhaustiveness ----

// hasReturn reports whether every path through the block reaches a
// return or throw: a direct return/throw, an exhaustive if/else, a
// switch with a returning case, a while(true) that returns, or a
// try/catch whose blocks return.
func (a *Analyzer) hasReturn(block *Block) bool {
	if block == nil {
		return false
	}
	for _, stmt := range block.Statements {
		switch s := stmt.(type) {
		case *ReturnStmt, *ThrowStmt:
			return true
		case *IfStmt:
			if s.Else != nil && a.hasReturnInIf(s) {
				return true
			}
		case *SwitchStmt:
			for _, cs := range s.Cases {
				for _, caseStmt := range cs.Body {
					switch cstmt := caseStmt.(type) {
					case *ReturnStmt, *ThrowStmt:
						return true
					case *Block:
						if a.hasReturn(cstmt) {
							return true
						}
					case *IfStmt:
						if cstmt.Else != nil && a.hasReturnInIf(cstmt) {
							return true
						}
					}
				}
			}
		case *WhileStmt:
			// while(true) { return x; } always returns.
			if b, ok := s.Cond.(*BoolLiteral); ok && b.Value && a.hasReturn(s.Body) {
				return true
			}
		case *TryCatchStmt:
			if a.hasReturn(s.TryBlock) || a.hasReturn(s.CatchBlock) {
				return true
			}
		}
	}
	return false
}

// hasReturnInIf reports whether all branches of an if/else chain
// return; a missing else is never exhaustive.
func (a *Analyzer) hasReturnInIf(stmt *IfStmt) bool {
	if !a.hasReturn(stmt.Then) {
		return false
	}
	switch e := stmt.Else.(type) {
	case *Block:
		return a.hasReturn(e)
	case *IfStmt:
		return a.hasReturnInIf(e)
	}
	return false
}

// ---- Statements ----

func (a *Analyzer) analyzeBlock(block *Block) {
	if block == nil {
		return
	}
	a.pushScope()
	defer a.popScope()
	foundTerminal := false
	for _, stmt := range block.Statements {
		if foundTerminal {
			line, col := stmt.Pos()
			a.errorf(line, col, "Unreachable code after return/throw/break/continue")
			break // one diagnostic per block
		}
		a.analyzeStmt(stmt)
		switch stmt.(type) {
		case *ReturnStmt, *BreakStmt, *ContinueStmt, *ThrowStmt:
			foundTerminal = true
		}
	}
}

func (a *Analyzer) analyzeStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *VarDeclStmt:
		a.analyzeVarDecl(s)
	case *ReturnStmt:
		if s.Value != nil {
			a.analyzeExpr(s.Value)
			if a.currentReturnType != nil && a.currentReturnType.Base != "void" {
				if retType := a.inferType(s.Value); retType != nil && !a.typesCompatible(a.currentReturnType, retType) {
					a.errorf(s.Line, s.Col,
						"Return type mismatch: expected '%s' but got '%s'",
						a.currentReturnType, retType)
				}
			}
		}
	case *IfStmt:
		a.analyzeExpr(s.Cond)
		a.analyzeBlock(s.Then)
		switch e := s.Else.(type) {
		case *IfStmt:
			a.analyzeStmt(e)
		case *Block:
			a.analyzeBlock(e)
		}
	case *WhileStmt:
		a.analyzeExpr(s.Cond)
		a.loopDepth++
		a.breakDepth++
		a.analyzeBlock(s.Body)
		a.loopDepth--
		a.breakDepth--
	case *DoWhileStmt:
		a.loopDepth++
		a.breakDepth++
		a.analyzeBlock(s.Body)
		a.loopDepth--
		a.breakDepth--
		a.analyzeExpr(s.Cond)
	case *ForInStmt:
		a.analyzeForIn(s)
	case *ParallelForStmt:
		a.analyzeParallelFor(s)
	case *CForStmt:
		a.analyzeCFor(s)
	case *SwitchStmt:
		a.analyzeSwitch(s)
	case *ExprStmt:
		a.analyzeExpr(s.Expr)
	case *DeleteStmt:
		a.analyzeExpr(s.Expr)
	case *Block:
		a.analyzeBlock(s)
	case *TryCatchStmt:
		a.analyzeBlock(s.TryBlock)
		a.pushScope()
		a.scope.Define(s.CatchVar, &SymbolInfo{Name: s.CatchVar, Type: NewTypeExpr("string"), Kind: "variable"})
		a.analyzeBlock(s.CatchBlock)
		a.popScope()
	case *ThrowStmt:
		a.analyzeExpr(s.Expr)
	case *BreakStmt:
		if a.breakDepth == 0 {
			a.errorf(s.Line, s.Col, "'break' statement outside of loop or switch")
		}
	case *ContinueStmt:
		if a.loopDepth == 0 {
			a.errorf(s.Line, s.Col, "'continue' statement outside of loop")
		}
	}
}

func (a *Analyzer) analyzeSwitch(s *SwitchStmt) {
	a.analyzeExpr(s.Value)
	a.breakDepth++
	hasDefault := false
	for _, cs := range s.Cases {
		if cs.Value != nil {
			a.analyzeExpr(cs.Value)
		} else {
			hasDefault = true
		}
		for _, stmt := range cs.Body {
			a.analyzeStmt(stmt)
		}
	}
	a.breakDepth--

	// Enum switches without a default must cover every value.
	if !hasDefault {
		valType := a.inferType(s.Value)
		if valType == nil {
			return
		}
		enumValues, ok := a.enumTable[valType.Base]
		if !ok {
			return
		}
		covered := map[string]bool{}
		for _, cs := range s.Cases {
			if ident, ok := cs.Value.(*Identifier); ok {
				covered[ident.Name] = true
			}
		}
		missing := lo.Filter(enumValues, func(v string, _ int) bool { return !covered[v] })
		if len(missing) > 0 {
			a.errorf(s.Line, s.Col,
				"Switch on enum '%s' is not exhaustive, missing: %s",
				valType.Base, strings.Join(missing, ", "))
		}
	}
}

func (a *Analyzer) analyzeVarDecl(stmt *VarDeclStmt) {
	// 'var' inference: a nil type means the declaration came without
	// one and the initializer decides.
	if stmt.Type == nil {
		if stmt.Initializer == nil {
			a.errorf(stmt.Line, stmt.Col, "'var' declaration of '%s' requires an initializer", stmt.Name)
			stmt.Type = NewTypeExpr("int") // placeholder so downstream keeps going
		} else {
			a.analyzeExpr(stmt.Initializer)
			inferred := a.inferType(stmt.Initializer)
			if inferred == nil {
				a.errorf(stmt.Line, stmt.Col, "Cannot infer type for 'var' declaration of '%s'", stmt.Name)
				stmt.Type = NewTypeExpr("int")
			} else {
				stmt.Type = inferred.Clone()
			}
			a.collectGenericInstances(stmt.Type)
			a.checkShadowing(stmt)
			a.scope.Define(stmt.Name, &SymbolInfo{Name: stmt.Name, Type: stmt.Type, Kind: "variable"})
			return
		}
	}

	stmt.Type = a.upgradeClassType(stmt.Type)
	a.collectGenericInstances(stmt.Type)
	if stmt.Initializer != nil {
		a.analyzeExpr(stmt.Initializer)
		initType := a.inferType(stmt.Initializer)
		if initType != nil && initType.isVoid() {
			a.errorf(stmt.Line, stmt.Col, "Cannot assign void expression to variable '%s'", stmt.Name)
		} else if initType != nil && stmt.Type != nil && !a.typesCompatible(stmt.Type, initType) {
			a.errorf(stmt.Line, stmt.Col,
				"Cannot assign '%s' to variable '%s' of type '%s'",
				initType.Base, stmt.Name, stmt.Type.Base)
		}
	}
	a.checkShadowing(stmt)
	a.scope.Define(stmt.Name, &SymbolInfo{Name: stmt.Name, Type: stmt.Type, Kind: "variable"})
}

// checkShadowing flags a declaration hiding a variable or parameter
// from an enclosing scope.
func (a *Analyzer) checkShadowing(stmt *VarDeclStmt) {
	if a.scope.parent == nil {
		return
	}
	existing := a.scope.parent.Lookup(stmt.Name)
	if existing != nil && (existing.Kind == "variable" || existing.Kind == "param") {
		a.errorf(stmt.Line, stmt.Col, "Variable '%s' shadows outer variable of same name", stmt.Name)
	}
}

func (a *Analyzer) analyzeForIn(stmt *ForInStmt) {
	a.analyzeExpr(stmt.Iterable)
	a.loopDepth++
	a.breakDepth++
	defer func() { a.loopDepth--; a.breakDepth-- }()

	// range() always iterates ints.
	if isRangeCall(stmt.Iterable) {
		a.pushScope()
		a.scope.Define(stmt.VarName, &SymbolInfo{Name: stmt.VarName, Type: NewTypeExpr("int"), Kind: "variable"})
		a.analyzeBlock(stmt.Body)
		a.popScope()
		return
	}

	iterType := a.inferType(stmt.Iterable)

	// Map iteration: for k, v in m binds key and value; for k in m
	// binds keys only.
	if iterType != nil && iterType.Base == "Map" && len(iterType.GenericArgs) == 2 {
		a.pushScope()
		a.scope.Define(stmt.VarName, &SymbolInfo{Name: stmt.VarName, Type: iterType.GenericArgs[0], Kind: "variable"})
		if stmt.VarName2 != "" {
			a.scope.Define(stmt.VarName2, &SymbolInfo{Name: stmt.VarName2, Type: iterType.GenericArgs[1], Kind: "variable"})
		}
		a.analyzeBlock(stmt.Body)
		a.popScope()
		return
	}

	if stmt.VarName2 != "" {
		a.errorf(stmt.Line, stmt.Col,
			"Two-variable for-in iteration requires a Map type, got '%s'", iterType)
	}

	elemType := a.elementTypeOf(iterType, stmt.Line, stmt.Col)
	a.pushScope()
	if elemType != nil {
		a.scope.Define(stmt.VarName, &SymbolInfo{Name: stmt.VarName, Type: elemType, Kind: "variable"})
	}
	a.analyzeBlock(stmt.Body)
	a.popScope()
}

func isRangeCall(expr Expr) bool {
	call, ok := expr.(*CallExpr)
	if !ok {
		return false
	}
	ident, ok := call.Callee.(*Identifier)
	return ok && ident.Name == "range"
}

func (a *Analyzer) analyzeParallelFor(stmt *ParallelForStmt) {
	a.analyzeExpr(stmt.Iterable)
	iterType := a.inferType(stmt.Iterable)
	elemType := a.elementTypeOf(iterType, stmt.Line, stmt.Col)

	a.loopDepth++
	a.breakDepth++
	a.pushScope()
	if elemType != nil {
		a.scope.Define(stmt.VarName, &SymbolInfo{Name: stmt.VarName, Type: elemType, Kind: "variable"})
	}
	a.analyzeBlock(stmt.Body)
	a.popScope()
	a.loopDepth--
	a.breakDepth--
}

func (a *Analyzer) analyzeCFor(stmt *CForStmt) {
	a.pushScope()
	defer a.popScope()
	switch init := stmt.Init.(type) {
	case *VarDeclStmt:
		a.analyzeVarDecl(init)
	case *ExprStmt:
		a.analyzeExpr(init.Expr)
	}
	if stmt.Cond != nil {
		a.analyzeExpr(stmt.Cond)
	}
	if stmt.Update != nil {
		a.analyzeExpr(stmt.Update)
	}
	a.loopDepth++
	a.breakDepth++
	a.analyzeBlock(stmt.Body)
	a.loopDepth--
	a.breakDepth--
}

// ---- Expressions ----

func (a *Analyzer) analyzeExpr(expr Expr) {
	if expr == nil {
		return
	}

	switch e := expr.(type) {
	case *IntLiteral, *FloatLiteral, *StringLiteral, *CharLiteral, *BoolLiteral, *NullLiteral:
		// literals carry their own types

	case *Identifier:
		// Unknown identifiers are not errors: they may come from C
		// headers we never parse. The C compiler catches real
		// undefined symbols.

	case *SelfExpr:
		a.validateSelf(e)

	case *BinaryExpr:
		a.analyzeExpr(e.Left)
		a.analyzeExpr(e.Right)
		if e.Op == "/" || e.Op == "%" {
			if isZeroLiteral(e.Right) {
				line, col := e.Right.Pos()
				a.errorf(line, col, "Division by zero")
			}
		}

	case *UnaryExpr:
		a.analyzeExpr(e.Operand)

	case *TernaryExpr:
		a.analyzeExpr(e.Cond)
		a.analyzeExpr(e.TrueExpr)
		a.analyzeExpr(e.FalseExpr)

	case *AssignExpr:
		a.analyzeExpr(e.Target)
		a.analyzeExpr(e.Value)
		if e.Op == "/=" || e.Op == "%=" {
			if isZeroLiteral(e.Value) {
				line, col := e.Value.Pos()
				a.errorf(line, col, "Division by zero")
			}
		}

	case *CallExpr:
		a.analyzeCall(e)

	case *IndexExpr:
		a.analyzeExpr(e.Obj)
		a.analyzeExpr(e.Index)

	case *FieldAccessExpr:
		a.analyzeFieldAccess(e)

	case *CastExpr:
		e.TargetType = a.upgradeClassType(e.TargetType)
		a.collectGenericInstances(e.TargetType)
		a.analyzeExpr(e.Expr)

	case *SizeofExpr:
		if e.TypeOperand != nil {
			a.collectGenericInstances(e.TypeOperand)
		} else {
			a.analyzeExpr(e.ExprOperand)
		}

	case *ListLiteral:
		for _, el := range e.Elements {
			a.analyzeExpr(el)
		}
		// All elements must share a compatible type.
		if len(e.Elements) >= 2 {
			if firstType := a.inferType(e.Elements[0]); firstType != nil {
				for i, el := range e.Elements[1:] {
					if elType := a.inferType(el); elType != nil && !a.typesCompatible(firstType, elType) {
						line, col := el.Pos()
						a.errorf(line, col,
							"List element %d has type '%s' but expected '%s'",
							i+1, elType.Base, firstType.Base)
					}
				}
			}
		}

	case *MapLiteral:
		for _, entry := range e.Entries {
			a.analyzeExpr(entry.Key)
			a.analyzeExpr(entry.Value)
		}

	case *FStringLiteral:
		for _, part := range e.Parts {
			if part.IsExpr() {
				a.analyzeExpr(part.Expr)
			}
		}

	case *TupleLiteral:
		for _, el := range e.Elements {
			a.analyzeExpr(el)
		}
		a.collectGenericInstances(a.tupleTypeOf(e))

	case *BraceInitializer:
		for _, el := range e.Elements {
			a.analyzeExpr(el)
		}

	case *LambdaExpr:
		a.analyzeLambda(e)

	case *NewExpr:
		e.Type = a.upgradeClassType(e.Type)
		a.collectGenericInstances(e.Type)
		for _, arg := range e.Args {
			a.analyzeExpr(arg)
		}
		if cls, ok := a.classTable[e.Type.Base]; ok {
			a.validateConstructorArgs(cls, e.Args, e.Line, e.Col)
		}
	}

	// Record the best-effort inferred type for codegen.
	if inferred := a.inferType(expr); inferred != nil {
		a.nodeTypes[expr] = inferred
	}
}

func isZeroLiteral(expr Expr) bool {
	switch lit := expr.(type) {
	case *IntLiteral:
		return lit.Value == 0
	case *FloatLiteral:
		return lit.Value == 0.0
	}
	return false
}

func (a *Analyzer) analyzeLambda(expr *LambdaExpr) {
	prevReturn := a.currentReturnType
	defer func() { a.currentReturnType = prevReturn }()

	a.pushScope()
	defer a.popScope()
	for _, param := range expr.Params {
		param.Type = a.upgradeClassType(param.Type)
		a.collectGenericInstances(param.Type)
		a.scope.Define(param.Name, &SymbolInfo{Name: param.Name, Type: param.Type, Kind: "param"})
	}
	if expr.ReturnType != nil {
		expr.ReturnType = a.upgradeClassType(expr.ReturnType)
		a.collectGenericInstances(expr.ReturnType)
		a.currentReturnType = expr.ReturnType
	} else {
		a.currentReturnType = nil
	}
	a.analyzeBlock(expr.Body)
}

func (a *Analyzer) analyzeCall(expr *CallExpr) {
	a.analyzeExpr(expr.Callee)
	for _, arg := range expr.Args {
		a.analyzeExpr(arg)
	}

	switch callee := expr.Callee.(type) {
	case *Identifier:
		if cls, ok := a.classTable[callee.Name]; ok {
			// Constructor call spelled as ClassName(args).
			a.validateConstructorArgs(cls, expr.Args, expr.Line, expr.Col)
		} else if fn, ok := a.funcTable[callee.Name]; ok && fn.Body != nil {
			a.validateCallArity(fn.Name, fn.Params, expr.Args, expr.Line, expr.Col)
		}
	case *FieldAccessExpr:
		objType := a.inferType(callee.Obj)
		if objType != nil {
			if cls, ok := a.classTable[objType.Base]; ok {
				if method, ok := cls.Methods[callee.Field]; ok {
					a.validateCallArity(cls.Name+"."+callee.Field, method.Params, expr.Args, expr.Line, expr.Col)
				}
			}
			// Map.keys()/Map.values() need concrete List instances for
			// their return types.
			if objType.Base == "Map" && len(objType.GenericArgs) == 2 {
				switch callee.Field {
				case "keys":
					a.collectGenericInstances(NewGenericType("List", objType.GenericArgs[0]))
				case "values":
					a.collectGenericInstances(NewGenericType("List", objType.GenericArgs[1]))
				}
			}
		}
	}
}

// validateCallArity enforces that required parameters (those without
// defaults) are provided and excess arguments are rejected.
func (a *Analyzer) validateCallArity(name string, params []*Param, args []Expr, line, col int) {
	required := lo.CountBy(params, func(p *Param) bool { return p.Default == nil })
	if len(args) < required {
		a.errorf(line, col, "'%s()' expects at least %d argument(s) but got %d", name, required, len(args))
	} else if len(args) > len(params) {
		a.errorf(line, col, "'%s()' expects at most %d argument(s) but got %d", name, len(params), len(args))
	}
}

func (a *Analyzer) validateConstructorArgs(cls *ClassInfo, args []Expr, line, col int) {
	if cls.Constructor == nil {
		if len(args) > 0 {
			a.errorf(line, col, "Class '%s' has no constructor but was called with %d argument(s)",
				cls.Name, len(args))
		}
		return
	}
	params := cls.Constructor.Params
	required := lo.CountBy(params, func(p *Param) bool { return p.Default == nil })
	if len(args) < required {
		a.errorf(line, col, "Constructor '%s()' expects at least %d argument(s) but got %d",
			cls.Name, required, len(args))
	} else if len(args) > len(params) {
		a.errorf(line, col, "Constructor '%s()' expects at most %d argument(s) but got %d",
			cls.Name, len(params), len(args))
	}
}

func (a *Analyzer) analyzeFieldAccess(expr *FieldAccessExpr) {
	a.analyzeExpr(expr.Obj)

	objType := a.inferType(expr.Obj)
	if objType != nil {
		if cls, ok := a.classTable[objType.Base]; ok {
			if prop, ok := cls.Properties[expr.Field]; ok {
				if prop.Access == "private" && !a.insideClass(cls.Name) {
					a.errorf(expr.Line, expr.Col,
						"Cannot access private property '%s' of class '%s'", expr.Field, cls.Name)
				}
				return
			}
			if field, ok := cls.Fields[expr.Field]; ok {
				if field.Access == "private" && !a.insideClass(cls.Name) {
					a.errorf(expr.Line, expr.Col,
						"Cannot access private field '%s' of class '%s'", expr.Field, cls.Name)
				}
			} else if method, ok := cls.Methods[expr.Field]; ok {
				if method.Access == "private" && !a.insideClass(cls.Name) {
					a.errorf(expr.Line, expr.Col,
						"Cannot access private method '%s' of class '%s'", expr.Field, cls.Name)
				}
			} else {
				a.errorf(expr.Line, expr.Col,
					"Class '%s' has no field or method '%s'", cls.Name, expr.Field)
			}
			return
		}
	}

	// ClassName.method — static call. Methods reached this way must be
	// declared with the 'class' access level.
	if ident, ok := expr.Obj.(*Identifier); ok {
		if cls, ok := a.classTable[ident.Name]; ok {
			if method, ok := cls.Methods[expr.Field]; ok && method.Access != "class" {
				a.errorf(expr.Line, expr.Col,
					"Method '%s' is not a class method, cannot call statically", expr.Field)
			}
		}
	}
}

func (a *Analyzer) insideClass(name string) bool {
	return a.currentClass != nil && a.currentClass.Name == name
}

func (a *Analyzer) validateSelf(expr *SelfExpr) {
	switch {
	case a.currentClass == nil:
		a.errorf(expr.Line, expr.Col, "'self' used outside of a class")
	case a.currentMethod == nil:
		a.errorf(expr.Line, expr.Col, "'self' used outside of a method")
	case a.currentMethod.Access == "class":
		a.errorf(expr.Line, expr.Col, "'self' cannot be used in a class (static) method")
	}
}

// ---- Generic instance collection ----

// collectGenericInstances records every generic type that appears
// anywhere in the program, enforcing built-in and user generic arity.
// Map<K,V> additionally registers List<K> and List<V> so keys() and
// values() have concrete return types; Set<T> registers List<T> for
// toList().
func (a *Analyzer) collectGenericInstances(t *TypeExpr) {
	if t == nil || len(t.GenericArgs) == 0 {
		return
	}

	expected, known := builtinGenericArity[t.Base]
	if !known {
		if cls, ok := a.classTable[t.Base]; ok && len(cls.GenericParams) > 0 {
			expected, known = len(cls.GenericParams), true
		}
	}
	if known && len(t.GenericArgs) != expected {
		a.errorf(t.Line, t.Col,
			"Type '%s' expects %d generic argument(s) but got %d",
			t.Base, expected, len(t.GenericArgs))
	}

	instances := a.genericInstances[t.Base]
	exists := lo.SomeBy(instances, func(inst GenericInstance) bool {
		if len(inst.Args) != len(t.GenericArgs) {
			return false
		}
		for i, arg := range inst.Args {
			if !arg.Equal(t.GenericArgs[i]) {
				return false
			}
		}
		return true
	})
	if !exists {
		if _, ok := a.genericInstances[t.Base]; !ok {
			a.genericOrder = append(a.genericOrder, t.Base)
		}
		a.genericInstances[t.Base] = append(instances, GenericInstance{Args: t.GenericArgs})
	}

	if t.Base == "Map" && len(t.GenericArgs) == 2 {
		a.collectGenericInstances(NewGenericType("List", t.GenericArgs[0]))
		a.collectGenericInstances(NewGenericType("List", t.GenericArgs[1]))
	}
	if t.Base == "Set" && len(t.GenericArgs) == 1 {
		a.collectGenericInstances(NewGenericType("List", t.GenericArgs[0]))
	}

	for _, arg := range t.GenericArgs {
		a.collectGenericInstances(arg)
	}
}

// ---- Type compatibility ----

// typesCompatible is the best-effort assignment lattice: identical
// bases match; numeric types interconvert; string matches char*; null
// and void* match any pointer or string; classes follow the subclass
// relation; container bases must match exactly; unknown bases (C
// headers) are permissive.
func (a *Analyzer) typesCompatible(target, source *TypeExpr) bool {
	if target.Base == source.Base {
		return true
	}
	numeric := map[string]bool{"int": true, "float": true, "double": true, "char": true}
	if numeric[target.Base] && numeric[source.Base] {
		return true
	}
	if target.Base == "string" && source.Base == "char" && source.PointerDepth >= 1 {
		return true
	}
	if source.Base == "string" && target.Base == "char" && target.PointerDepth >= 1 {
		return true
	}
	if source.Base == "null" || (source.Base == "void" && source.PointerDepth > 0) {
		return target.PointerDepth > 0 || target.Base == "string"
	}
	_, targetIsClass := a.classTable[target.Base]
	_, sourceIsClass := a.classTable[source.Base]
	if targetIsClass && sourceIsClass {
		return a.isSubclass(source.Base, target.Base)
	}
	if target.isCollection() && source.isCollection() {
		return target.Base == source.Base
	}
	known := func(base string) bool {
		if numeric[base] || base == "string" || base == "bool" || base == "void" {
			return true
		}
		return (&TypeExpr{Base: base}).isCollection()
	}
	if known(target.Base) && known(source.Base) {
		return false
	}
	// Unknown bases come from C headers; stay permissive.
	return true
}

// isSubclass reports whether child extends parent, directly or
// transitively. A class is its own subclass.
func (a *Analyzer) isSubclass(child, parent string) bool {
	if child == parent {
		return true
	}
	info := a.classTable[child]
	visited := map[string]bool{}
	for info != nil && info.Parent != "" && !visited[info.Parent] {
		visited[info.Parent] = true
		if info.Parent == parent {
			return true
		}
		info = a.classTable[info.Parent]
	}
	return false
}
