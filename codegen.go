package btrc

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// CodeGen turns the analyzed program into a single self-contained C
// translation unit. Emission is phased so that nothing is referenced
// before it is defined: includes and runtime helpers, class forward
// typedefs, monomorphized container structs, class struct bodies,
// destructor prototypes, container function bodies, globals and
// enums, user function prototypes, lifted lambdas, then declarations.
type CodeGen struct {
	analyzed   *AnalyzedProgram
	classTable map[string]*ClassInfo
	nodeTypes  map[Expr]*TypeExpr
	out        *outputWriter
	cfg        *Config

	emittedHelpers map[string]bool
	userIncludes   map[string]bool
	emittedGlobals map[Decl]bool

	needsStringHelpers bool
	needsMathHelpers   bool
	needsTryCatch      bool
	needsThreads       bool

	lambdaDefs    []string
	currentClass  *ClassInfo
	fstrCounter   int
	lambdaCounter int
	stepCounter   int
	tmpCounter    int
}

func NewCodeGen(analyzed *AnalyzedProgram, cfg *Config) *CodeGen {
	if cfg == nil {
		cfg = &Config{}
	}
	return &CodeGen{
		analyzed:       analyzed,
		classTable:     analyzed.ClassTable,
		nodeTypes:      analyzed.NodeTypes,
		out:            newOutputWriter("    "),
		cfg:            cfg,
		emittedHelpers: map[string]bool{},
		userIncludes:   map[string]bool{},
		emittedGlobals: map[Decl]bool{},
	}
}

// Generate renders the full translation unit.
func (g *CodeGen) Generate() string {
	g.collectUserIncludes()
	g.prescanLambdas()
	g.emitHeader()
	g.emitClassForwardDeclarations() // typedef struct Foo Foo;
	g.emitGenericStructTypedefs()    // btrc_List_int etc. (class members as pointers)
	g.emitStructDefinitions()        // full class struct bodies
	g.emitDestroyForwardDeclarations()
	g.emitGenericFunctionBodies() // List before Map before Set
	g.emitGlobalsAndEnums()       // before lambdas that may reference them
	g.emitFunctionForwardDeclarations()
	for _, def := range g.lambdaDefs {
		g.out.writel(def)
	}
	g.emitDeclarations()
	return g.out.output()
}

func (g *CodeGen) emitLineDirective(line int) {
	if g.cfg.Debug && line > 0 {
		g.out.writel(fmt.Sprintf("#line %d \"%s\"", line, g.cfg.SourceFile))
	}
}

// ---- Lambda pre-scan ----

func (g *CodeGen) prescanLambdas() {
	WalkProgram(g.analyzed.Program, func(n Node) {
		if lambda, ok := n.(*LambdaExpr); ok {
			g.registerLambda(lambda)
		}
	})
}

// registerLambda lifts a lambda into a top-level static function with
// a synthesized name; the expression later renders as that name.
func (g *CodeGen) registerLambda(expr *LambdaExpr) {
	if expr.CName != "" {
		return
	}
	g.lambdaCounter++
	expr.CName = fmt.Sprintf("__btrc_lambda_%d", g.lambdaCounter)

	// Nested lambdas lift first so this body can reference their
	// synthesized names (and their definitions precede this one).
	if expr.Body != nil {
		Walk(expr.Body, func(n Node) {
			if nested, ok := n.(*LambdaExpr); ok && nested != expr {
				g.registerLambda(nested)
			}
		})
	}

	retType := "int"
	if expr.ReturnType != nil {
		retType = g.typeToC(expr.ReturnType)
	} else if t := g.inferLambdaReturnC(expr); t != "" {
		retType = t
	}

	params := make([]string, 0, len(expr.Params))
	for _, p := range expr.Params {
		params = append(params, g.paramToC(p))
	}
	paramsStr := "void"
	if len(params) > 0 {
		paramsStr = strings.Join(params, ", ")
	}

	saved := g.out
	g.out = newOutputWriter("    ")
	g.out.writeilf("static %s %s(%s) {", retType, expr.CName, paramsStr)
	g.out.indent()
	g.emitBlockContents(expr.Body)
	g.out.unindent()
	g.out.writeil("}")
	def := g.out.output()
	g.out = saved

	g.lambdaDefs = append(g.lambdaDefs, def)
}

func (g *CodeGen) inferLambdaReturnC(expr *LambdaExpr) string {
	if expr.Body == nil {
		return ""
	}
	for _, stmt := range expr.Body.Statements {
		if ret, ok := stmt.(*ReturnStmt); ok && ret.Value != nil {
			if t := g.nodeTypes[ret.Value]; t != nil {
				return g.typeToC(t)
			}
		}
	}
	return ""
}

// ---- Includes ----

// includeMappings maps known libc functions to the header each one
// needs, so user calls pull the right #include automatically.
var includeMappings = map[string]string{
	// stdio.h
	"printf": "<stdio.h>", "fprintf": "<stdio.h>", "sprintf": "<stdio.h>",
	"snprintf": "<stdio.h>", "scanf": "<stdio.h>", "fscanf": "<stdio.h>",
	"sscanf": "<stdio.h>", "fopen": "<stdio.h>", "fclose": "<stdio.h>",
	"fread": "<stdio.h>", "fwrite": "<stdio.h>", "fgets": "<stdio.h>",
	"fputs": "<stdio.h>", "puts": "<stdio.h>", "getchar": "<stdio.h>",
	"putchar": "<stdio.h>", "perror": "<stdio.h>", "fflush": "<stdio.h>",
	"fseek": "<stdio.h>", "ftell": "<stdio.h>", "rewind": "<stdio.h>",
	"remove": "<stdio.h>", "rename": "<stdio.h>", "tmpfile": "<stdio.h>",
	// stdlib.h
	"malloc": "<stdlib.h>", "calloc": "<stdlib.h>", "realloc": "<stdlib.h>",
	"free": "<stdlib.h>", "exit": "<stdlib.h>", "abort": "<stdlib.h>",
	"atoi": "<stdlib.h>", "atof": "<stdlib.h>", "atol": "<stdlib.h>",
	"strtol": "<stdlib.h>", "strtod": "<stdlib.h>", "rand": "<stdlib.h>",
	"srand": "<stdlib.h>", "abs": "<stdlib.h>", "qsort": "<stdlib.h>",
	"bsearch": "<stdlib.h>", "system": "<stdlib.h>",
	// math.h
	"sin": "<math.h>", "cos": "<math.h>", "tan": "<math.h>",
	"asin": "<math.h>", "acos": "<math.h>", "atan": "<math.h>",
	"atan2": "<math.h>", "sqrt": "<math.h>", "pow": "<math.h>",
	"exp": "<math.h>", "log": "<math.h>", "log2": "<math.h>",
	"log10": "<math.h>", "ceil": "<math.h>", "floor": "<math.h>",
	"round": "<math.h>", "fabs": "<math.h>", "fmod": "<math.h>",
	"hypot": "<math.h>",
	// string.h
	"strlen": "<string.h>", "strcmp": "<string.h>", "strncmp": "<string.h>",
	"strcpy": "<string.h>", "strncpy": "<string.h>", "strcat": "<string.h>",
	"strncat": "<string.h>", "strstr": "<string.h>", "strchr": "<string.h>",
	"strrchr": "<string.h>", "memset": "<string.h>", "memcpy": "<string.h>",
	"memmove": "<string.h>", "memcmp": "<string.h>", "strdup": "<string.h>",
	"strtok": "<string.h>",
	// ctype.h
	"isalpha": "<ctype.h>", "isdigit": "<ctype.h>", "isalnum": "<ctype.h>",
	"isspace": "<ctype.h>", "toupper": "<ctype.h>", "tolower": "<ctype.h>",
	"isupper": "<ctype.h>", "islower": "<ctype.h>", "isprint": "<ctype.h>",
	"ispunct": "<ctype.h>",
	// assert.h
	"assert": "<assert.h>",
	// time.h
	"time": "<time.h>", "clock": "<time.h>", "difftime": "<time.h>",
	"mktime": "<time.h>", "strftime": "<time.h>",
}

func (g *CodeGen) collectUserIncludes() {
	for _, decl := range g.analyzed.Program.Declarations {
		if pp, ok := decl.(*PreprocessorDirective); ok {
			text := strings.TrimSpace(pp.Text)
			if strings.HasPrefix(text, "#include") {
				rest := strings.TrimSpace(text[len("#include"):])
				g.userIncludes[rest] = true
			}
		}
	}
}

func (g *CodeGen) neededIncludes() map[string]bool {
	needed := map[string]bool{}
	WalkProgram(g.analyzed.Program, func(n Node) {
		call, ok := n.(*CallExpr)
		if !ok {
			return
		}
		if ident, ok := call.Callee.(*Identifier); ok {
			if header, ok := includeMappings[ident.Name]; ok {
				needed[header] = true
			}
		}
	})
	return needed
}

// ---- Header ----

func (g *CodeGen) emitHeader() {
	g.out.writel("/* Generated by btrc */")

	// Core runtime headers always come first: generic instantiations
	// land before user code, so waiting for a user #include would be
	// too late. Duplicates are harmless under include guards.
	alwaysInclude := []string{"<stdbool.h>", "<stdio.h>", "<stdlib.h>", "<string.h>"}
	needed := g.neededIncludes()

	g.needsStringHelpers = g.detectStringHelpers()
	if g.needsStringHelpers {
		alwaysInclude = append(alwaysInclude, "<ctype.h>")
	}
	g.needsMathHelpers = g.detectMathHelpers()
	if g.needsMathHelpers {
		alwaysInclude = append(alwaysInclude, "<math.h>")
	}
	g.needsTryCatch = g.detectTryCatch()
	if g.needsTryCatch {
		needed["<setjmp.h>"] = true
	}
	g.needsThreads = g.detectThreads()
	if g.needsThreads {
		needed["<pthread.h>"] = true
	}

	slices.Sort(alwaysInclude)
	for _, header := range alwaysInclude {
		g.out.writel("#include " + header)
	}
	extra := make([]string, 0, len(needed))
	for header := range needed {
		if !slices.Contains(alwaysInclude, header) && !g.userIncludes[header] {
			extra = append(extra, header)
		}
	}
	slices.Sort(extra)
	for _, header := range extra {
		g.out.writel("#include " + header)
	}
	g.out.blank()

	// Division/modulo and allocation safety are always on.
	g.emitHelperGroup("divmod")
	g.emitHelperGroup("alloc")
	if g.needsStringHelpers {
		g.emitHelperGroup("strings")
		g.emitHelperGroup("stringpool")
	}
	if g.needsMathHelpers {
		g.emitHelperGroup("math")
	}
	if g.needsTryCatch {
		g.emitHelperGroup("trycatch")
	}
	if g.needsThreads {
		g.emitHelperGroup("threads")
	}
}

// ---- Use detection walks ----

var stringHelperMethods = map[string]bool{
	"substring": true, "trim": true, "toUpper": true, "toLower": true,
	"indexOf": true, "lastIndexOf": true, "replace": true, "split": true,
	"charLen": true, "repeat": true, "count": true, "find": true,
	"lstrip": true, "rstrip": true, "capitalize": true, "title": true,
	"swapCase": true, "padLeft": true, "padRight": true, "center": true,
	"isBlank": true, "isAlnum": true, "charAt": true, "reverse": true,
	"isEmpty": true, "removePrefix": true, "removeSuffix": true,
	"isDigitStr": true, "isAlphaStr": true, "isUpper": true, "isLower": true,
	"contains": true, "startsWith": true, "endsWith": true, "zfill": true,
}

func (g *CodeGen) detectStringHelpers() bool {
	found := false
	WalkProgram(g.analyzed.Program, func(n Node) {
		if found {
			return
		}
		switch e := n.(type) {
		case *CallExpr:
			access, ok := e.Callee.(*FieldAccessExpr)
			if !ok {
				return
			}
			if stringHelperMethods[access.Field] {
				if t := g.nodeTypes[access.Obj]; t != nil && t.isStringLike() {
					found = true
				}
			}
			if access.Field == "toString" {
				if t := g.nodeTypes[access.Obj]; t != nil {
					switch t.Base {
					case "int", "float", "double", "long":
						found = true
					}
				}
			}
			if ident, ok := access.Obj.(*Identifier); ok && ident.Name == "Strings" {
				found = true
			}
			// List<string>.join allocates through the string suite too.
			if access.Field == "join" || access.Field == "joinToString" {
				if t := g.nodeTypes[access.Obj]; t != nil && t.Base == "List" {
					found = true
				}
			}
		case *BinaryExpr:
			if e.Op == "+" || e.Op == "==" || e.Op == "!=" {
				if t := g.nodeTypes[e.Left]; t != nil && t.Base == "string" {
					found = true
				}
			}
		case *AssignExpr:
			if e.Op == "+=" {
				if t := g.nodeTypes[e.Target]; t != nil && t.Base == "string" {
					found = true
				}
			}
		case *FStringLiteral:
			// f-strings as values snprintf into heap buffers; the
			// conversion helpers ride along with the string suite.
		}
	})
	return found
}

func (g *CodeGen) detectMathHelpers() bool {
	found := false
	WalkProgram(g.analyzed.Program, func(n Node) {
		if found {
			return
		}
		call, ok := n.(*CallExpr)
		if !ok {
			return
		}
		if access, ok := call.Callee.(*FieldAccessExpr); ok {
			if ident, ok := access.Obj.(*Identifier); ok && ident.Name == "Math" {
				if _, isClass := g.classTable["Math"]; !isClass {
					found = true
				}
			}
		}
	})
	return found
}

func (g *CodeGen) detectTryCatch() bool {
	found := false
	WalkProgram(g.analyzed.Program, func(n Node) {
		switch n.(type) {
		case *TryCatchStmt, *ThrowStmt:
			found = true
		}
	})
	return found
}

func (g *CodeGen) detectThreads() bool {
	found := false
	WalkProgram(g.analyzed.Program, func(n Node) {
		if call, ok := n.(*CallExpr); ok {
			if ident, ok := call.Callee.(*Identifier); ok {
				switch ident.Name {
				case "spawn", "pthread_create":
					found = true
				}
			}
		}
	})
	return found
}

// ---- Forward declarations and struct bodies ----

func (g *CodeGen) emitClassForwardDeclarations() {
	emitted := false
	for _, name := range g.analyzed.ClassOrder {
		if len(g.classTable[name].GenericParams) == 0 {
			g.out.writelf("typedef struct %s %s;", name, name)
			emitted = true
		}
	}
	if emitted {
		g.out.blank()
	}
}

func (g *CodeGen) emitStructDefinitions() {
	for _, decl := range g.analyzed.Program.Declarations {
		if cls, ok := decl.(*ClassDecl); ok && len(cls.GenericParams) == 0 {
			g.emitClassStruct(cls)
		}
	}
}

// emitClassStruct lays out inherited fields first (skipping those the
// child shadows), then child fields and auto-property backing fields.
// Empty structs get a one-byte placeholder so C accepts them.
func (g *CodeGen) emitClassStruct(decl *ClassDecl) {
	childFields := map[string]bool{}
	for _, m := range decl.Members {
		if f, ok := m.(*FieldDecl); ok {
			childFields[f.Name] = true
		}
	}

	g.emitLineDirective(decl.Line)
	g.out.writelf("struct %s {", decl.Name)
	g.out.indent()
	fieldCount := 0
	if decl.Parent != "" {
		if parent, ok := g.classTable[decl.Parent]; ok {
			for _, fld := range parent.OrderedFields() {
				if !childFields[fld.Name] {
					g.out.writeilf("%s %s;", g.typeToC(fld.Type), fld.Name)
					fieldCount++
				}
			}
		}
	}
	for _, member := range decl.Members {
		switch m := member.(type) {
		case *FieldDecl:
			g.out.writeilf("%s %s;", g.typeToC(m.Type), m.Name)
			fieldCount++
		case *PropertyDecl:
			autoGetter := m.HasGetter && m.GetterBody == nil
			autoSetter := m.HasSetter && m.SetterBody == nil
			if autoGetter || autoSetter {
				g.out.writeilf("%s _%s;", g.typeToC(m.Type), m.Name)
				fieldCount++
			}
		}
	}
	if fieldCount == 0 {
		g.out.writeil("char _dummy;")
	}
	g.out.unindent()
	g.out.writel("};")
	g.out.blank()
}

func (g *CodeGen) emitDestroyForwardDeclarations() {
	emitted := false
	for _, name := range g.analyzed.ClassOrder {
		if len(g.classTable[name].GenericParams) == 0 {
			g.out.writelf("void %s_destroy(%s* self);", name, name)
			emitted = true
		}
	}
	if emitted {
		g.out.blank()
	}
}

// emitDestroyFunction handles the recursive cleanup behind 'delete':
// owned class-pointer fields are destroyed, owned collections freed,
// then the object itself.
func (g *CodeGen) emitDestroyFunction(className string, cls *ClassInfo) {
	g.out.writelf("void %s_destroy(%s* self) {", className, className)
	g.out.indent()
	g.out.writeil("if (self == NULL) return;")

	if _, ok := cls.Methods["__del__"]; ok {
		g.out.writeilf("%s___del__(self);", className)
	}

	for _, fld := range cls.OrderedFields() {
		if fld.Type == nil {
			continue
		}
		switch {
		case fld.Type.PointerDepth > 0 && g.isClassName(fld.Type.Base):
			g.out.writeilf("%s_destroy(self->%s);", fld.Type.Base, fld.Name)
		case fld.Type.Base == "List" && len(fld.Type.GenericArgs) > 0,
			fld.Type.Base == "Map" && len(fld.Type.GenericArgs) == 2,
			fld.Type.Base == "Set" && len(fld.Type.GenericArgs) > 0:
			g.out.writeilf("%s_free(&self->%s);", g.typeToC(fld.Type), fld.Name)
		}
	}

	g.out.writeil("free(self);")
	g.out.unindent()
	g.out.writel("}")
	g.out.blank()
}

func (g *CodeGen) isClassName(name string) bool {
	_, ok := g.classTable[name]
	return ok
}

// ---- Globals, prototypes, declarations ----

func (g *CodeGen) emitGlobalsAndEnums() {
	for _, decl := range g.analyzed.Program.Declarations {
		switch decl.(type) {
		case *VarDeclStmt, *EnumDecl:
			g.emitDecl(decl)
			g.emittedGlobals[decl] = true
		}
	}
}

// emitFunctionForwardDeclarations prototypes every user function with
// a body so mutual recursion works without reordering. main is
// skipped, as are functions whose signatures mention raw 'struct X'
// types that may not be visible yet.
func (g *CodeGen) emitFunctionForwardDeclarations() {
	emitted := false
	for _, decl := range g.analyzed.Program.Declarations {
		fn, ok := decl.(*FunctionDecl)
		if !ok || fn.Body == nil || fn.Name == "main" || fn.IsGpu {
			continue
		}
		usesStruct := fn.ReturnType != nil && strings.HasPrefix(fn.ReturnType.Base, "struct ")
		for _, p := range fn.Params {
			if p.Type != nil && strings.HasPrefix(p.Type.Base, "struct ") {
				usesStruct = true
			}
		}
		if usesStruct {
			continue
		}
		g.out.writelf("%s %s(%s);", g.typeToC(fn.ReturnType), fn.Name, g.paramListToC(fn.Params))
		emitted = true
	}
	if emitted {
		g.out.blank()
	}
}

func (g *CodeGen) emitDeclarations() {
	for _, decl := range g.analyzed.Program.Declarations {
		if !g.emittedGlobals[decl] {
			g.emitDecl(decl)
		}
	}
}

func (g *CodeGen) emitDecl(decl Decl) {
	switch d := decl.(type) {
	case *PreprocessorDirective:
		g.out.writel(d.Text)
	case *ClassDecl:
		g.emitClass(d)
	case *FunctionDecl:
		if d.IsGpu {
			g.emitGpuFunction(d)
		} else {
			g.emitFunction(d)
		}
	case *VarDeclStmt:
		g.emitVarDecl(d)
	case *StructDecl:
		g.emitStruct(d)
	case *EnumDecl:
		g.emitEnum(d)
	case *TypedefDecl:
		g.out.writelf("typedef %s %s;", g.typeToC(d.Original), d.Alias)
		g.out.blank()
	}
}

// ---- Classes ----

// emitClass renders method prototypes, bodies, property accessors, a
// synthesized default constructor when needed, and the destructor.
// Inherited methods are re-emitted against the child class so dispatch
// stays monomorphic.
func (g *CodeGen) emitClass(decl *ClassDecl) {
	if len(decl.GenericParams) > 0 {
		return // generic classes exist only as monomorphized instances
	}

	cls := g.classTable[decl.Name]
	g.currentClass = cls
	defer func() { g.currentClass = nil }()

	childMethods := map[string]bool{}
	for _, m := range decl.Members {
		if method, ok := m.(*MethodDecl); ok {
			childMethods[method.Name] = true
		}
	}

	var methods []*MethodDecl
	if decl.Parent != "" {
		if parent, ok := g.classTable[decl.Parent]; ok {
			for _, method := range parent.OrderedMethods() {
				if !childMethods[method.Name] && method.Name != decl.Parent {
					methods = append(methods, method)
				}
			}
		}
	}
	for _, member := range decl.Members {
		if method, ok := member.(*MethodDecl); ok {
			methods = append(methods, method)
		}
	}

	for _, method := range methods {
		g.emitMethodForwardDecl(decl.Name, method)
	}
	for _, method := range methods {
		g.emitMethod(decl.Name, method, cls)
	}

	for _, member := range decl.Members {
		if prop, ok := member.(*PropertyDecl); ok {
			g.emitPropertyAccessors(decl.Name, prop)
		}
	}

	// A default constructor is synthesized for every class without an
	// explicit one, applying field defaults (inherited ones included),
	// so 'new X()' always has a target.
	if cls.Constructor == nil {
		g.emitDefaultConstructor(decl, cls)
	}

	g.emitDestroyFunction(decl.Name, cls)
}

func (g *CodeGen) methodSignature(className string, method *MethodDecl) (retType, funcName, params string) {
	isConstructor := method.Name == className
	isStatic := method.Access == "class"
	if isConstructor {
		retType = className + "*"
		funcName = className + "_new"
	} else {
		retType = g.typeToC(method.ReturnType)
		funcName = className + "_" + method.Name
	}
	var parts []string
	if !isStatic && !isConstructor {
		parts = append(parts, className+"* self")
	}
	for _, p := range method.Params {
		parts = append(parts, g.paramToC(p))
	}
	params = "void"
	if len(parts) > 0 {
		params = strings.Join(parts, ", ")
	}
	return retType, funcName, params
}

func (g *CodeGen) emitMethodForwardDecl(className string, method *MethodDecl) {
	retType, funcName, params := g.methodSignature(className, method)
	g.out.writelf("%s %s(%s);", retType, funcName, params)
}

func (g *CodeGen) emitMethod(className string, method *MethodDecl, cls *ClassInfo) {
	retType, funcName, params := g.methodSignature(className, method)
	isConstructor := method.Name == className

	g.emitLineDirective(method.Line)
	g.out.writelf("%s %s(%s) {", retType, funcName, params)
	g.out.indent()
	if isConstructor {
		g.out.writeilf("%s* self = (%s*)malloc(sizeof(%s));", className, className, className)
		g.out.writeilf("memset(self, 0, sizeof(%s));", className)
		// Field defaults run before the user's constructor body.
		for _, fld := range cls.OrderedFields() {
			if fld.Initializer != nil {
				g.emitFieldDefault(fld)
			}
		}
		g.emitBlockContents(method.Body)
		g.out.writeil("return self;")
	} else {
		g.emitBlockContents(method.Body)
	}
	g.out.unindent()
	g.out.writel("}")
	g.out.blank()
}

func (g *CodeGen) emitFieldDefault(fld *FieldDecl) {
	isCollectionLit := false
	switch fld.Initializer.(type) {
	case *ListLiteral, *MapLiteral:
		isCollectionLit = true
	case *BraceInitializer:
		if len(fld.Initializer.(*BraceInitializer).Elements) == 0 {
			isCollectionLit = true
		}
	}
	if isCollectionLit && fld.Type != nil && fld.Type.isCollection() {
		cType := g.typeToC(fld.Type)
		g.out.writeilf("self->%s = %s_new();", fld.Name, cType)
		switch lit := fld.Initializer.(type) {
		case *ListLiteral:
			for _, el := range lit.Elements {
				g.out.writeilf("%s_push(&self->%s, %s);", cType, fld.Name, g.exprToC(el))
			}
		case *MapLiteral:
			for _, entry := range lit.Entries {
				g.out.writeilf("%s_put(&self->%s, %s, %s);", cType, fld.Name,
					g.exprToC(entry.Key), g.exprToC(entry.Value))
			}
		}
		return
	}
	g.out.writeilf("self->%s = %s;", fld.Name, g.exprToC(fld.Initializer))
}

func (g *CodeGen) emitDefaultConstructor(decl *ClassDecl, cls *ClassInfo) {
	g.out.writelf("%s* %s_new(void) {", decl.Name, decl.Name)
	g.out.indent()
	g.out.writeilf("%s* self = (%s*)malloc(sizeof(%s));", decl.Name, decl.Name, decl.Name)
	g.out.writeilf("memset(self, 0, sizeof(%s));", decl.Name)
	for _, fld := range cls.OrderedFields() {
		if fld.Initializer != nil {
			g.emitFieldDefault(fld)
		}
	}
	g.out.writeil("return self;")
	g.out.unindent()
	g.out.writel("}")
	g.out.blank()
}

func (g *CodeGen) emitPropertyAccessors(className string, prop *PropertyDecl) {
	cType := g.typeToC(prop.Type)
	autoGetter := prop.HasGetter && prop.GetterBody == nil
	autoSetter := prop.HasSetter && prop.SetterBody == nil

	if prop.HasGetter {
		g.out.writelf("%s %s_get_%s(%s* self) {", cType, className, prop.Name, className)
		g.out.indent()
		if autoGetter {
			g.out.writeilf("return self->_%s;", prop.Name)
		} else {
			g.emitBlockContents(prop.GetterBody)
		}
		g.out.unindent()
		g.out.writel("}")
		g.out.blank()
	}
	if prop.HasSetter {
		g.out.writelf("void %s_set_%s(%s* self, %s value) {", className, prop.Name, className, cType)
		g.out.indent()
		if autoSetter {
			g.out.writeilf("self->_%s = value;", prop.Name)
		} else {
			g.emitBlockContents(prop.SetterBody)
		}
		g.out.unindent()
		g.out.writel("}")
		g.out.blank()
	}
}

// ---- Functions ----

func (g *CodeGen) paramToC(p *Param) string {
	cType := g.typeToC(p.Type)
	suffix := ""
	if p.Type != nil && p.Type.ArraySize != nil {
		suffix = "[" + g.exprToC(p.Type.ArraySize) + "]"
	} else if p.Type != nil && p.Type.IsArray && len(p.Type.GenericArgs) == 0 {
		suffix = "[]"
	}
	return fmt.Sprintf("%s %s%s", cType, p.Name, suffix)
}

func (g *CodeGen) paramListToC(params []*Param) string {
	if len(params) == 0 {
		return "void"
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, g.paramToC(p))
	}
	return strings.Join(parts, ", ")
}

func (g *CodeGen) emitFunction(decl *FunctionDecl) {
	if decl.Body == nil {
		return // prototype already covered by the forward-decl pass
	}
	g.emitLineDirective(decl.Line)
	g.out.writelf("%s %s(%s) {", g.typeToC(decl.ReturnType), decl.Name, g.paramListToC(decl.Params))
	g.out.indent()
	g.emitBlockContents(decl.Body)
	g.out.unindent()
	g.out.writel("}")
	g.out.blank()
}

// emitGpuFunction renders the kernel as a GLSL compute shader string
// plus a host-side dispatch stub. The dispatch body is intentionally a
// TODO marker; GPU execution lives outside this compiler.
func (g *CodeGen) emitGpuFunction(decl *FunctionDecl) {
	shaderName := "__btrc_gpu_shader_" + decl.Name

	g.out.writelf("static const char* %s =", shaderName)
	for _, line := range strings.Split(g.generateGLSL(decl), "\n") {
		g.out.writeilf("\"%s\\n\"", line)
	}
	g.out.writel(";")
	g.out.blank()

	params := make([]string, 0, len(decl.Params)+1)
	for _, p := range decl.Params {
		params = append(params, g.typeToC(p.Type)+" "+p.Name)
	}
	params = append(params, "int __btrc_n")

	g.out.writelf("void %s(%s) {", decl.Name, strings.Join(params, ", "))
	g.out.indent()
	g.out.writeilf("/* TODO: OpenGL compute dispatch using %s */", shaderName)
	g.out.writeil("/* Buffer setup, shader compilation, and dispatch */")
	g.out.unindent()
	g.out.writel("}")
	g.out.blank()
}

func (g *CodeGen) generateGLSL(decl *FunctionDecl) string {
	var lines []string
	lines = append(lines, "#version 430")
	lines = append(lines, "layout(local_size_x = 256) in;")
	for i, p := range decl.Params {
		lines = append(lines, fmt.Sprintf("layout(std430, binding = %d) buffer buf%d { float %s[]; };", i, i, p.Name))
	}
	lines = append(lines, "void main() {")
	lines = append(lines, "    uint i = gl_GlobalInvocationID.x;")
	lines = append(lines, "    /* kernel body */")
	lines = append(lines, "}")
	return strings.Join(lines, "\n")
}

// ---- Struct / enum passthrough ----

func (g *CodeGen) emitStruct(decl *StructDecl) {
	if len(decl.Fields) == 0 {
		g.out.writelf("struct %s;", decl.Name)
		g.out.blank()
		return
	}
	g.out.writelf("typedef struct %s {", decl.Name)
	g.out.indent()
	for _, f := range decl.Fields {
		suffix := ""
		if f.Type.ArraySize != nil {
			suffix = "[" + g.exprToC(f.Type.ArraySize) + "]"
		} else if f.Type.IsArray && len(f.Type.GenericArgs) == 0 {
			suffix = "[]"
		}
		g.out.writeilf("%s %s%s;", g.typeToC(f.Type), f.Name, suffix)
	}
	g.out.unindent()
	g.out.writelf("} %s;", decl.Name)
	g.out.blank()
}

func (g *CodeGen) emitEnum(decl *EnumDecl) {
	g.out.writel("typedef enum {")
	g.out.indent()
	for i, v := range decl.Values {
		suffix := ","
		if i == len(decl.Values)-1 {
			suffix = ""
		}
		if v.Value != nil {
			g.out.writeilf("%s = %s%s", v.Name, g.exprToC(v.Value), suffix)
		} else {
			g.out.writeilf("%s%s", v.Name, suffix)
		}
	}
	g.out.unindent()
	g.out.writelf("} %s;", decl.Name)
	g.out.blank()
}

// ---- Statements ----

func (g *CodeGen) emitBlockContents(block *Block) {
	if block == nil {
		return
	}
	for _, stmt := range block.Statements {
		g.emitStmt(stmt)
	}
}

func (g *CodeGen) emitStmt(stmt Stmt) {
	line, _ := stmt.Pos()
	g.emitLineDirective(line)

	switch s := stmt.(type) {
	case *VarDeclStmt:
		g.emitVarDeclStmt(s)

	case *ReturnStmt:
		if s.Value == nil {
			g.out.writeil("return;")
		} else if fstr, ok := s.Value.(*FStringLiteral); ok {
			tmp := g.emitFStringAsValue(fstr)
			g.out.writeilf("return %s;", tmp)
		} else {
			g.out.writeilf("return %s;", g.exprToC(s.Value))
		}

	case *IfStmt:
		g.emitIf(s)

	case *WhileStmt:
		g.out.writeilf("while (%s) {", g.exprToC(s.Cond))
		g.out.indent()
		g.emitBlockContents(s.Body)
		g.out.unindent()
		g.out.writeil("}")

	case *DoWhileStmt:
		g.out.writeil("do {")
		g.out.indent()
		g.emitBlockContents(s.Body)
		g.out.unindent()
		g.out.writeilf("} while (%s);", g.exprToC(s.Cond))

	case *CForStmt:
		g.emitCFor(s)

	case *ForInStmt:
		g.emitForIn(s)

	case *ParallelForStmt:
		g.emitParallelFor(s)

	case *SwitchStmt:
		g.emitSwitch(s)

	case *BreakStmt:
		g.out.writeil("break;")

	case *ContinueStmt:
		g.out.writeil("continue;")

	case *ExprStmt:
		if assign, ok := s.Expr.(*AssignExpr); ok {
			if fstr, ok := assign.Value.(*FStringLiteral); ok {
				target := g.exprToC(assign.Target)
				tmp := g.emitFStringAsValue(fstr)
				g.out.writeilf("%s = %s;", target, tmp)
				return
			}
		}
		g.out.writeilf("%s;", g.exprToC(s.Expr))

	case *DeleteStmt:
		if t := g.nodeTypes[s.Expr]; t != nil && g.isClassName(t.Base) {
			g.out.writeilf("%s_destroy(%s);", t.Base, g.exprToC(s.Expr))
		} else {
			g.out.writeilf("free(%s);", g.exprToC(s.Expr))
		}

	case *TryCatchStmt:
		g.emitTryCatch(s)

	case *ThrowStmt:
		g.out.writeilf("__btrc_throw(%s);", g.exprToC(s.Expr))

	case *Block:
		g.out.writeil("{")
		g.out.indent()
		g.emitBlockContents(s)
		g.out.unindent()
		g.out.writeil("}")
	}
}

// emitTryCatch unwinds through the setjmp stack: a normal exit of the
// try body discards the level's registered cleanups; a throw ran them
// already before the longjmp.
func (g *CodeGen) emitTryCatch(stmt *TryCatchStmt) {
	g.out.writeil("__btrc_try_push();")
	g.out.writeil("if (setjmp(__btrc_try_stack[__btrc_try_top]) == 0) {")
	g.out.indent()
	g.emitBlockContents(stmt.TryBlock)
	g.out.writeil("__btrc_discard_cleanups(__btrc_try_top);")
	g.out.writeil("__btrc_try_top--;")
	g.out.unindent()
	g.out.writeil("} else {")
	g.out.indent()
	g.out.writeilf("const char* %s = __btrc_error_msg;", stmt.CatchVar)
	g.emitBlockContents(stmt.CatchBlock)
	g.out.unindent()
	g.out.writeil("}")
}

func (g *CodeGen) emitVarDecl(stmt *VarDeclStmt) {
	g.emitVarDeclStmt(stmt)
	g.out.blank()
}

func (g *CodeGen) emitVarDeclStmt(stmt *VarDeclStmt) {
	// Function-pointer variables from lambda inference lower to a C
	// declarator: ret (*name)(params).
	if stmt.Type != nil && stmt.Type.Base == fnPtrBase && len(stmt.Type.GenericArgs) > 0 {
		retType := g.typeToC(stmt.Type.GenericArgs[0])
		paramTypes := make([]string, 0, len(stmt.Type.GenericArgs)-1)
		for _, arg := range stmt.Type.GenericArgs[1:] {
			paramTypes = append(paramTypes, g.typeToC(arg))
		}
		paramsStr := "void"
		if len(paramTypes) > 0 {
			paramsStr = strings.Join(paramTypes, ", ")
		}
		init := ""
		if stmt.Initializer != nil {
			init = " = " + g.exprToC(stmt.Initializer)
		}
		g.out.writeilf("%s (*%s)(%s)%s;", retType, stmt.Name, paramsStr, init)
		return
	}

	cType := g.typeToC(stmt.Type)
	arraySuffix := ""
	if stmt.Type != nil && stmt.Type.ArraySize != nil {
		arraySuffix = "[" + g.exprToC(stmt.Type.ArraySize) + "]"
	} else if stmt.Type != nil && stmt.Type.IsArray && len(stmt.Type.GenericArgs) == 0 {
		arraySuffix = "[]"
	}

	if stmt.Initializer == nil {
		g.out.writeilf("%s %s%s;", cType, stmt.Name, arraySuffix)
		return
	}

	switch init := stmt.Initializer.(type) {
	case *ListLiteral:
		if stmt.Type != nil && stmt.Type.Base == "List" {
			g.out.writeilf("%s %s = %s_new();", cType, stmt.Name, cType)
			for _, el := range init.Elements {
				g.out.writeilf("%s_push(&%s, %s);", cType, stmt.Name, g.exprToC(el))
			}
			return
		}
	case *MapLiteral:
		if stmt.Type != nil && stmt.Type.Base == "Map" {
			g.out.writeilf("%s %s = %s_new();", cType, stmt.Name, cType)
			for _, entry := range init.Entries {
				g.out.writeilf("%s_put(&%s, %s, %s);", cType, stmt.Name,
					g.exprToC(entry.Key), g.exprToC(entry.Value))
			}
			return
		}
	case *BraceInitializer:
		if len(init.Elements) == 0 && stmt.Type != nil && stmt.Type.isCollection() {
			g.out.writeilf("%s %s = %s_new();", cType, stmt.Name, cType)
			return
		}
	case *FStringLiteral:
		tmp := g.emitFStringAsValue(init)
		g.out.writeilf("%s %s%s = %s;", cType, stmt.Name, arraySuffix, tmp)
		return
	}
	g.out.writeilf("%s %s%s = %s;", cType, stmt.Name, arraySuffix, g.exprToC(stmt.Initializer))
}

func (g *CodeGen) emitIf(stmt *IfStmt) {
	cond := stripOuterParens(g.exprToC(stmt.Cond))
	g.out.writeilf("if (%s) {", cond)
	g.out.indent()
	g.emitBlockContents(stmt.Then)
	g.out.unindent()
	switch e := stmt.Else.(type) {
	case *IfStmt:
		g.out.writeil("} else")
		g.emitIf(e)
	case *Block:
		g.out.writeil("} else {")
		g.out.indent()
		g.emitBlockContents(e)
		g.out.unindent()
		g.out.writeil("}")
	default:
		g.out.writeil("}")
	}
}

// stripOuterParens removes one redundant matching pair around a full
// expression; '(a) + (b)' stays untouched.
func stripOuterParens(s string) string {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return s
	}
	depth := 0
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && i < len(s)-1 {
			return s
		}
	}
	return s[1 : len(s)-1]
}

func (g *CodeGen) emitCFor(stmt *CForStmt) {
	initStr := ""
	switch init := stmt.Init.(type) {
	case *VarDeclStmt:
		initStr = fmt.Sprintf("%s %s", g.typeToC(init.Type), init.Name)
		if init.Initializer != nil {
			initStr += " = " + g.exprToC(init.Initializer)
		}
	case *ExprStmt:
		initStr = g.exprToC(init.Expr)
	}
	condStr := ""
	if stmt.Cond != nil {
		condStr = g.exprToC(stmt.Cond)
	}
	updateStr := ""
	if stmt.Update != nil {
		updateStr = g.exprToC(stmt.Update)
	}
	g.out.writeilf("for (%s; %s; %s) {", initStr, condStr, updateStr)
	g.out.indent()
	g.emitBlockContents(stmt.Body)
	g.out.unindent()
	g.out.writeil("}")
}

func (g *CodeGen) emitForIn(stmt *ForInStmt) {
	if isRangeCall(stmt.Iterable) {
		g.emitRangeFor(stmt)
		return
	}

	iterable := g.exprToC(stmt.Iterable)
	varName := stmt.VarName
	typeInfo := g.nodeTypes[stmt.Iterable]
	acc := "."
	if typeInfo != nil && typeInfo.PointerDepth > 0 {
		acc = "->"
	}
	idx := "__btrc_i_" + varName

	// Map iteration binds key (and optionally value) per occupied
	// bucket.
	if typeInfo != nil && typeInfo.Base == "Map" && len(typeInfo.GenericArgs) == 2 {
		kType := g.typeToC(typeInfo.GenericArgs[0])
		vType := g.typeToC(typeInfo.GenericArgs[1])
		g.out.writeilf("for (int %s = 0; %s < %s%scap; %s++) {", idx, idx, iterable, acc, idx)
		g.out.indent()
		g.out.writeilf("if (!%s%sbuckets[%s].occupied) continue;", iterable, acc, idx)
		g.out.writeilf("%s %s = %s%sbuckets[%s].key;", kType, varName, iterable, acc, idx)
		if stmt.VarName2 != "" {
			g.out.writeilf("%s %s = %s%sbuckets[%s].value;", vType, stmt.VarName2, iterable, acc, idx)
		}
		g.emitBlockContents(stmt.Body)
		g.out.unindent()
		g.out.writeil("}")
		return
	}

	if typeInfo != nil && typeInfo.Base == "Set" && len(typeInfo.GenericArgs) > 0 {
		elemType := g.typeToC(typeInfo.GenericArgs[0])
		g.out.writeilf("for (int %s = 0; %s < %s%scap; %s++) {", idx, idx, iterable, acc, idx)
		g.out.indent()
		g.out.writeilf("if (!%s%sbuckets[%s].occupied) continue;", iterable, acc, idx)
		g.out.writeilf("%s %s = %s%sbuckets[%s].key;", elemType, varName, iterable, acc, idx)
		g.emitBlockContents(stmt.Body)
		g.out.unindent()
		g.out.writeil("}")
		return
	}

	// char** from split(): NULL-terminated string array.
	if typeInfo != nil && typeInfo.Base == "string" && typeInfo.PointerDepth >= 1 {
		g.out.writeilf("for (int %s = 0; %s[%s] != NULL; %s++) {", idx, iterable, idx, idx)
		g.out.indent()
		g.out.writeilf("char* %s = %s[%s];", varName, iterable, idx)
		g.emitBlockContents(stmt.Body)
		g.out.unindent()
		g.out.writeil("}")
		return
	}

	// string: iterate chars.
	if typeInfo != nil && typeInfo.isStringLike() {
		g.out.writeilf("for (int %s = 0; %s[%s] != '\\0'; %s++) {", idx, iterable, idx, idx)
		g.out.indent()
		g.out.writeilf("char %s = %s[%s];", varName, iterable, idx)
		g.emitBlockContents(stmt.Body)
		g.out.unindent()
		g.out.writeil("}")
		return
	}

	// List / Array.
	g.out.writeilf("for (int %s = 0; %s < %s%slen; %s++) {", idx, idx, iterable, acc, idx)
	g.out.indent()
	g.out.writeilf("%s %s = %s%sdata[%s];", g.elementTypeC(stmt.Iterable), varName, iterable, acc, idx)
	g.emitBlockContents(stmt.Body)
	g.out.unindent()
	g.out.writeil("}")
}

func (g *CodeGen) elementTypeC(iterable Expr) string {
	if t := g.nodeTypes[iterable]; t != nil && len(t.GenericArgs) > 0 {
		return g.typeToC(t.GenericArgs[0])
	}
	return "int"
}

func (g *CodeGen) emitRangeFor(stmt *ForInStmt) {
	call := stmt.Iterable.(*CallExpr)
	varName := stmt.VarName
	switch len(call.Args) {
	case 1:
		g.out.writeilf("for (int %s = 0; %s < %s; %s++) {",
			varName, varName, g.exprToC(call.Args[0]), varName)
	case 2:
		g.out.writeilf("for (int %s = %s; %s < %s; %s++) {",
			varName, g.exprToC(call.Args[0]), varName, g.exprToC(call.Args[1]), varName)
	case 3:
		// A possibly-negative step needs a bidirectional continuation
		// test; the step lands in a temporary first.
		g.stepCounter++
		stepVar := fmt.Sprintf("__btrc_step_%d", g.stepCounter)
		g.out.writeilf("int %s = %s;", stepVar, g.exprToC(call.Args[2]))
		g.out.writeilf("for (int %s = %s; (%s > 0 ? %s < %s : %s > %s); %s += %s) {",
			varName, g.exprToC(call.Args[0]), stepVar, varName, g.exprToC(call.Args[1]),
			varName, g.exprToC(call.Args[1]), varName, stepVar)
	default:
		g.out.writeil("/* invalid range() call */")
		return
	}
	g.out.indent()
	g.emitBlockContents(stmt.Body)
	g.out.unindent()
	g.out.writeil("}")
}

func (g *CodeGen) emitParallelFor(stmt *ParallelForStmt) {
	iterable := g.exprToC(stmt.Iterable)
	varName := stmt.VarName
	idx := "__btrc_i_" + varName
	typeInfo := g.nodeTypes[stmt.Iterable]
	acc := "."
	if typeInfo != nil && typeInfo.PointerDepth > 0 {
		acc = "->"
	}
	g.out.writeil("#pragma omp parallel for")
	g.out.writeilf("for (int %s = 0; %s < %s%slen; %s++) {", idx, idx, iterable, acc, idx)
	g.out.indent()
	g.out.writeilf("%s %s = %s%sdata[%s];", g.elementTypeC(stmt.Iterable), varName, iterable, acc, idx)
	g.emitBlockContents(stmt.Body)
	g.out.unindent()
	g.out.writeil("}")
}

func (g *CodeGen) emitSwitch(stmt *SwitchStmt) {
	g.out.writeilf("switch (%s) {", g.exprToC(stmt.Value))
	g.out.indent()
	for _, cs := range stmt.Cases {
		if cs.Value != nil {
			g.out.writeilf("case %s:", g.exprToC(cs.Value))
		} else {
			g.out.writeil("default:")
		}
		g.out.indent()
		for _, s := range cs.Body {
			g.emitStmt(s)
		}
		// Cases that don't end in break/return/throw get an automatic
		// break; empty bodies are intentional fallthrough.
		if !caseEndsWithExit(cs.Body) {
			g.out.writeil("break;")
		}
		g.out.unindent()
	}
	g.out.unindent()
	g.out.writeil("}")
}

func caseEndsWithExit(body []Stmt) bool {
	if len(body) == 0 {
		return true
	}
	switch body[len(body)-1].(type) {
	case *BreakStmt, *ReturnStmt, *ThrowStmt:
		return true
	}
	return false
}
