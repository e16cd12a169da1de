package btrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, source string) *Program {
	t.Helper()
	prog, err := ParseSource(source)
	require.NoError(t, err)
	return prog
}

func parseStmt(t *testing.T, source string) Stmt {
	t.Helper()
	prog := parse(t, "void f() { "+source+" }")
	fn := prog.Declarations[0].(*FunctionDecl)
	require.NotEmpty(t, fn.Body.Statements)
	return fn.Body.Statements[0]
}

func parseExprString(t *testing.T, source string) Expr {
	t.Helper()
	stmt := parseStmt(t, source+";")
	return stmt.(*ExprStmt).Expr
}

func TestParseFunctionDecl(t *testing.T) {
	prog := parse(t, "int add(int a, int b) { return a + b; }")
	require.Len(t, prog.Declarations, 1)
	fn := prog.Declarations[0].(*FunctionDecl)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, "int", fn.ReturnType.Base)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
}

func TestParseForwardDeclaration(t *testing.T) {
	prog := parse(t, "int helper(int x);\nint helper(int x) { return x; }")
	require.Len(t, prog.Declarations, 2)
	assert.Nil(t, prog.Declarations[0].(*FunctionDecl).Body)
	assert.NotNil(t, prog.Declarations[1].(*FunctionDecl).Body)
}

func TestParseClassDecl(t *testing.T) {
	prog := parse(t, `
        class Point {
            public int x;
            private int y = 2;
            public Point(int x) { self.x = x; }
            public int getX() { return self.x; }
            class int origin() { return 0; }
        }
    `)
	cls := prog.Declarations[0].(*ClassDecl)
	assert.Equal(t, "Point", cls.Name)
	require.Len(t, cls.Members, 5)

	x := cls.Members[0].(*FieldDecl)
	assert.Equal(t, "public", x.Access)
	y := cls.Members[1].(*FieldDecl)
	assert.Equal(t, "private", y.Access)
	require.NotNil(t, y.Initializer)

	ctor := cls.Members[2].(*MethodDecl)
	assert.Equal(t, "Point", ctor.Name) // constructor name equals class

	static := cls.Members[4].(*MethodDecl)
	assert.Equal(t, "class", static.Access)
}

func TestParseInheritance(t *testing.T) {
	prog := parse(t, "class A { public int f() { return 1; } } class B extends A { }")
	b := prog.Declarations[1].(*ClassDecl)
	assert.Equal(t, "A", b.Parent)
}

func TestParseGenericClass(t *testing.T) {
	prog := parse(t, "class Box<T> { public T value; }")
	cls := prog.Declarations[0].(*ClassDecl)
	assert.Equal(t, []string{"T"}, cls.GenericParams)
}

func TestParseProperty(t *testing.T) {
	prog := parse(t, `
        class Counter {
            public int count { get; set; }
            public int doubled { get { return self.count * 2; } }
        }
    `)
	cls := prog.Declarations[0].(*ClassDecl)
	auto := cls.Members[0].(*PropertyDecl)
	assert.True(t, auto.HasGetter)
	assert.True(t, auto.HasSetter)
	assert.Nil(t, auto.GetterBody)

	custom := cls.Members[1].(*PropertyDecl)
	assert.True(t, custom.HasGetter)
	assert.False(t, custom.HasSetter)
	require.NotNil(t, custom.GetterBody)
}

func TestParseNestedGenerics(t *testing.T) {
	stmt := parseStmt(t, "List<List<int>> grid;")
	decl := stmt.(*VarDeclStmt)
	require.Len(t, decl.Type.GenericArgs, 1)
	inner := decl.Type.GenericArgs[0]
	assert.Equal(t, "List", inner.Base)
	assert.Equal(t, "int", inner.GenericArgs[0].Base)
}

func TestParseGtGtSplitWithAssignment(t *testing.T) {
	// '>>' closing two levels followed by more source keeps parsing.
	prog := parse(t, "void f() { Map<string, List<int>> m = {}; int x = 1 >> 2; }")
	fn := prog.Declarations[0].(*FunctionDecl)
	decl := fn.Body.Statements[0].(*VarDeclStmt)
	assert.Equal(t, "Map", decl.Type.Base)
	assert.Equal(t, "List", decl.Type.GenericArgs[1].Base)

	shift := fn.Body.Statements[1].(*VarDeclStmt).Initializer.(*BinaryExpr)
	assert.Equal(t, ">>", shift.Op)
}

func TestParseLessThanIsComparison(t *testing.T) {
	expr := parseExprString(t, "a < b")
	bin := expr.(*BinaryExpr)
	assert.Equal(t, "<", bin.Op)
}

func TestParseTupleType(t *testing.T) {
	stmt := parseStmt(t, "(int, string) pair;")
	decl := stmt.(*VarDeclStmt)
	assert.Equal(t, "Tuple", decl.Type.Base)
	require.Len(t, decl.Type.GenericArgs, 2)
	assert.Equal(t, "int", decl.Type.GenericArgs[0].Base)
	assert.Equal(t, "string", decl.Type.GenericArgs[1].Base)
}

func TestParseCastVsParen(t *testing.T) {
	cast := parseExprString(t, "(int)x")
	require.IsType(t, &CastExpr{}, cast)

	paren := parseExprString(t, "(a + b) * c")
	bin := paren.(*BinaryExpr)
	assert.Equal(t, "*", bin.Op)
}

func TestParseTupleLiteralAndAccess(t *testing.T) {
	lit := parseExprString(t, "(1, 2.0)")
	tuple := lit.(*TupleLiteral)
	require.Len(t, tuple.Elements, 2)

	access := parseExprString(t, "pair.0")
	field := access.(*FieldAccessExpr)
	assert.Equal(t, "_0", field.Field)
}

func TestParsePrecedence(t *testing.T) {
	for _, test := range []struct {
		Name   string
		Source string
		TopOp  string
	}{
		{"multiplicative binds tighter than additive", "a + b * c", "+"},
		{"additive binds tighter than shift", "a << b + c", "<<"},
		{"shift binds tighter than relational", "a < b << c", "<"},
		{"relational binds tighter than equality", "a == b < c", "=="},
		{"equality binds tighter than bitwise and", "a & b == c", "&"},
		{"bitwise or binds tighter than logical and", "a && b | c", "&&"},
		{"logical and binds tighter than logical or", "a || b && c", "||"},
		{"logical or binds tighter than null coalesce", "a ?? b || c", "??"},
	} {
		t.Run(test.Name, func(t *testing.T) {
			expr := parseExprString(t, test.Source)
			bin := expr.(*BinaryExpr)
			assert.Equal(t, test.TopOp, bin.Op)
		})
	}
}

func TestParseAssignmentRightAssociative(t *testing.T) {
	expr := parseExprString(t, "a = b = c")
	outer := expr.(*AssignExpr)
	_, ok := outer.Value.(*AssignExpr)
	assert.True(t, ok)
}

func TestParseTernary(t *testing.T) {
	expr := parseExprString(t, "a ? b : c")
	require.IsType(t, &TernaryExpr{}, expr)
}

func TestParseVarDeclVsExprStmt(t *testing.T) {
	decl := parseStmt(t, "Point* p = null;")
	require.IsType(t, &VarDeclStmt{}, decl)

	call := parseStmt(t, "doWork(1, 2);")
	require.IsType(t, &ExprStmt{}, call)

	assign := parseStmt(t, "p = q;")
	require.IsType(t, &ExprStmt{}, assign)
}

func TestParseVarInference(t *testing.T) {
	stmt := parseStmt(t, "var x = 42;")
	decl := stmt.(*VarDeclStmt)
	assert.Nil(t, decl.Type)
	require.NotNil(t, decl.Initializer)
}

func TestParseForVariants(t *testing.T) {
	cfor := parseStmt(t, "for (int i = 0; i < 10; i++) { }")
	require.IsType(t, &CForStmt{}, cfor)

	forIn := parseStmt(t, "for x in items { }")
	fi := forIn.(*ForInStmt)
	assert.Equal(t, "x", fi.VarName)
	assert.Empty(t, fi.VarName2)

	forKV := parseStmt(t, "for k, v in table { }")
	kv := forKV.(*ForInStmt)
	assert.Equal(t, "k", kv.VarName)
	assert.Equal(t, "v", kv.VarName2)

	par := parseStmt(t, "parallel for x in items { }")
	require.IsType(t, &ParallelForStmt{}, par)
}

func TestParseSwitch(t *testing.T) {
	stmt := parseStmt(t, "switch (x) { case 1: a(); break; default: b(); }")
	sw := stmt.(*SwitchStmt)
	require.Len(t, sw.Cases, 2)
	assert.NotNil(t, sw.Cases[0].Value)
	assert.Nil(t, sw.Cases[1].Value)
}

func TestParseTryCatchThrow(t *testing.T) {
	stmt := parseStmt(t, `try { risky(); } catch (string e) { log(e); }`)
	tc := stmt.(*TryCatchStmt)
	assert.Equal(t, "e", tc.CatchVar)

	thr := parseStmt(t, `throw "boom";`)
	require.IsType(t, &ThrowStmt{}, thr)
}

func TestParseListAndMapLiterals(t *testing.T) {
	list := parseExprString(t, "[1, 2, 3]")
	require.Len(t, list.(*ListLiteral).Elements, 3)

	m := parseExprString(t, `{"a": 1, "b": 2}`)
	require.Len(t, m.(*MapLiteral).Entries, 2)

	brace := parseExprString(t, "x = {1, 2}")
	assign := brace.(*AssignExpr)
	require.IsType(t, &BraceInitializer{}, assign.Value)
}

func TestParseNewDelete(t *testing.T) {
	n := parseExprString(t, "new Point(1, 2)")
	ne := n.(*NewExpr)
	assert.Equal(t, "Point", ne.Type.Base)
	require.Len(t, ne.Args, 2)

	del := parseStmt(t, "delete p;")
	require.IsType(t, &DeleteStmt{}, del)
}

func TestParseOptionalChaining(t *testing.T) {
	expr := parseExprString(t, "p?.next")
	access := expr.(*FieldAccessExpr)
	assert.True(t, access.Optional)
	assert.Equal(t, "next", access.Field)
}

func TestParseFStringParts(t *testing.T) {
	expr := parseExprString(t, `f"sum is {a + b}!"`)
	fstr := expr.(*FStringLiteral)
	require.Len(t, fstr.Parts, 3)
	assert.Equal(t, "sum is ", fstr.Parts[0].Text)
	require.True(t, fstr.Parts[1].IsExpr())
	bin := fstr.Parts[1].Expr.(*BinaryExpr)
	assert.Equal(t, "+", bin.Op)
	assert.Equal(t, "!", fstr.Parts[2].Text)
}

func TestParseLambdas(t *testing.T) {
	arrow := parseStmt(t, "var f = (int x) => x * 2;")
	lambda := arrow.(*VarDeclStmt).Initializer.(*LambdaExpr)
	require.Len(t, lambda.Params, 1)
	require.Len(t, lambda.Body.Statements, 1)
	require.IsType(t, &ReturnStmt{}, lambda.Body.Statements[0])

	verbose := parseStmt(t, "var g = int function(int x) { return x + 1; };")
	vl := verbose.(*VarDeclStmt).Initializer.(*LambdaExpr)
	require.NotNil(t, vl.ReturnType)
	assert.Equal(t, "int", vl.ReturnType.Base)
}

func TestParseEnumStructTypedef(t *testing.T) {
	prog := parse(t, `
        enum Color { RED, GREEN = 5, BLUE };
        struct Pair { int a; int b; };
        typedef unsigned long size_type;
    `)
	enum := prog.Declarations[0].(*EnumDecl)
	require.Len(t, enum.Values, 3)
	assert.NotNil(t, enum.Values[1].Value)

	strct := prog.Declarations[1].(*StructDecl)
	require.Len(t, strct.Fields, 2)

	td := prog.Declarations[2].(*TypedefDecl)
	assert.Equal(t, "unsigned long", td.Original.Base)
	assert.Equal(t, "size_type", td.Alias)
}

func TestParseErrorsFailFast(t *testing.T) {
	for _, test := range []struct {
		Name   string
		Source string
	}{
		{"missing semicolon", "int f() { int x = 1 }"},
		{"bad class member", "class A { int x; }"},
		{"unexpected top level", "+ 1;"},
	} {
		t.Run(test.Name, func(t *testing.T) {
			_, err := ParseSource(test.Source)
			require.Error(t, err)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Greater(t, parseErr.Line, 0)
		})
	}
}

func TestParseRoundTripStability(t *testing.T) {
	// Parsing the same source twice produces structurally equal
	// programs (the token-stream mutation from '>>' splitting is
	// deterministic).
	source := "void f() { Map<string, List<int>> m = {}; for k, v in m { } }"
	first := parse(t, source)
	second := parse(t, source)
	assert.Equal(t, len(first.Declarations), len(second.Declarations))
}
