package btrc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, source string) *AnalyzedProgram {
	t.Helper()
	prog, err := ParseSource(source)
	require.NoError(t, err)
	return NewAnalyzer().Analyze(prog)
}

func analyzeClean(t *testing.T, source string) *AnalyzedProgram {
	t.Helper()
	analyzed := analyze(t, source)
	require.Empty(t, analyzed.Errors)
	return analyzed
}

func diagnosticsContain(analyzed *AnalyzedProgram, fragment string) bool {
	for _, d := range analyzed.Errors {
		if strings.Contains(d.Msg, fragment) {
			return true
		}
	}
	return false
}

func TestAnalyzeVarInference(t *testing.T) {
	for _, test := range []struct {
		Name     string
		Init     string
		Expected string
	}{
		{"int literal", "42", "int"},
		{"float literal", "3.14", "float"},
		{"string literal", `"hi"`, "string"},
		{"bool literal", "true", "bool"},
		{"list literal", "[1, 2]", "List<int>"},
		{"map literal", `{"a": 1}`, "Map<string, int>"},
	} {
		t.Run(test.Name, func(t *testing.T) {
			analyzed := analyzeClean(t, "void f() { var x = "+test.Init+"; }")
			fn := analyzed.Program.Declarations[0].(*FunctionDecl)
			decl := fn.Body.Statements[0].(*VarDeclStmt)
			require.NotNil(t, decl.Type)
			assert.Equal(t, test.Expected, decl.Type.String())
		})
	}
}

func TestAnalyzeVarWithoutInitializer(t *testing.T) {
	prog, err := ParseSource("void f() { int y = 1; }")
	require.NoError(t, err)
	// Build the failing declaration directly; the parser rejects a
	// 'var' without '='.
	fn := prog.Declarations[0].(*FunctionDecl)
	fn.Body.Statements = append(fn.Body.Statements, &VarDeclStmt{Name: "z"})
	analyzed := NewAnalyzer().Analyze(prog)
	require.NotEmpty(t, analyzed.Errors)
	assert.True(t, diagnosticsContain(analyzed, "requires an initializer"))
	// Placeholder type keeps downstream phases alive.
	assert.Equal(t, "int", fn.Body.Statements[1].(*VarDeclStmt).Type.Base)
}

func TestAnalyzeClassTypeUpgrade(t *testing.T) {
	analyzed := analyzeClean(t, `
        class Node { public int value; }
        void f(Node n) { Node m = n; }
    `)
	fn := analyzed.Program.Declarations[1].(*FunctionDecl)
	assert.Equal(t, 1, fn.Params[0].Type.PointerDepth)
	decl := fn.Body.Statements[0].(*VarDeclStmt)
	assert.Equal(t, 1, decl.Type.PointerDepth)
}

func TestAnalyzeClassTypeUpgradeIdempotent(t *testing.T) {
	analyzed := analyzeClean(t, `
        class Node { public int value; }
        void f() { List<Node> xs = []; }
    `)
	fn := analyzed.Program.Declarations[1].(*FunctionDecl)
	decl := fn.Body.Statements[0].(*VarDeclStmt)
	assert.Equal(t, 1, decl.Type.GenericArgs[0].PointerDepth)

	// Re-running the analyzer-style upgrade must not add more stars.
	a := NewAnalyzer()
	a.classTable["Node"] = newClassInfo("Node")
	upgraded := a.upgradeClassType(decl.Type.Clone())
	assert.Equal(t, 1, upgraded.GenericArgs[0].PointerDepth)
}

func TestAnalyzeGenericInstanceClosure(t *testing.T) {
	analyzed := analyzeClean(t, "void f() { Map<string, int> m = {}; }")

	require.Contains(t, analyzed.GenericInstances, "Map")
	require.Contains(t, analyzed.GenericInstances, "List")

	// Map<K,V> implies List<K> and List<V> for keys()/values().
	var listBases []string
	for _, inst := range analyzed.GenericInstances["List"] {
		listBases = append(listBases, inst.Args[0].Base)
	}
	assert.Contains(t, listBases, "string")
	assert.Contains(t, listBases, "int")
}

func TestAnalyzeSetRegistersList(t *testing.T) {
	analyzed := analyzeClean(t, "void f() { Set<int> s = {}; }")
	require.Contains(t, analyzed.GenericInstances, "List")
	assert.Equal(t, "int", analyzed.GenericInstances["List"][0].Args[0].Base)
}

func TestAnalyzeExhaustiveReturn(t *testing.T) {
	for _, test := range []struct {
		Name   string
		Source string
		Ok     bool
	}{
		{"plain return", "int f() { return 1; }", true},
		{"if without else", "int f() { if (true) { return 1; } }", false},
		{"if with else both return", "int f() { if (true) { return 1; } else { return 2; } }", true},
		{"else-if chain all return", "int f(int x) { if (x > 0) { return 1; } else if (x < 0) { return 2; } else { return 3; } }", true},
		{"while true returns", "int f() { while (true) { return 1; } }", true},
		{"switch with returning case", "int f(int x) { switch (x) { case 1: return 1; } }", true},
		{"throw counts as return", `int f() { throw "no"; }`, true},
		{"void needs nothing", "void f() { }", true},
	} {
		t.Run(test.Name, func(t *testing.T) {
			analyzed := analyze(t, test.Source)
			if test.Ok {
				assert.Empty(t, analyzed.Errors)
			} else {
				require.NotEmpty(t, analyzed.Errors)
				assert.True(t, diagnosticsContain(analyzed,
					"has non-void return type but no return statement"))
			}
		})
	}
}

func TestAnalyzeUnreachableCode(t *testing.T) {
	analyzed := analyze(t, "int f() { return 1; int x = 2; }")
	require.NotEmpty(t, analyzed.Errors)
	assert.True(t, diagnosticsContain(analyzed, "Unreachable code"))
}

func TestAnalyzeBreakContinueOutsideLoop(t *testing.T) {
	analyzed := analyze(t, "void f() { break; }")
	assert.True(t, diagnosticsContain(analyzed, "'break' statement outside"))

	analyzed = analyze(t, "void f() { continue; }")
	assert.True(t, diagnosticsContain(analyzed, "'continue' statement outside"))

	// break is legal in a switch, continue is not.
	analyzed = analyze(t, "void f(int x) { switch (x) { case 1: break; } }")
	assert.Empty(t, analyzed.Errors)
}

func TestAnalyzeSelfValidation(t *testing.T) {
	analyzed := analyze(t, "int f() { return self.x; }")
	assert.True(t, diagnosticsContain(analyzed, "'self' used outside of a class"))

	analyzed = analyze(t, `
        class A {
            public int x;
            class int bad() { return self.x; }
        }
    `)
	assert.True(t, diagnosticsContain(analyzed, "'self' cannot be used in a class (static) method"))
}

func TestAnalyzeAccessControl(t *testing.T) {
	analyzed := analyze(t, `
        class Safe {
            private int secret;
            public int get() { return self.secret; }
        }
        int peek(Safe s) { return s.secret; }
    `)
	require.NotEmpty(t, analyzed.Errors)
	assert.True(t, diagnosticsContain(analyzed, "private field 'secret'"))
}

func TestAnalyzeStaticCall(t *testing.T) {
	analyzed := analyze(t, `
        class Util {
            public int helper() { return 1; }
        }
        int f() { return Util.helper(); }
    `)
	assert.True(t, diagnosticsContain(analyzed, "not a class method"))
}

func TestAnalyzeInheritance(t *testing.T) {
	analyzed := analyzeClean(t, `
        class A { public int x; public int f() { return 1; } }
        class B extends A { public int g() { return 2; } }
    `)
	b := analyzed.ClassTable["B"]
	require.NotNil(t, b)
	assert.Contains(t, b.Fields, "x")
	assert.Contains(t, b.Methods, "f")
	assert.Contains(t, b.Methods, "g")
}

func TestAnalyzeMissingParent(t *testing.T) {
	analyzed := analyze(t, "class B extends Ghost { }")
	assert.True(t, diagnosticsContain(analyzed, "Parent class 'Ghost' not found"))
}

func TestAnalyzeDuplicates(t *testing.T) {
	analyzed := analyze(t, "class A { } class A { }")
	assert.True(t, diagnosticsContain(analyzed, "Duplicate class name"))

	analyzed = analyze(t, "int f() { return 1; } int f() { return 2; }")
	assert.True(t, diagnosticsContain(analyzed, "Duplicate function"))
}

func TestAnalyzeDivisionByLiteralZero(t *testing.T) {
	analyzed := analyze(t, "int f(int x) { return x / 0; }")
	assert.True(t, diagnosticsContain(analyzed, "Division by zero"))
}

func TestAnalyzeGenericArity(t *testing.T) {
	analyzed := analyze(t, "void f() { Map<int> m = {}; }")
	assert.True(t, diagnosticsContain(analyzed, "expects 2 generic argument"))
}

func TestAnalyzeForInElementTypes(t *testing.T) {
	analyzed := analyzeClean(t, `
        void f() {
            var xs = [1, 2, 3];
            for x in xs { }
            for c in "abc" { }
            for i in range(10) { }
        }
    `)
	require.NotNil(t, analyzed)

	bad := analyze(t, "void f() { int n = 3; for x in n { } }")
	assert.True(t, diagnosticsContain(bad, "not iterable"))
}

func TestAnalyzeTwoVarForInRequiresMap(t *testing.T) {
	analyzed := analyze(t, "void f() { var xs = [1]; for a, b in xs { } }")
	assert.True(t, diagnosticsContain(analyzed, "requires a Map type"))
}

func TestAnalyzeCallArity(t *testing.T) {
	analyzed := analyze(t, "int add(int a, int b) { return a + b; } int f() { return add(1); }")
	assert.True(t, diagnosticsContain(analyzed, "at least 2 argument"))

	analyzed = analyze(t, "int one(int a = 1) { return a; } int f() { return one(); }")
	assert.Empty(t, analyzed.Errors)

	analyzed = analyze(t, "int one(int a) { return a; } int f() { return one(1, 2); }")
	assert.True(t, diagnosticsContain(analyzed, "at most 1 argument"))
}

func TestAnalyzeConstructorArity(t *testing.T) {
	analyzed := analyze(t, `
        class P { public int x; public P(int x) { self.x = x; } }
        void f() { P* p = new P(); }
    `)
	assert.True(t, diagnosticsContain(analyzed, "expects at least 1"))
}

func TestAnalyzeEnumSwitchExhaustiveness(t *testing.T) {
	analyzed := analyze(t, `
        enum Color { RED, GREEN, BLUE };
        void f(enum Color c) { }
    `)
	assert.Empty(t, analyzed.Errors)

	analyzed = analyze(t, `
        enum Color { RED, GREEN, BLUE };
        void f(Color c) { switch (c) { case RED: break; } }
    `)
	assert.True(t, diagnosticsContain(analyzed, "missing: GREEN, BLUE"))
}

func TestAnalyzeNodeTypeMap(t *testing.T) {
	analyzed := analyzeClean(t, "int f() { var x = 1 + 2; return x; }")
	// Every typed expression node has exactly one entry; spot-check
	// the initializer.
	fn := analyzed.Program.Declarations[0].(*FunctionDecl)
	decl := fn.Body.Statements[0].(*VarDeclStmt)
	typeInfo, ok := analyzed.NodeTypes[decl.Initializer]
	require.True(t, ok)
	assert.Equal(t, "int", typeInfo.Base)
}

func TestAnalyzeShadowing(t *testing.T) {
	analyzed := analyze(t, "void f(int x) { if (true) { int x = 2; } }")
	assert.True(t, diagnosticsContain(analyzed, "shadows outer variable"))
}

func TestAnalyzeReturnTypeMismatch(t *testing.T) {
	analyzed := analyze(t, `int f() { return "nope"; }`)
	assert.True(t, diagnosticsContain(analyzed, "Return type mismatch"))
}
