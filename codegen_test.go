package btrc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, source string) string {
	t.Helper()
	output, err := Compile(source, nil)
	require.NoError(t, err)
	return output
}

func TestGenerateHeader(t *testing.T) {
	output := generate(t, "int main() { return 0; }")
	assert.True(t, strings.HasPrefix(output, "/* Generated by btrc */"))
	assert.Contains(t, output, "#include <stdio.h>")
	assert.Contains(t, output, "#include <stdlib.h>")
	assert.Contains(t, output, "#include <stdbool.h>")
	assert.Contains(t, output, "#include <string.h>")
}

func TestGenerateHelloWorld(t *testing.T) {
	output := generate(t, `int main() { print("hello"); return 0; }`)
	assert.Contains(t, output, `printf("hello\n")`)
}

func TestGenerateDivmodHelpersAlwaysOn(t *testing.T) {
	output := generate(t, "int main() { return 0; }")
	assert.Equal(t, 1, strings.Count(output, "static inline int __btrc_div_int"))
	assert.Equal(t, 1, strings.Count(output, "static inline double __btrc_div_double"))
	assert.Equal(t, 1, strings.Count(output, "static inline int __btrc_mod_int"))
}

func TestGenerateDivisionThroughHelper(t *testing.T) {
	output := generate(t, "int main() { int a = 7; int b = 2; int c = a / b; int d = a % b; return 0; }")
	assert.Contains(t, output, "__btrc_div_int(a, b)")
	assert.Contains(t, output, "__btrc_mod_int(a, b)")
}

func TestGenerateListInference(t *testing.T) {
	output := generate(t, `
        int main() {
            var nums = [10, 20, 30];
            int s = 0;
            for x in nums { s += x; }
            print(s);
            return 0;
        }
    `)
	assert.Contains(t, output, "btrc_List_int nums = btrc_List_int_new();")
	assert.Contains(t, output, "btrc_List_int_push(&nums, 10);")
	assert.Contains(t, output, "for (int __btrc_i_x = 0; __btrc_i_x < nums.len; __btrc_i_x++)")
	assert.Contains(t, output, "int x = nums.data[__btrc_i_x];")
	assert.Contains(t, output, `printf("%d\n", s)`)
}

func TestGenerateListStructBeforeFunctions(t *testing.T) {
	output := generate(t, "int main() { var xs = [1]; return 0; }")
	structPos := strings.Index(output, "} btrc_List_int;")
	funcPos := strings.Index(output, "btrc_List_int_new(void)")
	require.GreaterOrEqual(t, structPos, 0)
	require.GreaterOrEqual(t, funcPos, 0)
	assert.Less(t, structPos, funcPos)
}

func TestGenerateInheritanceOverride(t *testing.T) {
	output := generate(t, `
        class A { public int f() { return 1; } }
        class B extends A { public int f() { return 2; } }
        int main() { B* b = new B(); print(b.f()); return 0; }
    `)
	assert.Contains(t, output, "typedef struct A A;")
	assert.Contains(t, output, "typedef struct B B;")
	assert.Contains(t, output, "int B_f(B* self)")
	assert.Contains(t, output, "B_f(b)")
	assert.Contains(t, output, "B* b = B_new();")
	// The child's override body is the one emitted against B.
	bodyPos := strings.Index(output, "int B_f(B* self) {")
	require.GreaterOrEqual(t, bodyPos, 0)
	assert.Contains(t, output[bodyPos:bodyPos+80], "return 2;")
}

func TestGenerateInheritedMethodReEmitted(t *testing.T) {
	output := generate(t, `
        class A { public int f() { return 1; } }
        class B extends A { }
        int main() { B* b = new B(); print(b.f()); return 0; }
    `)
	// Dispatch stays monomorphic: the inherited method is re-emitted
	// against the child class.
	assert.Contains(t, output, "int B_f(B* self)")
	assert.Contains(t, output, "B_f(b)")
}

func TestGenerateInheritedFieldsFirst(t *testing.T) {
	output := generate(t, `
        class A { public int base; }
        class B extends A { public int extra; }
        int main() { return 0; }
    `)
	structPos := strings.Index(output, "struct B {")
	require.GreaterOrEqual(t, structPos, 0)
	body := output[structPos : structPos+120]
	assert.Less(t, strings.Index(body, "int base;"), strings.Index(body, "int extra;"))
}

func TestGenerateEmptyStructPlaceholder(t *testing.T) {
	output := generate(t, "class Empty { public void noop() { } } int main() { return 0; }")
	structPos := strings.Index(output, "struct Empty {")
	require.GreaterOrEqual(t, structPos, 0)
	assert.Contains(t, output[structPos:structPos+60], "char _dummy;")
}

func TestGenerateTryCatch(t *testing.T) {
	output := generate(t, `
        void risky() { throw "boom"; }
        int main() {
            try { risky(); } catch (string e) { print(e); }
            return 0;
        }
    `)
	assert.Contains(t, output, "#include <setjmp.h>")
	assert.Contains(t, output, "__btrc_throw(\"boom\");")
	assert.Contains(t, output, "__btrc_try_push();")
	assert.Contains(t, output, "if (setjmp(__btrc_try_stack[__btrc_try_top]) == 0) {")
	assert.Contains(t, output, "const char* e = __btrc_error_msg;")
	assert.Contains(t, output, "__btrc_discard_cleanups(__btrc_try_top);")
	// Cleanup runtime rides along with the throw helper.
	assert.Equal(t, 1, strings.Count(output, "static inline void __btrc_run_cleanups"))
}

func TestGenerateMapStringKeys(t *testing.T) {
	output := generate(t, `
        int main() {
            Map<string, int> m = {};
            m.put("one", 1);
            m.put("two", 2);
            print(m.get("one"));
            for k, v in m { print(k, v); }
            return 0;
        }
    `)
	assert.Contains(t, output, "btrc_Map_string_int m = btrc_Map_string_int_new();")
	assert.Contains(t, output, `btrc_Map_string_int_put(&m, "one", 1)`)
	assert.Contains(t, output, `btrc_Map_string_int_get(&m, "one")`)
	assert.Contains(t, output, "__btrc_hash_str")
	assert.Contains(t, output, "char* k = m.buckets[__btrc_i_k].key;")
	assert.Contains(t, output, "int v = m.buckets[__btrc_i_k].value;")
	// keys()/values() support Lists exist because the analyzer closed
	// the instance set.
	assert.Contains(t, output, "btrc_List_string btrc_Map_string_int_keys")
	assert.Contains(t, output, "btrc_List_int btrc_Map_string_int_values")
}

func TestGenerateHelperEmittedOnce(t *testing.T) {
	output := generate(t, `
        int main() {
            Map<string, int> m = {};
            Set<string> s = {};
            m.put("a", 1);
            s.add("b");
            return 0;
        }
    `)
	assert.Equal(t, 1, strings.Count(output, "static inline unsigned int __btrc_hash_str"))
	assert.Equal(t, 1, strings.Count(output, "btrc_List_string btrc_Set_string_toList"))
}

func TestGenerateFunctionPrototypes(t *testing.T) {
	output := generate(t, `
        int even(int n) { if (n == 0) { return 1; } else { return odd(n - 1); } }
        int odd(int n) { if (n == 0) { return 0; } else { return even(n - 1); } }
        int main() { return even(4); }
    `)
	protoPos := strings.Index(output, "int odd(int n);")
	bodyPos := strings.Index(output, "int odd(int n) {")
	require.GreaterOrEqual(t, protoPos, 0)
	require.GreaterOrEqual(t, bodyPos, 0)
	assert.Less(t, protoPos, bodyPos)
	// main never gets a prototype.
	assert.NotContains(t, output, "int main(void);")
}

func TestGenerateLambdaLifting(t *testing.T) {
	output := generate(t, `
        int main() {
            var tripler = (int x) => x * 3;
            return tripler(2);
        }
    `)
	assert.Contains(t, output, "static int __btrc_lambda_1(int x) {")
	assert.Contains(t, output, "int (*tripler)(int) = __btrc_lambda_1;")
	lambdaPos := strings.Index(output, "static int __btrc_lambda_1")
	mainPos := strings.Index(output, "int main(")
	assert.Less(t, lambdaPos, mainPos)
}

func TestGenerateMultipleLambdas(t *testing.T) {
	output := generate(t, `
        int main() {
            var a = (int x) => x + 1;
            var b = (int x) => x * 2;
            return a(1) + b(2);
        }
    `)
	assert.Equal(t, 2, strings.Count(output, "static int __btrc_lambda_"))
}

func TestGenerateRangeLoops(t *testing.T) {
	output := generate(t, `
        int main() {
            for i in range(10) { print(i); }
            for j in range(2, 5) { print(j); }
            for k in range(10, 0, -2) { print(k); }
            return 0;
        }
    `)
	assert.Contains(t, output, "for (int i = 0; i < 10; i++)")
	assert.Contains(t, output, "for (int j = 2; j < 5; j++)")
	assert.Contains(t, output, "int __btrc_step_1 = (-2);")
	assert.Contains(t, output, "(__btrc_step_1 > 0 ? k < 0 : k > 0)")
}

func TestGenerateParallelFor(t *testing.T) {
	output := generate(t, `
        int main() {
            var xs = [1, 2, 3];
            parallel for x in xs { print(x); }
            return 0;
        }
    `)
	assert.Contains(t, output, "#pragma omp parallel for")
}

func TestGenerateStringOperations(t *testing.T) {
	output := generate(t, `
        int main() {
            string a = "foo";
            string b = "bar";
            string c = a + b;
            if (a == b) { print("same"); }
            print(a.toUpper());
            return 0;
        }
    `)
	assert.Contains(t, output, "__btrc_strcat(a, b)")
	assert.Contains(t, output, "strcmp(a, b) == 0")
	assert.Contains(t, output, "__btrc_toUpper(a)")
	assert.Contains(t, output, "#include <ctype.h>")
}

func TestGenerateFStringInPrint(t *testing.T) {
	output := generate(t, `
        int main() {
            int x = 7;
            print(f"x = {x}");
            return 0;
        }
    `)
	assert.Contains(t, output, `printf("x = %d\n", x)`)
}

func TestGenerateFStringAsValue(t *testing.T) {
	output := generate(t, `
        int main() {
            int x = 7;
            string s = f"v={x}";
            return 0;
        }
    `)
	assert.Contains(t, output, "int __btrc_fstr_1_len = snprintf(NULL, 0, \"v=%d\", x);")
	assert.Contains(t, output, "char* __btrc_fstr_1 = (char*)malloc(__btrc_fstr_1_len + 1);")
	assert.Contains(t, output, "char* s = __btrc_fstr_1;")
}

func TestGenerateNullCoalesce(t *testing.T) {
	output := generate(t, `
        int main() {
            string a = null;
            var r = a ?? "fallback";
            return 0;
        }
    `)
	assert.Contains(t, output, "({ char* __btrc_tmp_1 = a; __btrc_tmp_1 != NULL ? __btrc_tmp_1 : \"fallback\"; })")
}

func TestGenerateOptionalChaining(t *testing.T) {
	output := generate(t, `
        class Node { public int value; }
        int main() {
            Node* n = null;
            int v = n?.value;
            return 0;
        }
    `)
	assert.Contains(t, output, "(n != NULL ? n->value : 0)")
}

func TestGenerateOperatorOverloading(t *testing.T) {
	output := generate(t, `
        class Vec {
            public int x;
            public Vec(int x) { self.x = x; }
            public Vec __add__(Vec other) { return new Vec(self.x + other.x); }
        }
        int main() {
            Vec* a = new Vec(1);
            Vec* b = new Vec(2);
            Vec* c = a + b;
            return 0;
        }
    `)
	assert.Contains(t, output, "Vec___add__(a, b)")
}

func TestGenerateProperties(t *testing.T) {
	output := generate(t, `
        class Counter {
            public int count { get; set; }
        }
        int main() {
            Counter* c = new Counter();
            c.count = 5;
            print(c.count);
            return 0;
        }
    `)
	assert.Contains(t, output, "int _count;")
	assert.Contains(t, output, "int Counter_get_count(Counter* self)")
	assert.Contains(t, output, "void Counter_set_count(Counter* self, int value)")
	assert.Contains(t, output, "Counter_set_count(c, 5)")
	assert.Contains(t, output, "Counter_get_count(c)")
}

func TestGenerateConstructorAndDestructor(t *testing.T) {
	output := generate(t, `
        class Point {
            public int x;
            public Point(int x) { self.x = x; }
        }
        int main() {
            Point* p = new Point(3);
            delete p;
            return 0;
        }
    `)
	assert.Contains(t, output, "Point* Point_new(int x)")
	assert.Contains(t, output, "Point* self = (Point*)malloc(sizeof(Point));")
	assert.Contains(t, output, "void Point_destroy(Point* self);")
	assert.Contains(t, output, "Point_destroy(p);")
}

func TestGenerateDestructorChain(t *testing.T) {
	output := generate(t, `
        class Inner { public int v; }
        class Outer {
            public Inner child;
            public List<int> items;
        }
        int main() { return 0; }
    `)
	destroyPos := strings.Index(output, "void Outer_destroy(Outer* self) {")
	require.GreaterOrEqual(t, destroyPos, 0)
	end := destroyPos + 220
	if end > len(output) {
		end = len(output)
	}
	body := output[destroyPos:end]
	assert.Contains(t, body, "Inner_destroy(self->child);")
	assert.Contains(t, body, "btrc_List_int_free(&self->items);")
	assert.Contains(t, body, "free(self);")
}

func TestGenerateDefaultConstructorFromFieldDefaults(t *testing.T) {
	output := generate(t, `
        class Config { public int retries = 3; }
        int main() { Config* c = new Config(); return 0; }
    `)
	ctorPos := strings.Index(output, "Config* Config_new(void) {")
	require.GreaterOrEqual(t, ctorPos, 0)
	assert.Contains(t, output[ctorPos:ctorPos+200], "self->retries = 3;")
}

func TestGenerateStaticMethod(t *testing.T) {
	output := generate(t, `
        class Util {
            class int twice(int n) { return n * 2; }
        }
        int main() { return Util.twice(21); }
    `)
	assert.Contains(t, output, "int Util_twice(int n)")
	assert.Contains(t, output, "Util_twice(21)")
	// Static methods take no self parameter.
	assert.NotContains(t, output, "Util_twice(Util* self")
}

func TestGenerateTupleSupport(t *testing.T) {
	output := generate(t, `
        int main() {
            (int, string) pair = (1, "one");
            print(pair.0);
            return 0;
        }
    `)
	assert.Contains(t, output, "} btrc_Tuple_int_string;")
	assert.Contains(t, output, "(btrc_Tuple_int_string){1, \"one\"}")
	assert.Contains(t, output, "pair._0")
}

func TestGenerateOctalLiteral(t *testing.T) {
	output := generate(t, "int main() { int mode = 0o755; return 0; }")
	assert.Contains(t, output, "int mode = 0755;")
}

func TestGenerateMathAndStringsStatics(t *testing.T) {
	output := generate(t, `
        int main() {
            int g = Math.gcd(12, 18);
            float r = Math.sqrt(2.0f);
            string s = Strings.fromInt(42);
            return 0;
        }
    `)
	assert.Contains(t, output, "__btrc_math_gcd(12, 18)")
	assert.Contains(t, output, "sqrtf(2.0f)")
	assert.Contains(t, output, "__btrc_fromInt(42)")
	assert.Contains(t, output, "#include <math.h>")
}

func TestGenerateGpuFunction(t *testing.T) {
	output := generate(t, `
        @gpu void scale(float* xs) { }
        int main() { return 0; }
    `)
	assert.Contains(t, output, "static const char* __btrc_gpu_shader_scale =")
	assert.Contains(t, output, "#version 430")
	assert.Contains(t, output, "TODO: OpenGL compute dispatch")
}

func TestGenerateSwitchAutoBreak(t *testing.T) {
	output := generate(t, `
        int main() {
            int x = 1;
            switch (x) {
                case 1: print("one");
                case 2: print("two"); break;
                default: print("other");
            }
            return 0;
        }
    `)
	// Cases not ending in break/return/throw get one inserted.
	assert.GreaterOrEqual(t, strings.Count(output, "break;"), 3)
}

func TestGenerateLineDirectives(t *testing.T) {
	cfg := &Config{Debug: true, SourceFile: "test.btrc"}
	output, err := Compile("int main() { return 0; }", cfg)
	require.NoError(t, err)
	assert.Contains(t, output, `#line 1 "test.btrc"`)
}

func TestGenerateUserIncludesRespected(t *testing.T) {
	output := generate(t, "#include <assert.h>\nint main() { assert(1); return 0; }")
	assert.Equal(t, 1, strings.Count(output, "#include <assert.h>"))
}

func TestCompileReportsSemanticErrors(t *testing.T) {
	_, err := Compile("int f() { if (true) { return 1; } }", nil)
	require.Error(t, err)
	var semErr *SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Contains(t, semErr.Error(), "has non-void return type but no return statement")
}

func TestCompileReportsLexAndParseErrors(t *testing.T) {
	_, err := Compile(`int main() { string s = "unterminated`, nil)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)

	_, err = Compile("int main() { int x = ; }", nil)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestGenerateDeterministicOutput(t *testing.T) {
	source := `
        class A { public int x; }
        int main() {
            Map<string, int> m = {};
            var xs = [1, 2];
            return 0;
        }
    `
	first := generate(t, source)
	second := generate(t, source)
	assert.Equal(t, first, second)
}
