package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stdlibSource = `
class Strings {
    class bool isDigit(char c) { return false; }
    class string fromInt(int n) { return ""; }
}

class Vector {
    public float x;
    public float y;
    private int generation;
    public float length { get; }
    public Vector(float x, float y) { self.x = x; self.y = y; }
    public float dot(Vector other) { return self.x * other.x + self.y * other.y; }
}

int clampIndex(int i, int max = 0) { return i < max ? i : max; }

enum Axis { X, Y };
`

func TestCollectBuiltins(t *testing.T) {
	builtins, err := CollectBuiltins(stdlibSource)
	require.NoError(t, err)

	require.Len(t, builtins.Classes, 2)

	strings, ok := builtins.Lookup("Strings")
	require.True(t, ok)
	require.Len(t, strings.Methods, 2)
	assert.True(t, strings.Methods[0].IsStatic)

	vector, ok := builtins.Lookup("Vector")
	require.True(t, ok)
	assert.Equal(t, "", vector.Parent)

	fieldNames := map[string]bool{}
	for _, f := range vector.Fields {
		fieldNames[f.Name] = true
	}
	assert.True(t, fieldNames["x"])
	assert.True(t, fieldNames["length"]) // property rides along

	require.Len(t, builtins.Functions, 1)
	fn := builtins.Functions[0]
	assert.Equal(t, "clampIndex", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.True(t, fn.Params[1].HasDefault)

	assert.Equal(t, []string{"X", "Y"}, builtins.Enums["Axis"])
}

func TestCollectBuiltinsTypesAreSourceSpelled(t *testing.T) {
	builtins, err := CollectBuiltins(stdlibSource)
	require.NoError(t, err)

	vector, ok := builtins.Lookup("Vector")
	require.True(t, ok)
	var dot MethodInfo
	for _, m := range vector.Methods {
		if m.Name == "dot" {
			dot = m
		}
	}
	assert.Equal(t, "float", dot.ReturnType)
	// Class-typed parameters surface in upgraded pointer form.
	assert.Equal(t, "Vector*", dot.Params[0].Type)
}

func TestCompletionsForSkipsPrivate(t *testing.T) {
	builtins, err := CollectBuiltins(stdlibSource)
	require.NoError(t, err)

	names := builtins.CompletionsFor("Vector")
	assert.Contains(t, names, "x")
	assert.Contains(t, names, "dot")
	assert.NotContains(t, names, "generation")
	assert.NotContains(t, names, "Vector") // constructor excluded
}

func TestCollectBuiltinsParseError(t *testing.T) {
	_, err := CollectBuiltins("class {")
	require.Error(t, err)
}
