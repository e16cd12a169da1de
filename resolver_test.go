package btrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIncludesInlines(t *testing.T) {
	loader := NewInMemoryIncludeLoader()
	loader.Add("lib/util.btrc", []byte("int util() { return 1; }\n"))

	resolved, err := ResolveIncludes(
		"#include \"lib/util.btrc\"\nint main() { return util(); }\n",
		"main.btrc", loader)
	require.NoError(t, err)
	assert.Contains(t, resolved, "int util()")
	assert.Contains(t, resolved, "int main()")
	assert.NotContains(t, resolved, `#include "lib/util.btrc"`)
}

func TestResolveIncludesAngleBracketsPassThrough(t *testing.T) {
	loader := NewInMemoryIncludeLoader()
	resolved, err := ResolveIncludes("#include <stdio.h>\nint main() { return 0; }\n", "main.btrc", loader)
	require.NoError(t, err)
	assert.Contains(t, resolved, "#include <stdio.h>")
}

func TestResolveIncludesCycleProtection(t *testing.T) {
	loader := NewInMemoryIncludeLoader()
	loader.Add("a.btrc", []byte("#include \"b.btrc\"\nint a() { return 1; }\n"))
	loader.Add("b.btrc", []byte("#include \"a.btrc\"\nint b() { return 2; }\n"))

	resolved, err := ResolveIncludes("#include \"a.btrc\"\n", "main.btrc", loader)
	require.NoError(t, err)
	assert.Contains(t, resolved, "int a()")
	assert.Contains(t, resolved, "int b()")
}

func TestResolveIncludesMissing(t *testing.T) {
	loader := NewInMemoryIncludeLoader()
	_, err := ResolveIncludes("#include \"ghost.btrc\"\n", "main.btrc", loader)
	require.Error(t, err)
}

func TestDiskCacheRoundTrip(t *testing.T) {
	cache := NewDiskCache(t.TempDir())

	_, ok := cache.Get("int main() { return 0; }")
	assert.False(t, ok)

	require.NoError(t, cache.Put("int main() { return 0; }", "/* emitted */"))
	got, ok := cache.Get("int main() { return 0; }")
	require.True(t, ok)
	assert.Equal(t, "/* emitted */", got)

	// Different source, different key.
	_, ok = cache.Get("int main() { return 1; }")
	assert.False(t, ok)
}

func TestDiskCacheKeyIsVersioned(t *testing.T) {
	cache := NewDiskCache(t.TempDir())
	key := cache.Key("source")
	assert.Len(t, key, 64)
	assert.NotEqual(t, cache.Key("other"), key)
}

func TestCompileCachedHitsCache(t *testing.T) {
	cache := NewDiskCache(t.TempDir())
	source := "int main() { return 0; }"

	first, err := CompileCached(source, "main.btrc", nil, cache, nil)
	require.NoError(t, err)
	second, err := CompileCached(source, "main.btrc", nil, cache, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The cached artifact is exactly the generated C.
	cached, ok := cache.Get(source)
	require.True(t, ok)
	assert.Equal(t, first, cached)
}
