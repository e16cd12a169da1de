package btrc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelperCatalogueDependenciesExist(t *testing.T) {
	for name, def := range runtimeHelpers {
		for _, dep := range def.deps {
			_, ok := runtimeHelpers[dep]
			assert.True(t, ok, "helper %s depends on unknown %s", name, dep)
		}
	}
}

func TestHelperGroupsReferToKnownHelpers(t *testing.T) {
	for group, members := range helperGroups {
		for _, name := range members {
			_, ok := runtimeHelpers[name]
			assert.True(t, ok, "group %s lists unknown helper %s", group, name)
		}
	}
}

func TestEmitHelperOnceWithDepsFirst(t *testing.T) {
	analyzed := NewAnalyzer().Analyze(&Program{})
	g := NewCodeGen(analyzed, nil)

	g.emitHelper("__btrc_throw")
	g.emitHelper("__btrc_throw") // second emission is a no-op
	output := g.out.output()

	assert.Equal(t, 1, strings.Count(output, "static inline void __btrc_throw"))

	globalsPos := strings.Index(output, "__btrc_try_stack")
	runPos := strings.Index(output, "static inline void __btrc_run_cleanups")
	throwPos := strings.Index(output, "static inline void __btrc_throw")
	require.GreaterOrEqual(t, globalsPos, 0)
	require.GreaterOrEqual(t, runPos, 0)
	assert.Less(t, globalsPos, runPos)
	assert.Less(t, runPos, throwPos)
}

func TestEmitHelperGroupIsIdempotent(t *testing.T) {
	analyzed := NewAnalyzer().Analyze(&Program{})
	g := NewCodeGen(analyzed, nil)

	g.emitHelperGroup("divmod")
	g.emitHelperGroup("divmod")
	output := g.out.output()
	assert.Equal(t, 1, strings.Count(output, "static inline int __btrc_div_int"))
}
