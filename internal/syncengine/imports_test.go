package syncengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"codeforge/internal/model"
)

func TestResolveOneBreaksAmbiguousFuzzyMatchByLexOrder(t *testing.T) {
	imp := model.Import{RawPath: "utils", FilePath: "src/b.go"}
	pathSet := map[string]bool{"pkg/z/utils.go": true, "pkg/a/utils.go": true}
	basenames := map[string][]string{"utils": {"pkg/z/utils.go", "pkg/a/utils.go"}}

	resolved, ok := resolveOne(imp, pathSet, basenames, []string{".go"})
	require.True(t, ok)
	require.Equal(t, "pkg/a/utils.go", resolved, "ambiguous basename matches resolve to the lexically first path")
}

func TestResolveOneRelativePathTakesPriorityOverFuzzy(t *testing.T) {
	imp := model.Import{RawPath: "./sibling", FilePath: "src/a.go"}
	pathSet := map[string]bool{"src/sibling.go": true, "other/sibling.go": true}
	basenames := map[string][]string{"sibling": {"src/sibling.go", "other/sibling.go"}}

	resolved, ok := resolveOne(imp, pathSet, basenames, []string{".go"})
	require.True(t, ok)
	require.Equal(t, "src/sibling.go", resolved)
}

func TestResolveOneRustCratePathS1Scenario(t *testing.T) {
	// spec.md S1: "use crate::a;" in src/b.rs must resolve to src/a.rs.
	imp := model.Import{RawPath: "crate::a", FilePath: "src/b.rs", Hint: "module"}
	pathSet := map[string]bool{"src/a.rs": true, "src/b.rs": true}
	basenames := map[string][]string{"a": {"src/a.rs"}, "b": {"src/b.rs"}}

	resolved, ok := resolveOne(imp, pathSet, basenames, []string{".rs"})
	require.True(t, ok)
	require.Equal(t, "src/a.rs", resolved)
}

func TestResolveOneRustSelfAndSuperPaths(t *testing.T) {
	selfImp := model.Import{RawPath: "self::helper", FilePath: "src/pkg/mod.rs", Hint: "module"}
	pathSet := map[string]bool{"src/pkg/helper.rs": true}
	basenames := map[string][]string{"helper": {"src/pkg/helper.rs"}}
	resolved, ok := resolveOne(selfImp, pathSet, basenames, []string{".rs"})
	require.True(t, ok)
	require.Equal(t, "src/pkg/helper.rs", resolved)

	superImp := model.Import{RawPath: "super::util", FilePath: "src/pkg/sub/mod.rs", Hint: "module"}
	pathSet2 := map[string]bool{"src/pkg/util.rs": true}
	basenames2 := map[string][]string{"util": {"src/pkg/util.rs"}}
	resolved2, ok2 := resolveOne(superImp, pathSet2, basenames2, []string{".rs"})
	require.True(t, ok2)
	require.Equal(t, "src/pkg/util.rs", resolved2)
}

func TestResolveOnePythonDottedModulePath(t *testing.T) {
	imp := model.Import{RawPath: "pkg.helpers", FilePath: "src/pkg/main.py", Hint: "module"}
	pathSet := map[string]bool{"src/pkg/helpers.py": true}
	basenames := map[string][]string{"helpers": {"src/pkg/helpers.py"}}

	resolved, ok := resolveOne(imp, pathSet, basenames, []string{".py"})
	require.True(t, ok)
	require.Equal(t, "src/pkg/helpers.py", resolved)
}

func TestResolveOnePythonRelativeImport(t *testing.T) {
	// "from .sibling import x" inside src/pkg/main.py.
	imp := model.Import{RawPath: ".sibling", FilePath: "src/pkg/main.py", Hint: "relative"}
	pathSet := map[string]bool{"src/pkg/sibling.py": true}
	basenames := map[string][]string{"sibling": {"src/pkg/sibling.py"}}

	resolved, ok := resolveOne(imp, pathSet, basenames, []string{".py"})
	require.True(t, ok)
	require.Equal(t, "src/pkg/sibling.py", resolved)
}
