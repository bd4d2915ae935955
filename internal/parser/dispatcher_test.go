package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherUnknownExtensionIsSkipped(t *testing.T) {
	d := NewDispatcher()
	_, ok := d.Lookup("weird.xyz")
	require.False(t, ok, "unknown extensions must be skipped, not errored")
}

func TestDispatcherRoutesByExtension(t *testing.T) {
	d := Default()
	for _, tc := range []struct {
		path string
		lang string
	}{
		{"main.go", "go"},
		{"app.py", "py"},
		{"index.ts", "ts"},
		{"lib.rs", "rs"},
		{"Main.java", "java"},
	} {
		p, ok := d.Lookup(tc.path)
		require.True(t, ok, "expected a parser for %s", tc.path)
		require.Equal(t, tc.lang, p.Language())
	}
}

func TestDispatcherParseRecordsParserErrorWithoutPanicking(t *testing.T) {
	d := Default()
	pf, ok := d.Parse("broken.go", []byte("not valid go {{{"))
	require.True(t, ok)
	require.NotEmpty(t, pf.Errors)
}
