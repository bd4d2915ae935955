package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePythonSource = `import os
from .models import User

class Greeter:
    def greet(self, name):
        return helper(name)

def helper(name):
    return name
`

func TestPythonParserExtractsSymbols(t *testing.T) {
	pf, err := NewPythonParser().Parse("sample.py", []byte(samplePythonSource))
	require.NoError(t, err)
	require.Equal(t, "py", pf.Language)

	require.Len(t, pf.Types, 1)
	require.Equal(t, "Greeter", pf.Types[0].Name)
	require.Equal(t, TypeKindClass, pf.Types[0].Kind)

	names := map[string]Function{}
	for _, fn := range pf.Functions {
		names[fn.Name] = fn
	}
	require.Contains(t, names, "greet")
	require.Contains(t, names, "helper")
	require.Equal(t, "Greeter", names["greet"].Receiver)
	require.Empty(t, names["helper"].Receiver)

	require.Len(t, pf.Imports, 2)
	require.Equal(t, "os", pf.Imports[0].RawPath)
	require.Equal(t, "module", pf.Imports[0].Hint)
	require.Equal(t, ".models", pf.Imports[1].RawPath)
	require.Equal(t, "relative", pf.Imports[1].Hint)
}

func TestPythonParserSupportedExtensions(t *testing.T) {
	require.ElementsMatch(t, []string{".py", ".pyw"}, NewPythonParser().SupportedExtensions())
}
