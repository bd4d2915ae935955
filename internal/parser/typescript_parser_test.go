package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTSSource = `import { Widget } from './widget';

export class Greeter {
  greet(name: string): string {
    return helper(name);
  }
}

function helper(name: string): string {
  return name;
}
`

func TestTypeScriptParserExtractsSymbols(t *testing.T) {
	pf, err := NewTypeScriptParser().Parse("sample.ts", []byte(sampleTSSource))
	require.NoError(t, err)
	require.Equal(t, "ts", pf.Language)

	require.Len(t, pf.Types, 1)
	require.Equal(t, "Greeter", pf.Types[0].Name)
	require.True(t, pf.Types[0].IsPublic)

	require.Len(t, pf.Imports, 1)
	require.Equal(t, "./widget", pf.Imports[0].RawPath)
	require.Equal(t, "relative", pf.Imports[0].Hint)
}

func TestTypeScriptParserRoutesJavaScriptToJSGrammar(t *testing.T) {
	pf, err := NewTypeScriptParser().Parse("sample.js", []byte("function helper(name) { return name; }\n"))
	require.NoError(t, err)
	require.Equal(t, "js", pf.Language)
	require.Len(t, pf.Functions, 1)
}
