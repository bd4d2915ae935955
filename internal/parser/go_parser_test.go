package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleGoSource = `package sample

import "fmt"

// Greeter produces greetings.
type Greeter struct{}

// Greet prints a greeting for name.
func (g *Greeter) Greet(name string) string {
	fmt.Println(name)
	return helper(name)
}

func helper(name string) string {
	return name
}
`

func TestGoParserExtractsSymbols(t *testing.T) {
	pf, err := NewGoParser().Parse("sample.go", []byte(sampleGoSource))
	require.NoError(t, err)
	require.Equal(t, "go", pf.Language)
	require.Len(t, pf.Types, 1)
	require.Equal(t, "Greeter", pf.Types[0].Name)
	require.True(t, pf.Types[0].IsPublic)

	require.Len(t, pf.Functions, 2)
	var greet, helper *Function
	for i := range pf.Functions {
		switch pf.Functions[i].Name {
		case "Greet":
			greet = &pf.Functions[i]
		case "helper":
			helper = &pf.Functions[i]
		}
	}
	require.NotNil(t, greet)
	require.Equal(t, "Greeter", greet.Receiver)
	require.True(t, greet.IsPublic)
	require.NotNil(t, helper)
	require.False(t, helper.IsPublic)

	require.Len(t, pf.Imports, 1)
	require.Equal(t, "fmt", pf.Imports[0].RawPath)

	foundCall := false
	for _, c := range pf.Calls {
		if c.Callee == "helper" {
			foundCall = true
		}
	}
	require.True(t, foundCall, "expected Greet -> helper call edge")
}

func TestGoParserSupportedExtensions(t *testing.T) {
	require.Equal(t, []string{".go"}, NewGoParser().SupportedExtensions())
}
