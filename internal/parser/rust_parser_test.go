package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleRustSource = `use std::fmt;

pub struct Widget {
    name: String,
}

pub trait Renderable {
    fn render(&self) -> String;
}

impl Renderable for Widget {
    fn render(&self) -> String {
        self.name.clone()
    }
}

impl fmt::Display for Widget {
    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result {
        write!(f, "{}", self.name)
    }
}
`

func TestRustParserExtractsSymbols(t *testing.T) {
	pf, err := NewRustParser().Parse("widget.rs", []byte(sampleRustSource))
	require.NoError(t, err)
	require.Equal(t, "rs", pf.Language)

	var sawStruct, sawTrait bool
	for _, ty := range pf.Types {
		if ty.Name == "Widget" && ty.Kind == TypeKindStruct {
			sawStruct = true
		}
		if ty.Name == "Renderable" && ty.Kind == TypeKindTrait {
			sawTrait = true
		}
	}
	require.True(t, sawStruct)
	require.True(t, sawTrait)

	require.Len(t, pf.Impls, 2)
	var localImpl, externalImpl *ImplBlock
	for i := range pf.Impls {
		switch pf.Impls[i].TraitName {
		case "Renderable":
			localImpl = &pf.Impls[i]
		case "fmt::Display":
			externalImpl = &pf.Impls[i]
		}
	}
	require.NotNil(t, localImpl)
	require.False(t, localImpl.IsExternal, "Renderable is declared locally")
	require.NotNil(t, externalImpl)
	require.True(t, externalImpl.IsExternal, "fmt::Display is not declared locally")

	require.Len(t, pf.Imports, 1)
	require.Equal(t, "std::fmt", pf.Imports[0].RawPath)
}
