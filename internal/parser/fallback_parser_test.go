package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleJavaSource = `package sample;

import java.util.List;

public class Widget {
    private int count() {
        return 0;
    }
}
`

func TestFallbackParserJava(t *testing.T) {
	p := NewFallbackParser("java", []string{".java"})
	pf, err := p.Parse("Widget.java", []byte(sampleJavaSource))
	require.NoError(t, err)
	require.Equal(t, "java", pf.Language)

	require.Len(t, pf.Types, 1)
	require.Equal(t, "Widget", pf.Types[0].Name)

	require.Len(t, pf.Imports, 1)
	require.Equal(t, "java.util.List", pf.Imports[0].RawPath)
}

const sampleRubySource = `require 'json'

class Widget
  def render
    true
  end
end
`

func TestFallbackParserRuby(t *testing.T) {
	p := NewFallbackParser("ruby", []string{".rb"})
	pf, err := p.Parse("widget.rb", []byte(sampleRubySource))
	require.NoError(t, err)
	require.Len(t, pf.Types, 1)
	require.Equal(t, "Widget", pf.Types[0].Name)
	require.Len(t, pf.Imports, 1)
	require.Equal(t, "json", pf.Imports[0].RawPath)
}
