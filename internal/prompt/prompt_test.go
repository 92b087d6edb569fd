package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var modules = []Module{
	{Name: "search", Description: "Search transcribed documents"},
	{Name: "browse", Description: "View full page transcriptions"},
}

func TestGenerateDefault(t *testing.T) {
	text, err := NewGenerator("", zerolog.Nop()).Generate(modules)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "🏛️ Riksarkivet MCP Server"))
	assert.Contains(t, text, "  - search: Search transcribed documents\n  - browse: View full page transcriptions\n")
	assert.Contains(t, text, "RESEARCH INTEGRITY")
	assert.Contains(t, text, "research_context")
}

func TestGenerateNoModules(t *testing.T) {
	text, err := NewGenerator("", zerolog.Nop()).Generate(nil)
	require.NoError(t, err)
	assert.Contains(t, text, "(No modules enabled)")
}

func TestGenerateCustomReplacesBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instructions.md")
	require.NoError(t, os.WriteFile(path, []byte("\nOnly cite sources.\n\n"), 0o600))

	text, err := NewGenerator(path, zerolog.Nop()).Generate(modules)
	require.NoError(t, err)
	assert.Contains(t, text, "  - search: Search transcribed documents")
	assert.True(t, strings.HasSuffix(text, "\n\nOnly cite sources.\n"))
	assert.NotContains(t, text, "RESEARCH INTEGRITY")
}

func TestGenerateWithFallback(t *testing.T) {
	g := NewGenerator(filepath.Join(t.TempDir(), "missing.md"), zerolog.Nop())

	_, err := g.Generate(modules)
	assert.Error(t, err)

	text := g.GenerateWithFallback(modules)
	assert.Equal(t, Build(modules, DefaultBody()), text)
}
