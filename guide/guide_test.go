package guide

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/ramcp/internal/errs"
)

func writeGuide(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func TestNewLibraryPicksFirstDirWithIndex(t *testing.T) {
	empty := t.TempDir()
	custom := writeGuide(t, map[string]string{
		TableOfContents: "# Custom index\n",
		"10_Extra.md":   "intro\n## Extra section\n",
	})

	lib := NewLibrary(zerolog.Nop(), empty, custom)
	assert.Equal(t, custom, lib.Source())

	toc, err := lib.Load(TableOfContents)
	require.NoError(t, err)
	assert.Equal(t, "# Custom index\n", toc)

	sections, err := lib.Sections()
	require.NoError(t, err)
	assert.Equal(t, []Section{
		{Filename: TableOfContents, Title: "Custom index"},
		{Filename: "10_Extra.md", Title: "Extra section"},
	}, sections)
}

func TestNewLibraryEmbeddedFallback(t *testing.T) {
	lib := NewLibrary(zerolog.Nop(), t.TempDir())
	assert.Equal(t, "embedded", lib.Source())

	toc, err := lib.Load(TableOfContents)
	require.NoError(t, err)
	assert.Contains(t, toc, "# Innehållsförteckning")

	sections, err := lib.Sections()
	require.NoError(t, err)
	require.NotEmpty(t, sections)
	assert.Equal(t, TableOfContents, sections[0].Filename)
	assert.Equal(t, "Domstolar", sections[1].Title)
}

func TestLoadValidation(t *testing.T) {
	dir := writeGuide(t, map[string]string{TableOfContents: "# i", "01_A.md": "a"})
	lib := NewLibrary(zerolog.Nop(), dir)

	tests := []struct {
		name     string
		filename string
		want     string
		invalid  bool
		notFound bool
	}{
		{"plain", "01_A.md", "a", false, false},
		{"traversal keeps base name", "../../x/01_A.md", "a", false, false},
		{"not markdown", "01_A.txt", "", true, false},
		{"bare extension", ".md", "", true, false},
		{"missing", "99_Nope.md", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lib.Load(tt.filename)
			var (
				invalid  *errs.InvalidParameterError
				notFound *errs.NotFoundError
			)
			switch {
			case tt.invalid:
				assert.ErrorAs(t, err, &invalid)
			case tt.notFound:
				assert.ErrorAs(t, err, &notFound)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSearchPath(t *testing.T) {
	dirs := SearchPath("/srv/guide")
	require.GreaterOrEqual(t, len(dirs), 2)
	assert.Equal(t, "/srv/guide", dirs[0])
	assert.Equal(t, "resources", dirs[1])

	assert.Equal(t, "resources", SearchPath("")[0])
}

func resourceReq(uri string) mcplib.ReadResourceRequest {
	var req mcplib.ReadResourceRequest
	req.Params.URI = uri
	return req
}

func resourceText(t *testing.T, contents []mcplib.ResourceContents) string {
	t.Helper()
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "text/markdown", tc.MIMEType)
	return tc.Text
}

func TestResourceHandlers(t *testing.T) {
	dir := writeGuide(t, map[string]string{TableOfContents: "# Index", "01_Domstolar.md": "# Domstolar"})
	p := NewPlugin(NewLibrary(zerolog.Nop(), dir), zerolog.Nop())
	ctx := context.Background()

	contents, err := p.readTableOfContents(ctx, resourceReq(TOCURI))
	require.NoError(t, err)
	assert.Equal(t, "# Index", resourceText(t, contents))

	tests := []struct {
		uri  string
		want string
	}{
		{"riksarkivet://guide/01_Domstolar.md", "# Domstolar"},
		{"riksarkivet://guide/01_Domstolar.txt", "⚠️ **Error**: Invalid filename format\n\n**Suggestions**:\n- Filename must end with .md extension"},
		{"riksarkivet://guide/02_Fangelse.md", "⚠️ **Error**: Guide section '02_Fangelse.md' not found"},
		{"riksarkivet://guide/..%2F01_Domstolar.md", "# Domstolar"},
	}
	for _, tt := range tests {
		contents, err := p.readSection(ctx, resourceReq(tt.uri))
		require.NoError(t, err)
		got := resourceText(t, contents)
		if len(got) < len(tt.want) || got[:len(tt.want)] != tt.want {
			t.Errorf("readSection(%s) = %q, want prefix %q", tt.uri, got, tt.want)
		}
	}
}

func TestListGuides(t *testing.T) {
	dir := writeGuide(t, map[string]string{TableOfContents: "# Index", "01_Domstolar.md": "# Domstolar"})
	p := NewPlugin(NewLibrary(zerolog.Nop(), dir), zerolog.Nop())

	r, err := p.handleListGuides(context.Background(), mcplib.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, r.IsError)
	text := r.Content[0].(mcplib.TextContent).Text
	assert.Contains(t, text, "- 01_Domstolar.md: Domstolar\n  riksarkivet://guide/01_Domstolar.md")
	assert.Contains(t, text, "Start with riksarkivet://contents/table_of_contents")
}

func TestGuidePluginMetadata(t *testing.T) {
	p := NewPlugin(nil, zerolog.Nop())
	assert.Equal(t, "guide", p.Name())
	assert.True(t, p.Default())
	assert.Equal(t, "list_guides", p.Tools()[0].Tool.Name)
}
