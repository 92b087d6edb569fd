package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureResult(t *testing.T, maxSnippets int) *Result {
	t.Helper()
	resp := loadFixture(t)
	LimitSnippets(resp, maxSnippets)
	return &Result{Response: resp, Keyword: "Stockholm", Max: 25, Transcribed: true}
}

func TestFormatResults(t *testing.T) {
	r := fixtureResult(t, 3)
	out := FormatResults(r, 25, nil)

	lines := strings.Split(out.Text, "\n")
	assert.Equal(t, "Found 4 page-level hits across 3 volumes", lines[0])
	assert.Equal(t, []string{
		"📚 Document: SE/RA/310187/1",
		"🏛️  Institution: Riksarkivet i Stockholm/Täby",
		"📅 Date: 1675 - 1676",
		"📄 Title: Svea hovrätt, Trolldomskommissionen, protokoll",
		"📖 Pages with hits: 5, 12, 33",
		"💡 3 hits shown (9 total)",
		"   Page _00012: uti **Stockholm** om trolldom",
		"   Page _00005: the **Stockholm** court",
		"   Page _00033: **stockholm**s stad",
	}, lines[2:11])
	assert.Contains(t, out.Text, "💡 1 hit found")
	assert.Contains(t, out.Text, "   Page _00002: i **Stockholm**")
	// metadata-only records are hidden in a transcribed result
	assert.NotContains(t, out.Text, "SE/RA/9/9")
	assert.Equal(t, 3, out.Scanned)
	assert.Contains(t, out.Shown, "SE/RA/310187/1")
	assert.Contains(t, out.Shown, "SE/RA/310187/1:12")
	assert.Contains(t, out.Shown, "SE/SSA/0001/A1:2")
}

func TestFormatResultsMoreSnippetsThanPreview(t *testing.T) {
	r := fixtureResult(t, 5)
	out := FormatResults(r, 25, nil)
	assert.Contains(t, out.Text, "💡 5 hits shown (9 total)")
	assert.Contains(t, out.Text, "   ...and 2 more pages with hits")
	assert.NotContains(t, out.Text, "Page _00040")
}

func TestFormatResultsDisplayLimit(t *testing.T) {
	r := fixtureResult(t, 3)
	r.Max = 2
	out := FormatResults(r, 1, nil)

	assert.True(t, strings.HasPrefix(out.Text, "Found 4 page-level hits across 3+ volumes"))
	assert.Contains(t, out.Text, "... and 2 more documents")
	assert.NotContains(t, out.Text, "SE/SSA/0001/A1")
	assert.Equal(t, 1, out.Scanned)
}

func TestFormatResultsDedup(t *testing.T) {
	r := fixtureResult(t, 3)
	seenIDs := map[string]bool{
		"SE/RA/310187/1":    true,
		"SE/RA/310187/1:12": true,
		"SE/RA/310187/1:5":  true,
		"SE/SSA/0001/A1":    true,
		"SE/SSA/0001/A1:2":  true,
	}
	out := FormatResults(r, 25, func(id string) bool { return seenIDs[id] })

	assert.Contains(t, out.Text, "📚 Document: SE/RA/310187/1 (previously shown — new pages only)")
	assert.Contains(t, out.Text, "📖 New pages: 33")
	assert.Contains(t, out.Text, "   Page _00033: **stockholm**s stad")
	assert.NotContains(t, out.Text, "Page _00012")
	assert.Contains(t, out.Text, "(1 previously shown document(s) omitted)")
	assert.Equal(t, []string{"SE/RA/310187/1:33"}, out.Shown)
}

func TestRenderedShownWithin(t *testing.T) {
	r := fixtureResult(t, 3)
	out := FormatResults(r, 25, nil)

	firstEnd := strings.Index(out.Text, "\n\n📚 Document: SE/SSA/0001/A1")
	require.Positive(t, firstEnd)

	tests := []struct {
		cut  int
		want []string
	}{
		{len(out.Text), out.Shown},
		{firstEnd, []string{"SE/RA/310187/1", "SE/RA/310187/1:12", "SE/RA/310187/1:5", "SE/RA/310187/1:33"}},
		{firstEnd - 1, nil},
		{0, nil},
	}
	for _, tt := range tests {
		assert.ElementsMatch(t, tt.want, out.ShownWithin(tt.cut), "ShownWithin(%d)", tt.cut)
	}
}

func TestFormatResultsDedupWithoutReferenceCode(t *testing.T) {
	resp := &RecordsResponse{Items: []Record{
		{ID: "rec-1", ObjectType: "Record", Caption: "Första"},
		{ID: "rec-2", ObjectType: "Record", Caption: "Andra"},
	}}
	r := &Result{Response: resp, Keyword: "x", Max: 25}

	out := FormatResults(r, 25, nil)
	assert.Equal(t, []string{"rec-1", "rec-2"}, out.Shown)

	seen := map[string]bool{"rec-1": true}
	out = FormatResults(r, 25, func(id string) bool { return seen[id] })
	assert.Contains(t, out.Text, "📄 Title: Andra")
	assert.NotContains(t, out.Text, "📄 Title: Första")
	assert.Contains(t, out.Text, "(1 previously shown document(s) omitted)")
}

func TestFormatResultsMetadataOnly(t *testing.T) {
	resp := loadFixture(t)
	LimitSnippets(resp, 0)
	r := &Result{Response: resp, Keyword: "Stockholm", Max: 25}

	out := FormatResults(r, 25, nil)
	assert.True(t, strings.HasPrefix(out.Text, "Found 3 volumes matching metadata"))
	assert.Contains(t, out.Text, "🏷️  Type: Record / Volume")
	assert.Contains(t, out.Text, "📂 Context: Svea hovrätt → Trolldomskommissionen")
	assert.Contains(t, out.Text, "🖼️  View Images: https://sok.riksarkivet.se/bildvisning/R0001203")
	assert.Contains(t, out.Text, "📄 Title: (No title)")
}

func TestFormatResultsLongFields(t *testing.T) {
	long := strings.Repeat("a", 120)
	resp := &RecordsResponse{Items: []Record{{
		ObjectType: "Record",
		Caption:    long,
		Metadata: Metadata{
			ReferenceCode: "SE/X",
			Hierarchy: []HierarchyLevel{
				{Caption: strings.Repeat("b", 60)},
				{Caption: strings.Repeat("c", 60)},
				{Caption: strings.Repeat("d", 60)},
				{Caption: "ignored"},
			},
			Provenance: []Provenance{{Caption: "Kommerskollegium", Date: "1651"}},
		},
		Links: &Links{HTML: "https://sok.riksarkivet.se/x", Image: []string{"https://example.com/iiif/manifest"}},
	}}}
	out := FormatResults(&Result{Response: resp, Keyword: "x", Max: 25}, 25, nil)

	assert.Contains(t, out.Text, "📄 Title: "+strings.Repeat("a", 100)+"...")
	assert.Contains(t, out.Text, "👤 Creator: Kommerskollegium (1651)")
	assert.Contains(t, out.Text, "🔗 View: https://sok.riksarkivet.se/x")
	assert.Contains(t, out.Text, "🖼️  IIIF: https://example.com/iiif/manifest")
	assert.NotContains(t, out.Text, "ignored")

	for _, line := range strings.Split(out.Text, "\n") {
		if strings.HasPrefix(line, "📂 Context: ") {
			ctx := strings.TrimPrefix(line, "📂 Context: ")
			assert.True(t, strings.HasSuffix(ctx, "..."))
			assert.Equal(t, 150, len([]rune(ctx)))
		}
	}
}

func TestNoResultsMessage(t *testing.T) {
	empty := &RecordsResponse{TotalHits: 40}
	tests := []struct {
		offset   int
		expected string
	}{
		{0, "No results found for 'trolldom'. make sure to use \"\" "},
		{50, "No more results found for 'trolldom' at offset 50. Total results: 40"},
	}

	for _, tt := range tests {
		r := &Result{Response: empty, Keyword: "trolldom", Offset: tt.offset, Max: 25}
		if got := FormatResults(r, 25, nil).Text; got != tt.expected {
			t.Errorf("FormatResults(empty, offset=%d) = %q, want %q", tt.offset, got, tt.expected)
		}
	}
}

func TestFormatTable(t *testing.T) {
	r := fixtureResult(t, 3)
	out := FormatTable(r, 2)

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "Search results for 'Stockholm' (4 hits in 3 documents, 120 total)", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "Reference"))
	assert.Contains(t, lines[4], "SE/RA/310187/1")
	assert.Contains(t, lines[4], "5,12,33")
	assert.Contains(t, out, "1 more documents not shown")
	assert.Contains(t, out, "--offset 25")
}

func TestPaginate(t *testing.T) {
	mk := func(n int) []Record {
		items := make([]Record, n)
		for i := range items {
			items[i].Metadata.ReferenceCode = "SE/RA/" + string(rune('a'+i))
		}
		return items
	}

	tests := []struct {
		name      string
		items     []Record
		totalHits int
		offset    int
		limit     int
		hasMore   bool
		start     int
		end       int
		next      int
	}{
		{"full page with more", mk(5), 40, 0, 5, true, 1, 5, 5},
		{"second page", mk(5), 40, 5, 5, true, 6, 10, 10},
		{"short page", mk(3), 40, 10, 5, false, 11, 13, 0},
		{"full page, nothing more", mk(5), 5, 0, 5, false, 1, 5, 0},
	}

	for _, tt := range tests {
		p := Paginate(tt.items, tt.totalHits, tt.offset, tt.limit)
		assert.Equal(t, tt.hasMore, p.HasMore, tt.name)
		assert.Equal(t, tt.start, p.Start, tt.name)
		assert.Equal(t, tt.end, p.End, tt.name)
		assert.Equal(t, tt.next, p.NextOffset, tt.name)
	}

	p := Paginate(mk(5), 40, 0, 5)
	assert.Equal(t, "\n\n📊 **Pagination**: Showing documents 1-5\n💡 Use `offset=5` to see the next 5 documents", p.Footer(5))
	assert.Equal(t, "", Paginate(mk(3), 3, 0, 5).Footer(5))
	assert.False(t, Paginate(mk(3), 3, 0, 0).HasMore)
}
