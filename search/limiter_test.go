package search

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *RecordsResponse {
	t.Helper()
	data, err := os.ReadFile("testdata/records.json")
	require.NoError(t, err)
	var resp RecordsResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return &resp
}

func TestLimitSnippets(t *testing.T) {
	tests := []struct {
		max      int
		first    []int // snippet counts per item after limiting
		expected int
	}{
		{2, []int{2, 1, 0}, 3},
		{0, []int{0, 0, 0}, 0},
		{10, []int{5, 1, 0}, 6},
		{-1, []int{5, 1, 0}, 6},
	}

	for _, tt := range tests {
		resp := loadFixture(t)
		LimitSnippets(resp, tt.max)

		require.Len(t, resp.Items, 3, "items are never dropped")
		for i, want := range tt.first {
			if got := resp.Items[i].SnippetCount(); got != want {
				t.Errorf("LimitSnippets(%d): item %d has %d snippets, want %d", tt.max, i, got, want)
			}
		}
		if got := CountSnippets(resp); got != tt.expected {
			t.Errorf("CountSnippets after LimitSnippets(%d) = %d, want %d", tt.max, got, tt.expected)
		}
	}
}

func TestLimitSnippetsKeepsOrder(t *testing.T) {
	resp := loadFixture(t)
	LimitSnippets(resp, 2)

	sn := resp.Items[0].Snippets()
	assert.Equal(t, "uti Stockholm om trolldom", sn[0].Text)
	assert.Equal(t, "the **Stockholm** court", sn[1].Text)
}

func TestCountSnippetsNil(t *testing.T) {
	assert.Equal(t, 0, CountSnippets(nil))
	LimitSnippets(nil, 1)
}

func TestRecordHelpers(t *testing.T) {
	resp := loadFixture(t)

	r := resp.Items[0]
	assert.Equal(t, 9, r.TotalHits())
	assert.Equal(t, "https://lbiiif.riksarkivet.se/arkis!R0001203/manifest", r.ManifestURL())
	assert.Equal(t, "https://lbiiif.riksarkivet.se/arkis/R0001203", r.CollectionURL())
	assert.Equal(t, "SE/RA/310187/1", r.DocumentID())

	empty := resp.Items[2]
	assert.Equal(t, "(No title)", empty.Title())
	assert.Equal(t, 0, empty.TotalHits())
	assert.Equal(t, "", empty.ManifestURL())

	assert.Equal(t, "R1", (&Record{ID: "R1"}).DocumentID())
}
