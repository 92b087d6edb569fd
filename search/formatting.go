package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/briangreenhill/ramcp/internal/format"
)

const (
	maxTitleLen    = 100
	maxContextLen  = 150
	snippetPreview = 3
)

// Seen reports whether an item id was already shown. A nil Seen disables dedup.
type Seen func(id string) bool

// Rendered is formatted output plus the ids it showed in full.
type Rendered struct {
	Text string
	// Shown lists document ids and "ref:page" ids rendered by this call.
	Shown []string
	// Scanned is how many items were considered before the display limit.
	Scanned int

	blocks []block
}

// block is one rendered document: the byte offset in Text where it ends and
// the ids it showed.
type block struct {
	end int
	ids []string
}

// ShownWithin returns the ids of documents rendered completely within the
// first n bytes of Text.
func (r Rendered) ShownWithin(n int) []string {
	var ids []string
	for _, b := range r.blocks {
		if b.end > n {
			break
		}
		ids = append(ids, b.ids...)
	}
	return ids
}

// PageItemID identifies one page of a document for dedup.
func PageItemID(ref, pageID string) string {
	return ref + ":" + format.TrimPageNumber(pageID)
}

// NoResultsMessage distinguishes an empty search from paging past the end.
func NoResultsMessage(r *Result) string {
	if r.Offset > 0 {
		return fmt.Sprintf("No more results found for '%s' at offset %d. Total results: %d", r.Keyword, r.Offset, r.TotalHits())
	}
	return fmt.Sprintf("No results found for '%s'. make sure to use \"\" ", r.Keyword)
}

// FormatResults renders up to maxDisplay documents as plain text. Documents
// already seen are compacted to their new pages or omitted, and do not count
// against maxDisplay.
func FormatResults(r *Result, maxDisplay int, seen Seen) Rendered {
	items := r.Items()
	if len(items) == 0 {
		return Rendered{Text: NoResultsMessage(r)}
	}

	var (
		lines     []string
		shown     []string
		blocks    []block
		skipped   int
		displayed int
		scanned   int
	)
	snippetCount := r.CountSnippets()

	documentDisplay := strconv.Itoa(len(items))
	if len(items) >= r.Max {
		documentDisplay += "+"
	}
	if snippetCount > 0 {
		lines = append(lines, fmt.Sprintf("Found %d page-level hits across %s volumes", snippetCount, documentDisplay))
	} else {
		lines = append(lines, fmt.Sprintf("Found %s volumes matching metadata", documentDisplay))
	}
	lines = append(lines, "")

	for i := range items {
		if displayed >= maxDisplay {
			break
		}
		scanned = i + 1
		doc := &items[i]

		snippets := doc.Snippets()
		hasSnippets := len(snippets) > 0
		if snippetCount > 0 && !hasSnippets {
			continue
		}
		id := doc.DocumentID()

		if seen != nil && seen(id) {
			if !hasSnippets {
				skipped++
				continue
			}
			fresh := newSnippets(id, snippets, seen)
			if len(fresh) == 0 {
				skipped++
				continue
			}
			lines = append(lines, fmt.Sprintf("📚 Document: %s (previously shown — new pages only)", doc.Metadata.ReferenceCode))
			lines = appendCompactSnippets(lines, fresh, r.Keyword)
			ids := snippetPageIDs(id, fresh)
			blocks = append(blocks, block{end: joinedLen(lines), ids: ids})
			lines = append(lines, "")
			shown = append(shown, ids...)
			displayed++
			continue
		}

		displayed++
		lines = appendDocumentHeader(lines, doc)
		if hasSnippets {
			lines = appendDocumentSnippets(lines, doc, r.Keyword)
		} else {
			lines = appendMetadataFields(lines, doc)
		}
		ids := append([]string{id}, snippetPageIDs(id, snippets)...)
		blocks = append(blocks, block{end: joinedLen(lines), ids: ids})
		lines = append(lines, "")
		shown = append(shown, ids...)
	}

	if skipped > 0 {
		lines = append(lines, fmt.Sprintf("(%d previously shown document(s) omitted)", skipped), "")
	}
	if remaining := len(items) - scanned; remaining > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more documents", remaining))
	}

	return Rendered{Text: strings.Join(lines, "\n"), Shown: shown, Scanned: scanned, blocks: blocks}
}

// joinedLen is len(strings.Join(lines, "\n")).
func joinedLen(lines []string) int {
	n := len(lines) - 1
	for _, l := range lines {
		n += len(l)
	}
	return n
}

func appendDocumentHeader(lines []string, doc *Record) []string {
	lines = append(lines, "📚 Document: "+doc.Metadata.ReferenceCode)
	if len(doc.Metadata.ArchivalInstitution) > 0 {
		lines = append(lines, "🏛️  Institution: "+doc.Metadata.ArchivalInstitution[0].Caption)
	}
	if doc.Metadata.Date != "" {
		lines = append(lines, "📅 Date: "+doc.Metadata.Date)
	}
	title := doc.Title()
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = format.Ellipsis(title, maxTitleLen, maxTitleLen)
	}
	return append(lines, "📄 Title: "+title)
}

func appendMetadataFields(lines []string, doc *Record) []string {
	if doc.ObjectType != "" {
		typeInfo := doc.ObjectType
		if doc.Type != "" {
			typeInfo += " / " + doc.Type
		}
		lines = append(lines, "🏷️  Type: "+typeInfo)
	}

	if h := doc.Metadata.Hierarchy; len(h) > 0 {
		var parts []string
		for i := 0; i < len(h) && i < 3; i++ {
			parts = append(parts, h[i].Caption)
		}
		text := format.Ellipsis(strings.Join(parts, " → "), maxContextLen, maxContextLen-3)
		lines = append(lines, "📂 Context: "+text)
	}

	if len(doc.Metadata.Provenance) > 0 {
		prov := doc.Metadata.Provenance[0]
		text := prov.Caption
		if prov.Date != "" {
			text += " (" + prov.Date + ")"
		}
		lines = append(lines, "👤 Creator: "+text)
	}

	if doc.Links != nil && doc.Links.HTML != "" {
		lines = append(lines, "🔗 View: "+doc.Links.HTML)
	}
	if manifest := doc.ManifestURL(); manifest != "" {
		if viewer := format.BildvisarenURL(manifest); viewer != "" {
			lines = append(lines, "🖼️  View Images: "+viewer)
		} else {
			lines = append(lines, "🖼️  IIIF: "+manifest)
		}
	}
	return lines
}

func appendDocumentSnippets(lines []string, doc *Record, keyword string) []string {
	snippets := doc.Snippets()
	count := len(snippets)
	total := doc.TotalHits()
	label := "hits"
	if count == 1 {
		label = "hit"
	}

	lines = append(lines, "📖 Pages with hits: "+strings.Join(trimmedPages(snippets), ", "))
	if total > count {
		lines = append(lines, fmt.Sprintf("💡 %d %s shown (%d total)", count, label, total))
	} else {
		lines = append(lines, fmt.Sprintf("💡 %d %s found", count, label))
	}
	return appendSnippetPreview(lines, snippets, keyword)
}

func appendCompactSnippets(lines []string, snippets []Snippet, keyword string) []string {
	lines = append(lines, "📖 New pages: "+strings.Join(trimmedPages(snippets), ", "))
	return appendSnippetPreview(lines, snippets, keyword)
}

func appendSnippetPreview(lines []string, snippets []Snippet, keyword string) []string {
	for i := 0; i < len(snippets) && i < snippetPreview; i++ {
		s := snippets[i]
		if len(s.Pages) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("   Page %s: %s", s.Pages[0].ID, format.Highlight(s.Text, keyword)))
	}
	if len(snippets) > snippetPreview {
		lines = append(lines, fmt.Sprintf("   ...and %d more pages with hits", len(snippets)-snippetPreview))
	}
	return lines
}

// trimmedPages returns the distinct page ids of snippets, sorted, in display form.
func trimmedPages(snippets []Snippet) []string {
	set := make(map[string]struct{})
	for _, s := range snippets {
		for _, p := range s.Pages {
			set[p.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		ids[i] = format.TrimPageNumber(id)
	}
	return ids
}

// newSnippets keeps snippets with at least one page not yet seen.
func newSnippets(ref string, snippets []Snippet, seen Seen) []Snippet {
	var out []Snippet
	for _, s := range snippets {
		for _, p := range s.Pages {
			if !seen(PageItemID(ref, p.ID)) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func snippetPageIDs(ref string, snippets []Snippet) []string {
	var ids []string
	for _, s := range snippets {
		for _, p := range s.Pages {
			ids = append(ids, PageItemID(ref, p.ID))
		}
	}
	return ids
}

// FormatTable renders the results as a plain table for the terminal, with a
// notice when documents beyond maxDisplay were left out.
func FormatTable(r *Result, maxDisplay int) string {
	items := r.Items()
	if len(items) == 0 {
		return NoResultsMessage(r)
	}

	shown := len(items)
	if maxDisplay > 0 && shown > maxDisplay {
		shown = maxDisplay
	}

	rows := make([][]string, 0, shown)
	for i := 0; i < shown; i++ {
		doc := &items[i]
		preview := ""
		if sn := doc.Snippets(); len(sn) > 0 {
			preview = format.Highlight(format.Ellipsis(sn[0].Text, 80, 77), r.Keyword)
		}
		rows = append(rows, []string{
			doc.Metadata.ReferenceCode,
			format.Ellipsis(doc.Title(), 50, 47),
			doc.Metadata.Date,
			strings.Join(trimmedPages(doc.Snippets()), ","),
			preview,
		})
	}

	title := fmt.Sprintf("Search results for '%s' (%d hits in %d documents, %d total)",
		r.Keyword, r.CountSnippets(), len(items), r.TotalHits())
	out := format.Table(title, []string{"Reference", "Title", "Date", "Pages", "Snippet"}, rows)

	if hidden := len(items) - shown; hidden > 0 {
		out += fmt.Sprintf("\n\n%d more documents not shown. Increase --max-display, use --offset %d, or narrow the query.",
			hidden, r.Offset+r.Max)
	}
	return out
}
