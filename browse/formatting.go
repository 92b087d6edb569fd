package browse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/briangreenhill/ramcp/internal/format"
	"github.com/briangreenhill/ramcp/internal/session"
)

const (
	maxDescriptionLen = 200
	ruleWidth         = 40
)

// PageItemID identifies a page for session dedup.
func PageItemID(ref string, page int) string {
	return ref + ":" + strconv.Itoa(page)
}

// ItemIDs returns the dedup ids of every loaded page.
func (r *Result) ItemIDs() []string {
	ids := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		ids[i] = PageItemID(r.ReferenceCode, p.PageNumber)
	}
	return ids
}

// FormatResult renders r as plain text. Pages whose id is in stubbed are
// reduced to a one-line stub. The output is empty when there is nothing
// to show, neither pages nor metadata.
func FormatResult(r *Result, highlight string, stubbed map[string]bool) string {
	if len(r.Pages) == 0 {
		if r.Metadata == nil {
			return ""
		}
		return formatNonDigitised(r)
	}

	var lines []string
	lines = append(lines, "📚 Document: "+r.ReferenceCode)
	if r.Metadata != nil {
		lines = appendMetadata(lines, r.Metadata, r.ReferenceCode)
	}

	reseen := 0
	for _, p := range r.Pages {
		if stubbed[PageItemID(r.ReferenceCode, p.PageNumber)] {
			reseen++
		}
	}
	if reseen > 0 {
		lines = append(lines, fmt.Sprintf("📖 Pages loaded: %d (%d new, %d previously shown)", len(r.Pages), len(r.Pages)-reseen, reseen))
	} else {
		lines = append(lines, fmt.Sprintf("📖 Pages loaded: %d", len(r.Pages)))
	}
	lines = append(lines, "")

	for _, p := range r.Pages {
		id := PageItemID(r.ReferenceCode, p.PageNumber)
		if stubbed[id] {
			lines = append(lines, session.Stub(id), "")
			continue
		}

		lines = append(lines, fmt.Sprintf("📄 Page %d", p.PageNumber), strings.Repeat("─", ruleWidth))
		if strings.TrimSpace(p.Text) != "" {
			text := p.Text
			if highlight != "" {
				text = format.Highlight(text, highlight)
			}
			lines = append(lines, text)
		} else {
			lines = append(lines, "(Empty page - no transcribed text)")
		}

		lines = append(lines, "", "🔗 Links:", "  📝 ALTO XML: "+p.ALTOURL)
		if p.ImageURL != "" {
			lines = append(lines, "  🖼️  Image: "+p.ImageURL)
		}
		if p.BildvisningURL != "" {
			lines = append(lines, "  👁️  Bildvisning: "+p.BildvisningURL)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func formatNonDigitised(r *Result) string {
	md := r.Metadata
	lines := []string{
		"⚠️ This material is not digitised or transcribed - no page images or text available.",
		"Showing metadata only:",
		"",
		"📄 Reference Code: " + r.ReferenceCode,
	}
	if md.Title != "" && md.Title != "(No title)" {
		lines = append(lines, "📋 Title: "+md.Title)
	}
	if md.UnitDate != "" {
		lines = append(lines, "📅 Date Range: "+md.UnitDate)
	}
	if md.Repository != "" {
		lines = append(lines, "🏛️  Repository: "+md.Repository)
	}
	if md.UnitID != "" && md.UnitID != r.ReferenceCode {
		lines = append(lines, "🔖 Unit ID: "+md.UnitID)
	}
	if md.Description != "" {
		lines = append(lines, "📝 Description: "+md.Description)
	}
	if md.NADLink != "" {
		lines = append(lines, "🔗 View Online: "+md.NADLink)
	}
	if md.IIIFManifest != "" {
		if viewer := format.BildvisarenURL(md.IIIFManifest); viewer != "" {
			lines = append(lines, "🖼️  View Images: "+viewer)
		} else {
			lines = append(lines, "🖼️  IIIF Manifest: "+md.IIIFManifest)
		}
	}
	if md.IIIFImage != "" {
		lines = append(lines, "🎨 Preview Image: "+md.IIIFImage)
	}
	return strings.Join(lines, "\n")
}

func appendMetadata(lines []string, md *Metadata, ref string) []string {
	if md.Title != "" && md.Title != "(No title)" {
		lines = append(lines, "📋 Title: "+md.Title)
	}
	if md.UnitDate != "" {
		lines = append(lines, "📅 Date Range: "+md.UnitDate)
	}
	if md.Repository != "" {
		lines = append(lines, "🏛️  Repository: "+md.Repository)
	}
	if md.UnitID != "" && md.UnitID != ref {
		lines = append(lines, "🔖 Unit ID: "+md.UnitID)
	}
	if md.Description != "" {
		lines = append(lines, "📝 "+format.Ellipsis(md.Description, maxDescriptionLen, maxDescriptionLen-3))
	}
	if md.NADLink != "" {
		lines = append(lines, "🔗 NAD Link: "+md.NADLink)
	}
	return lines
}
