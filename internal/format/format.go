// Package format holds the text helpers shared by every tool formatter:
// keyword highlighting, page-number normalization, the error envelope and
// response size limiting.
package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// BildvisningBaseURL is the Riksarkivet image viewer.
const BildvisningBaseURL = "https://sok.riksarkivet.se/bildvisning"

// TruncationNotice is appended when a response exceeds its token budget.
const TruncationNotice = "\n\n[Response truncated due to size limits]"

var boldMarkers = regexp.MustCompile(`\*\*[^*]+\*\*`)

// ErrorMessage renders the uniform error envelope.
func ErrorMessage(message string, suggestions ...string) string {
	var b strings.Builder
	b.WriteString("⚠️ **Error**: ")
	b.WriteString(message)
	if len(suggestions) > 0 {
		b.WriteString("\n\n**Suggestions**:")
		for _, s := range suggestions {
			b.WriteString("\n- ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// Highlight wraps case-insensitive occurrences of keyword in markdown bold.
// Text that already carries bold markers is returned unchanged.
func Highlight(text, keyword string) string {
	if boldMarkers.MatchString(text) {
		return text
	}
	if strings.TrimSpace(keyword) == "" {
		return text
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(keyword))
	if err != nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return "**" + m + "**"
	})
}

// TrimPageNumber turns a page identifier such as "_00012" or
// "_H0000459_00005" into its display form ("12", "5"). At least one digit
// is always kept.
func TrimPageNumber(pageID string) string {
	last := pageID
	if i := strings.LastIndex(pageID, "_"); i >= 0 {
		last = pageID[i+1:]
	}
	trimmed := strings.TrimLeft(last, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// PageNumber is TrimPageNumber parsed as an integer.
func PageNumber(pageID string) (int, error) {
	n, err := strconv.Atoi(TrimPageNumber(pageID))
	if err != nil {
		return 0, fmt.Errorf("page id %q: %w", pageID, err)
	}
	return n, nil
}

// BildvisarenURL converts a IIIF manifest URL of the form
// .../arkis!R0002497/manifest into the image viewer URL. It returns "" when
// the URL does not have that shape.
func BildvisarenURL(manifestURL string) string {
	const marker = "arkis!"
	start := strings.Index(manifestURL, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)
	end := strings.Index(manifestURL[start:], "/manifest")
	if end <= 0 {
		return ""
	}
	return BildvisningBaseURL + "/" + manifestURL[start:start+end]
}

// EstimateTokens uses the four-characters-per-token rule of thumb.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// LimitTokens truncates text that is estimated to exceed maxTokens.
// A non-positive budget disables the limit.
func LimitTokens(text string, maxTokens int) string {
	cut := TruncationPoint(text, maxTokens)
	if cut == len(text) {
		return text
	}
	return text[:cut] + TruncationNotice
}

// TruncationPoint is the byte offset LimitTokens cuts text at, or len(text)
// when text fits the budget.
func TruncationPoint(text string, maxTokens int) int {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return len(text)
	}
	cut := maxTokens * 4
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}

// Ellipsis shortens s to keep runes plus "..." when it is longer than limit runes.
func Ellipsis(s string, limit, keep int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	if keep > len(r) {
		keep = len(r)
	}
	return string(r[:keep]) + "..."
}

// Table renders a borderless plain-text table.
func Table(title string, headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := utf8.RuneCountInString(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	pad := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
		}
		return strings.Join(parts, " | ")
	}

	var lines []string
	if title != "" {
		lines = append(lines, title, "")
	}
	header := pad(headers)
	lines = append(lines, header, strings.Repeat("-", utf8.RuneCountInString(header)))
	for _, row := range rows {
		lines = append(lines, pad(row))
	}
	return strings.Join(lines, "\n")
}
