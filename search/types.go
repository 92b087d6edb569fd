package search

import "strings"

// ArchivalInstitution is a holding institution.
type ArchivalInstitution struct {
	Caption string `json:"caption"`
	URI     string `json:"uri"`
}

// HierarchyLevel is one level of the archival structure above a record.
type HierarchyLevel struct {
	Caption string `json:"caption"`
	URI     string `json:"uri"`
}

type Provenance struct {
	Caption string `json:"caption"`
	URI     string `json:"uri,omitempty"`
	Date    string `json:"date,omitempty"`
}

type Metadata struct {
	ReferenceCode          string                `json:"referenceCode"`
	Date                   string                `json:"date,omitempty"`
	Hierarchy              []HierarchyLevel      `json:"hierarchy,omitempty"`
	ArchivalInstitution    []ArchivalInstitution `json:"archivalInstitution,omitempty"`
	Provenance             []Provenance          `json:"provenance,omitempty"`
	Note                   string                `json:"note,omitempty"`
	OnlyDigitisedMaterials *bool                 `json:"onlyDigitisedMaterials,omitempty"`
}

// PageInfo identifies the page a snippet was found on. IDs look like "_00012".
type PageInfo struct {
	ID     string `json:"id"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Snippet is an excerpt around a keyword match. The API may already have
// wrapped the match in bold markers.
type Snippet struct {
	Text       string     `json:"text"`
	Score      float64    `json:"score"`
	Pages      []PageInfo `json:"pages"`
	Highlights []any      `json:"highlights,omitempty"`
}

type TranscribedText struct {
	NumTotal int       `json:"numTotal"`
	Snippets []Snippet `json:"snippets"`
}

type Links struct {
	Self   string   `json:"self,omitempty"`
	HTML   string   `json:"html,omitempty"`
	Image  []string `json:"image,omitempty"`
	RDFXML string   `json:"rdf/xml,omitempty"`
	JSONLD string   `json:"json-ld,omitempty"`
	EADRA  string   `json:"ead/ra,omitempty"`
	EADAPE string   `json:"ead/ape,omitempty"`
}

// Record is one search hit, usually a volume.
type Record struct {
	ID              string           `json:"id"`
	ObjectType      string           `json:"objectType"`
	Type            string           `json:"type"`
	Caption         string           `json:"caption,omitempty"`
	Metadata        Metadata         `json:"metadata"`
	TranscribedText *TranscribedText `json:"transcribedText,omitempty"`
	Links           *Links           `json:"_links,omitempty"`
}

// Title returns the caption or "(No title)".
func (r *Record) Title() string {
	if strings.TrimSpace(r.Caption) == "" {
		return "(No title)"
	}
	return r.Caption
}

// TotalHits is the number of matches in the record, which may exceed the
// snippets returned.
func (r *Record) TotalHits() int {
	if r.TranscribedText == nil {
		return 0
	}
	return r.TranscribedText.NumTotal
}

func (r *Record) Snippets() []Snippet {
	if r.TranscribedText == nil {
		return nil
	}
	return r.TranscribedText.Snippets
}

func (r *Record) SnippetCount() int {
	return len(r.Snippets())
}

// ManifestURL returns the first IIIF manifest link, if any.
func (r *Record) ManifestURL() string {
	if r.Links == nil || len(r.Links.Image) == 0 {
		return ""
	}
	return r.Links.Image[0]
}

// CollectionURL is the IIIF collection of the record.
func (r *Record) CollectionURL() string {
	return "https://lbiiif.riksarkivet.se/arkis/" + r.ID
}

// DocumentID identifies the record for pagination and dedup.
func (r *Record) DocumentID() string {
	if r.Metadata.ReferenceCode != "" {
		return r.Metadata.ReferenceCode
	}
	return r.ID
}

// RecordsResponse is the /api/records payload. Item and snippet order is
// the API's and is never changed.
type RecordsResponse struct {
	Items     []Record          `json:"items"`
	TotalHits int               `json:"totalHits"`
	Hits      int               `json:"hits,omitempty"`
	Offset    int               `json:"offset,omitempty"`
	Facets    []map[string]any  `json:"facets,omitempty"`
	Links     map[string]string `json:"_links,omitempty"`
}

// Result is a response together with the query that produced it.
type Result struct {
	Response *RecordsResponse
	Keyword  string
	Max      int
	Offset   int
	// Transcribed is true for transcribed-text searches.
	Transcribed bool
}

func (r *Result) Items() []Record { return r.Response.Items }

func (r *Result) TotalHits() int { return r.Response.TotalHits }

func (r *Result) CountSnippets() int { return CountSnippets(r.Response) }
