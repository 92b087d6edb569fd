package browse

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const arkisPrefix = "arkis!"

// URLs holds the remote endpoints page links are built from.
type URLs struct {
	OAI         string
	IIIF        string
	Collection  string
	ALTO        string
	Bildvisning string
}

// DefaultURLs returns the public Riksarkivet endpoints.
func DefaultURLs() URLs {
	return URLs{
		OAI:         "https://oai-pmh.riksarkivet.se/OAI",
		IIIF:        "https://lbiiif.riksarkivet.se",
		Collection:  "https://lbiiif.riksarkivet.se/collection/arkiv",
		ALTO:        "https://sok.riksarkivet.se/dokument/alto",
		Bildvisning: "https://sok.riksarkivet.se/bildvisning",
	}
}

// withDefaults fills empty fields from DefaultURLs.
func (u URLs) withDefaults() URLs {
	d := DefaultURLs()
	if u.OAI == "" {
		u.OAI = d.OAI
	}
	if u.IIIF == "" {
		u.IIIF = d.IIIF
	}
	if u.Collection == "" {
		u.Collection = d.Collection
	}
	if u.ALTO == "" {
		u.ALTO = d.ALTO
	}
	if u.Bildvisning == "" {
		u.Bildvisning = d.Bildvisning
	}
	return u
}

// RemoveArkisPrefix strips a leading "arkis!" from an identifier.
func RemoveArkisPrefix(id string) string {
	return strings.TrimPrefix(id, arkisPrefix)
}

// FormatPageNumber pads a page number to five digits: "7" and "_7" both
// become "00007".
func FormatPageNumber(page string) string {
	clean := strings.TrimLeft(page, "_")
	if n, err := strconv.Atoi(clean); err == nil && n >= 0 {
		return fmt.Sprintf("%05d", n)
	}
	if len(clean) < 5 {
		return strings.Repeat("0", 5-len(clean)) + clean
	}
	return clean
}

// ALTOURL returns {alto}/{first4}/{id}/{id}_{page}.xml, or "" when the
// manifest id is too short to shard.
func (u URLs) ALTOURL(manifestID, page string) string {
	id := RemoveArkisPrefix(manifestID)
	if len(id) < 4 {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/%s_%s.xml", u.ALTO, id[:4], id, id, FormatPageNumber(page))
}

// IIIFImageURL returns the full-size JPEG for a page.
func (u URLs) IIIFImageURL(pid, page string) string {
	return fmt.Sprintf("%s/arkis!%s_%s/full/max/0/default.jpg", u.IIIF, RemoveArkisPrefix(pid), FormatPageNumber(page))
}

// BildvisningURL links a page in the image viewer, highlighting term when
// one is given.
func (u URLs) BildvisningURL(pid, page, term string) string {
	base := fmt.Sprintf("%s/%s_%s", u.Bildvisning, RemoveArkisPrefix(pid), FormatPageNumber(page))
	term = strings.TrimSpace(term)
	if term == "" {
		return base
	}
	return base + "#?q=" + strings.ReplaceAll(url.PathEscape(term), "%2F", "/")
}

func (u URLs) CollectionURL(pid string) string {
	return u.Collection + "/" + RemoveArkisPrefix(pid)
}

// ManifestURL returns the manifest for manifestID, or the conventional
// first manifest of pid when manifestID is empty.
func (u URLs) ManifestURL(pid, manifestID string) string {
	if manifestID != "" {
		return u.IIIF + "/" + manifestID + "/manifest"
	}
	return u.IIIF + "/" + RemoveArkisPrefix(pid) + "_001/manifest"
}
