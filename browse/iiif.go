package browse

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/network"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

// Manifest is one entry of a IIIF collection.
type Manifest struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Collection is a IIIF collection reduced to its manifests.
type Collection struct {
	Title     string     `json:"title"`
	Manifests []Manifest `json:"manifests"`
	URL       string     `json:"collection_url"`
}

// IIIFClient reads IIIF Presentation collections.
type IIIFClient struct {
	http   Fetcher
	urls   URLs
	cache  cache.Store
	logger zerolog.Logger
}

func NewIIIFClient(f Fetcher, urls URLs, store cache.Store, logger zerolog.Logger) *IIIFClient {
	if store == nil {
		store = cache.Nop{}
	}
	return &IIIFClient{http: f, urls: urls.withDefaults(), cache: store, logger: logger}
}

// Collection loads a collection by PID or absolute URL.
func (c *IIIFClient) Collection(ctx context.Context, pidOrURL string) (col *Collection, err error) {
	u := pidOrURL
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = c.urls.CollectionURL(pidOrURL)
	}
	ctx, span := tracer.StartSpan(ctx, "iiif.Collection", tracer.StringAttr("iiif.url", u))
	defer func() { tracer.End(span, err) }()

	v, lookup, err := cache.Fetch(ctx, c.cache, cache.IIIF, cache.Params{"url": u}, func(ctx context.Context) (Collection, error) {
		body, err := c.http.Get(ctx, "iiif", u, nil, "application/json")
		if network.IsStatus(err, http.StatusNotFound) {
			return Collection{}, errs.NotFound("IIIF collection", pidOrURL)
		}
		if err != nil {
			return Collection{}, err
		}
		col, err := ParseCollection(body)
		if err != nil {
			return Collection{}, &errs.RemoteAPIError{Op: "iiif", URL: u, Status: http.StatusOK, Err: err}
		}
		col.URL = u
		return *col, nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.StringAttr("cache.status", lookup.Status.String()), tracer.IntAttr("iiif.manifests", len(v.Manifests)))
	return &v, nil
}

type rawCollection struct {
	Label json.RawMessage `json:"label"`
	Items []struct {
		ID    string          `json:"id"`
		Type  string          `json:"type"`
		Label json.RawMessage `json:"label"`
	} `json:"items"`
	// Presentation API 2
	Manifests []struct {
		ID    string          `json:"@id"`
		Label json.RawMessage `json:"label"`
	} `json:"manifests"`
}

// ParseCollection accepts Presentation API 3 (items of type Manifest) and
// 2 (manifests) documents.
func ParseCollection(data []byte) (*Collection, error) {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	col := &Collection{Title: Label(raw.Label, "Unknown Collection")}
	for _, it := range raw.Items {
		if it.Type != "Manifest" {
			continue
		}
		col.Manifests = append(col.Manifests, Manifest{ID: manifestIDFromURL(it.ID), Label: Label(it.Label, "Untitled"), URL: it.ID})
	}
	for _, it := range raw.Manifests {
		col.Manifests = append(col.Manifests, Manifest{ID: manifestIDFromURL(it.ID), Label: Label(it.Label, "Untitled"), URL: it.ID})
	}
	return col, nil
}

// manifestIDFromURL takes the segment before "/manifest", or the last
// segment for other URLs.
func manifestIDFromURL(u string) string {
	trimmed := strings.TrimRight(u, "/")
	if strings.Contains(trimmed, "/manifest") {
		trimmed = trimmed[:strings.LastIndex(trimmed, "/manifest")]
	}
	id := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if id == "" {
		return u
	}
	return RemoveArkisPrefix(id)
}

// Label reads a IIIF label: a plain string, a language map (sv, then en,
// then none, then any language) or a list.
func Label(raw json.RawMessage, def string) string {
	if len(raw) == 0 {
		return def
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return orDefault(s, def)
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		if len(list) > 0 {
			return list[0]
		}
		return def
	}
	var byLang map[string]json.RawMessage
	if json.Unmarshal(raw, &byLang) != nil || len(byLang) == 0 {
		return def
	}
	for _, lang := range []string{"sv", "en", "none"} {
		if v, ok := byLang[lang]; ok {
			return Label(v, def)
		}
	}
	// deterministic pick among the remaining languages
	first := ""
	for lang := range byLang {
		if first == "" || lang < first {
			first = lang
		}
	}
	return Label(byLang[first], def)
}
