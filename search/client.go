// Package search queries the Riksarkivet records API and renders the hits
// for LLM and terminal consumption.
package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

const (
	DefaultBaseURL    = "https://data.riksarkivet.se/api/records"
	DefaultMaxResults = 25
	DefaultSort       = "relevance"
)

var sortOrders = map[string]bool{
	"relevance": true,
	"timeAsc":   true,
	"timeDesc":  true,
	"alphaAsc":  true,
	"alphaDesc": true,
}

// Fetcher performs GET requests. *network.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, op, rawURL string, params url.Values, accept string) ([]byte, error)
}

// Query holds the search parameters. Exactly one of Text and
// TranscribedText is sent; TranscribedText wins.
type Query struct {
	Text            string
	TranscribedText string
	Name            string
	Place           string
	OnlyDigitised   bool
	Max             int
	Offset          int
	Sort            string
	YearMin         *int
	YearMax         *int
	// MaxSnippetsPerRecord is applied client side; nil keeps every snippet.
	MaxSnippetsPerRecord *int
}

// Keyword is the term the query searches for.
func (q Query) Keyword() string {
	if q.TranscribedText != "" {
		return q.TranscribedText
	}
	return q.Text
}

// Validate checks the query and fills in defaults.
func (q *Query) Validate() error {
	q.Text = strings.TrimSpace(q.Text)
	q.TranscribedText = strings.TrimSpace(q.TranscribedText)
	q.Name = strings.TrimSpace(q.Name)
	q.Place = strings.TrimSpace(q.Place)

	if q.Text == "" && q.TranscribedText == "" && q.Name == "" && q.Place == "" {
		return errs.Invalid("keyword", "provide at least one of text, transcribed text, name or place")
	}
	if q.TranscribedText != "" && !q.OnlyDigitised {
		return errs.Invalid("only_digitised", "transcribed text search requires only digitised materials; search metadata instead to include all materials")
	}
	if q.Max < 0 {
		return errs.Invalid("max_results", "must not be negative, got %d", q.Max)
	}
	if q.Offset < 0 {
		return errs.Invalid("offset", "must not be negative, got %d", q.Offset)
	}
	if q.MaxSnippetsPerRecord != nil && *q.MaxSnippetsPerRecord < 0 {
		return errs.Invalid("max_snippets_per_record", "must not be negative, got %d", *q.MaxSnippetsPerRecord)
	}
	if q.Max == 0 {
		q.Max = DefaultMaxResults
	}
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if !sortOrders[q.Sort] {
		return errs.Invalid("sort", "must be one of relevance, timeAsc, timeDesc, alphaAsc, alphaDesc")
	}
	if q.YearMin != nil && q.YearMax != nil && *q.YearMin > *q.YearMax {
		return errs.Invalid("year_min", "%d is after year_max %d", *q.YearMin, *q.YearMax)
	}
	return nil
}

// Values returns the API query string parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("max", strconv.Itoa(q.Max))
	v.Set("offset", strconv.Itoa(q.Offset))
	v.Set("sort", q.Sort)
	if q.OnlyDigitised {
		v.Set("only_digitised_materials", "true")
	}
	if q.TranscribedText != "" {
		v.Set("transcribed_text", q.TranscribedText)
	} else if q.Text != "" {
		v.Set("text", q.Text)
	}
	if q.Name != "" {
		v.Set("name", q.Name)
	}
	if q.Place != "" {
		v.Set("place", q.Place)
	}
	if q.YearMin != nil {
		v.Set("year_min", strconv.Itoa(*q.YearMin))
	}
	if q.YearMax != nil {
		v.Set("year_max", strconv.Itoa(*q.YearMax))
	}
	return v
}

// cacheParams keys the raw response. Snippet limiting is not part of the
// key, since it runs after the cache.
func (q Query) cacheParams() cache.Params {
	p := cache.Params{}
	for k, vs := range q.Values() {
		if len(vs) > 0 {
			p[k] = vs[0]
		}
	}
	return p
}

type Client struct {
	http    Fetcher
	baseURL string
	cache   cache.Store
	logger  zerolog.Logger
}

type Option func(*Client)

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if raw != "" {
			c.baseURL = raw
		}
	}
}

// WithCache enables response caching; nil disables it.
func WithCache(s cache.Store) Option {
	return func(c *Client) {
		if s != nil {
			c.cache = s
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(f Fetcher, opts ...Option) *Client {
	c := &Client{
		http:    f,
		baseURL: DefaultBaseURL,
		cache:   cache.Nop{},
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search runs q, serving the raw response from cache when fresh.
func (c *Client) Search(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	searchType := "general"
	if q.TranscribedText != "" {
		searchType = "transcribed"
	}
	ctx, span := tracer.StartSpan(ctx, "search.Search",
		tracer.StringAttr("search.type", searchType),
		tracer.StringAttr("search.keyword", q.Keyword()),
		tracer.IntAttr("search.offset", q.Offset),
		tracer.IntAttr("search.max_results", q.Max),
	)
	var err error
	defer func() { tracer.End(span, err) }()

	raw, lookup, err := cache.Fetch(ctx, c.cache, cache.Search, q.cacheParams(), func(ctx context.Context) (json.RawMessage, error) {
		body, err := c.http.Get(ctx, "search", c.baseURL, q.Values(), "application/json")
		if err != nil {
			return nil, err
		}
		// never cache a body that does not decode
		var probe RecordsResponse
		if err := json.Unmarshal(body, &probe); err != nil {
			return nil, malformed(c.baseURL, err)
		}
		return json.RawMessage(body), nil
	})
	if err != nil {
		c.logger.Error().Err(err).Str("keyword", q.Keyword()).Msg("search failed")
		return nil, err
	}
	span.SetAttributes(tracer.StringAttr("cache.status", lookup.Status.String()))

	var resp RecordsResponse
	if err = json.Unmarshal(raw, &resp); err != nil {
		err = malformed(c.baseURL, err)
		return nil, err
	}
	if q.MaxSnippetsPerRecord != nil {
		LimitSnippets(&resp, *q.MaxSnippetsPerRecord)
	}

	c.logger.Info().
		Str("keyword", q.Keyword()).
		Str("type", searchType).
		Str("cache", lookup.Status.String()).
		Int("snippets", CountSnippets(&resp)).
		Int("records", len(resp.Items)).
		Int("total", resp.TotalHits).
		Msg("search completed")
	span.SetAttributes(tracer.IntAttr("search.total_hits", resp.TotalHits), tracer.IntAttr("search.result_count", len(resp.Items)))

	return &Result{
		Response:    &resp,
		Keyword:     q.Keyword(),
		Max:         q.Max,
		Offset:      q.Offset,
		Transcribed: q.TranscribedText != "",
	}, nil
}

func malformed(u string, err error) error {
	return &errs.RemoteAPIError{Op: "search", URL: u, Status: http.StatusOK, Err: err}
}
