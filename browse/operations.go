// Package browse loads full page transcriptions of archival documents by
// reference code and renders them for the browse tool and CLI.
package browse

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

const (
	DefaultMaxPages = 20
	// maxProbeMisses is how many leading pages may be missing before a
	// document is treated as untranscribed.
	maxProbeMisses     = 3
	defaultConcurrency = 4
)

// Request selects pages of one document.
type Request struct {
	ReferenceCode string
	Pages         string
	HighlightTerm string
	MaxPages      int
}

// PageContext is one transcribed page. Text is empty for blank pages.
type PageContext struct {
	PageNumber     int
	PageID         string
	ReferenceCode  string
	Text           string
	ALTOURL        string
	ImageURL       string
	BildvisningURL string
}

// Result holds the pages found, in ascending page order. Metadata is nil
// when the reference code is unknown; Pages is empty for material that is
// not digitised.
type Result struct {
	ReferenceCode  string
	PagesRequested string
	ManifestID     string
	Metadata       *Metadata
	Pages          []PageContext
}

// Operations runs browse requests.
type Operations struct {
	alto        *ALTOClient
	oai         *OAIClient
	iiif        *IIIFClient
	urls        URLs
	concurrency int
	logger      zerolog.Logger
}

type Option func(*options)

type options struct {
	urls        URLs
	store       cache.Store
	logger      zerolog.Logger
	concurrency int
}

func WithURLs(u URLs) Option {
	return func(o *options) { o.urls = u }
}

// WithCache enables response caching; nil disables it.
func WithCache(s cache.Store) Option {
	return func(o *options) { o.store = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConcurrency bounds parallel page fetches.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func NewOperations(f Fetcher, opts ...Option) *Operations {
	o := options{logger: zerolog.Nop(), concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	urls := o.urls.withDefaults()
	return &Operations{
		alto:        NewALTOClient(f, o.store, o.logger),
		oai:         NewOAIClient(f, urls.OAI, o.store, o.logger),
		iiif:        NewIIIFClient(f, urls, o.store, o.logger),
		urls:        urls,
		concurrency: o.concurrency,
		logger:      o.logger,
	}
}

// URLs returns the endpoints links are generated from.
func (o *Operations) URLs() URLs { return o.urls }

// Browse loads metadata for req.ReferenceCode and then the requested pages.
func (o *Operations) Browse(ctx context.Context, req Request) (res *Result, err error) {
	ref := strings.TrimSpace(req.ReferenceCode)
	if ref == "" {
		return nil, errs.Invalid("reference_code", "must not be empty")
	}
	if req.MaxPages < 0 {
		return nil, errs.Invalid("max_pages", "must not be negative, got %d", req.MaxPages)
	}
	maxPages := req.MaxPages
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}
	pages, err := ParsePageRange(req.Pages, MaxPageNumber)
	if err != nil {
		return nil, err
	}
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}

	ctx, span := tracer.StartSpan(ctx, "browse.Browse",
		tracer.StringAttr("browse.reference_code", ref),
		tracer.StringAttr("browse.pages_requested", req.Pages),
	)
	defer func() { tracer.End(span, err) }()

	res = &Result{ReferenceCode: ref, PagesRequested: req.Pages}
	md, err := o.oai.GetMetadata(ctx, ref)
	var notFound *errs.NotFoundError
	if errors.As(err, &notFound) {
		o.logger.Info().Str("reference_code", ref).Msg("reference code not found")
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.Metadata = md

	res.ManifestID, err = o.resolveManifest(ctx, md)
	if err != nil {
		return nil, err
	}
	if res.ManifestID == "" {
		span.SetAttributes(tracer.IntAttr("browse.pages_returned", 0))
		return res, nil
	}

	res.Pages, err = o.fetchPages(ctx, res.ManifestID, ref, req.HighlightTerm, pages)
	if err != nil {
		return nil, err
	}

	empty := 0
	for _, p := range res.Pages {
		if p.Text == "" {
			empty++
		}
	}
	span.SetAttributes(
		tracer.StringAttr("browse.manifest_id", res.ManifestID),
		tracer.IntAttr("browse.pages_returned", len(res.Pages)),
		tracer.IntAttr("browse.empty_pages", empty),
	)
	o.logger.Info().
		Str("reference_code", ref).
		Str("manifest_id", res.ManifestID).
		Int("requested", len(pages)).
		Int("loaded", len(res.Pages)).
		Int("empty", empty).
		Msg("browse completed")
	return res, nil
}

// resolveManifest derives the manifest id from the NAD link, else from the
// IIIF manifest URL. A collection URL is resolved to its first manifest.
// An empty id means the material is not digitised.
func (o *Operations) resolveManifest(ctx context.Context, md *Metadata) (string, error) {
	if id := md.NADManifestID(); id != "" {
		return id, nil
	}
	if md.IIIFManifest == "" {
		return "", nil
	}
	if !strings.Contains(md.IIIFManifest, "/collection/") {
		return manifestIDFromURL(md.IIIFManifest), nil
	}

	col, err := o.iiif.Collection(ctx, md.IIIFManifest)
	var notFound *errs.NotFoundError
	if errors.As(err, &notFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(col.Manifests) == 0 {
		return "", nil
	}
	return col.Manifests[0].ID, nil
}

// fetchPages probes pages in order until one exists, giving up after
// maxProbeMisses misses with nothing found, then loads the rest
// concurrently. Missing pages are dropped; order is preserved.
func (o *Operations) fetchPages(ctx context.Context, manifestID, ref, term string, pages []int) ([]PageContext, error) {
	var found []PageContext
	misses := 0
	next := len(pages)
	for i, n := range pages {
		pc, err := o.page(ctx, manifestID, ref, term, n)
		if err != nil {
			return nil, err
		}
		if pc != nil {
			found = append(found, *pc)
			next = i + 1
			break
		}
		misses++
		if misses >= maxProbeMisses {
			o.logger.Debug().Str("reference_code", ref).Int("misses", misses).Msg("no ALTO files, treating as untranscribed")
			return nil, nil
		}
	}
	if len(found) == 0 {
		return nil, nil
	}

	rest := pages[next:]
	results := make([]*PageContext, len(rest))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, n := range rest {
		g.Go(func() error {
			pc, err := o.page(gctx, manifestID, ref, term, n)
			if err != nil {
				return err
			}
			results[i] = pc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, pc := range results {
		if pc != nil {
			found = append(found, *pc)
		}
	}
	return found, nil
}

// page loads one page. A missing page is nil. Remote failures on a single
// page are logged and the page skipped; only cancellation is returned.
func (o *Operations) page(ctx context.Context, manifestID, ref, term string, n int) (*PageContext, error) {
	page := strconv.Itoa(n)
	altoURL := o.urls.ALTOURL(manifestID, page)
	if altoURL == "" {
		return nil, nil
	}

	text, found, err := o.alto.Fetch(ctx, altoURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warn().Err(err).Str("reference_code", ref).Int("page", n).Msg("page fetch failed")
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	return &PageContext{
		PageNumber:     n,
		PageID:         page,
		ReferenceCode:  ref,
		Text:           text,
		ALTOURL:        altoURL,
		ImageURL:       o.urls.IIIFImageURL(manifestID, page),
		BildvisningURL: o.urls.BildvisningURL(manifestID, page, term),
	}, nil
}
