package browse

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

// MetadataPrefix is the EAD flavour requested from OAI-PMH.
const MetadataPrefix = "oai_ape_ead"

// Metadata is the archival description of one unit.
type Metadata struct {
	Identifier   string `json:"identifier"`
	Title        string `json:"title,omitempty"`
	UnitID       string `json:"unitid,omitempty"`
	Repository   string `json:"repository,omitempty"`
	NADLink      string `json:"nad_link,omitempty"`
	Datestamp    string `json:"datestamp,omitempty"`
	UnitDate     string `json:"unitdate,omitempty"`
	Description  string `json:"description,omitempty"`
	IIIFManifest string `json:"iiif_manifest,omitempty"`
	IIIFImage    string `json:"iiif_image,omitempty"`
}

// NADManifestID is the last path segment of the NAD link without its
// query string, or "" without a link.
func (m *Metadata) NADManifestID() string {
	if m == nil || m.NADLink == "" {
		return ""
	}
	link := strings.TrimRight(m.NADLink, "/")
	seg := link[strings.LastIndex(link, "/")+1:]
	seg, _, _ = strings.Cut(seg, "?")
	return seg
}

// OAIClient reads records from the OAI-PMH endpoint.
type OAIClient struct {
	http    Fetcher
	baseURL string
	cache   cache.Store
	logger  zerolog.Logger
}

func NewOAIClient(f Fetcher, baseURL string, store cache.Store, logger zerolog.Logger) *OAIClient {
	if baseURL == "" {
		baseURL = DefaultURLs().OAI
	}
	if store == nil {
		store = cache.Nop{}
	}
	return &OAIClient{http: f, baseURL: baseURL, cache: store, logger: logger}
}

// GetMetadata runs GetRecord for identifier. An unknown identifier yields
// *errs.NotFoundError; protocol errors yield *errs.RemoteAPIError.
func (c *OAIClient) GetMetadata(ctx context.Context, identifier string) (md *Metadata, err error) {
	ctx, span := tracer.StartSpan(ctx, "oai.GetMetadata", tracer.StringAttr("oai.identifier", identifier))
	defer func() { tracer.End(span, err) }()

	params := cache.Params{"identifier": identifier, "metadataPrefix": MetadataPrefix}
	v, lookup, err := cache.Fetch(ctx, c.cache, cache.Structure, params, func(ctx context.Context) (Metadata, error) {
		q := url.Values{}
		q.Set("verb", "GetRecord")
		q.Set("identifier", identifier)
		q.Set("metadataPrefix", MetadataPrefix)

		body, err := c.http.Get(ctx, "oai", c.baseURL, q, "application/xml")
		if err != nil {
			return Metadata{}, err
		}
		m, err := ParseRecord(body)
		if err != nil {
			return Metadata{}, c.wrap(identifier, err)
		}
		if m.Identifier == "" {
			m.Identifier = identifier
		}
		return *m, nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.StringAttr("cache.status", lookup.Status.String()))
	c.logger.Debug().Str("reference_code", identifier).Str("cache", lookup.Status.String()).Msg("oai metadata loaded")
	return &v, nil
}

func (c *OAIClient) wrap(identifier string, err error) error {
	var oe *oaiError
	if errors.As(err, &oe) && oe.Code == "idDoesNotExist" {
		return errs.NotFound("reference code", identifier)
	}
	if errors.Is(err, errNoRecord) {
		return errs.NotFound("reference code", identifier)
	}
	return &errs.RemoteAPIError{Op: "oai", URL: c.baseURL, Status: http.StatusOK, Err: err}
}

var errNoRecord = errors.New("no record found in OAI-PMH response")

type oaiError struct {
	Code    string
	Message string
}

func (e *oaiError) Error() string {
	return fmt.Sprintf("OAI-PMH Error [%s]: %s", e.Code, e.Message)
}

// ParseRecord extracts Metadata from a GetRecord response. EAD fields are
// matched anywhere below the ead element; the first non-empty value wins.
func ParseRecord(data []byte) (*Metadata, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		m                     Metadata
		record, header, ead   bool
		scopeDone             bool
		textLink, fallbackDAO string
	)

	setFirst := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse OAI-PMH response: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "error":
				if !record {
					msg, err := innerText(dec)
					if err != nil {
						return nil, err
					}
					if msg == "" {
						msg = "No error message"
					}
					return nil, &oaiError{Code: orDefault(attr(t, "code"), "unknown"), Message: msg}
				}
			case "record":
				record = true
			case "header":
				header = record && !ead
			case "identifier", "datestamp":
				if header {
					s, err := innerText(dec)
					if err != nil {
						return nil, err
					}
					if t.Name.Local == "identifier" {
						setFirst(&m.Identifier, s)
					} else {
						setFirst(&m.Datestamp, s)
					}
				}
			case "ead":
				ead = true
			case "unittitle", "unitid", "repository", "unitdate":
				if !ead {
					continue
				}
				s, err := innerText(dec)
				if err != nil {
					return nil, err
				}
				switch t.Name.Local {
				case "unittitle":
					setFirst(&m.Title, s)
				case "unitid":
					setFirst(&m.UnitID, s)
				case "repository":
					setFirst(&m.Repository, s)
				case "unitdate":
					setFirst(&m.UnitDate, s)
				}
			case "scopecontent":
				if ead && !scopeDone {
					s, err := paragraphs(dec)
					if err != nil {
						return nil, err
					}
					m.Description = s
					scopeDone = true
				}
			case "dao":
				if !ead {
					continue
				}
				href := attr(t, "href")
				switch attr(t, "role") {
				case "TEXT":
					setFirst(&textLink, href)
				case "MANIFEST":
					setFirst(&m.IIIFManifest, href)
				case "IMAGE":
					setFirst(&m.IIIFImage, href)
				}
				setFirst(&fallbackDAO, href)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "header":
				header = false
			case "ead":
				ead = false
			}
		}
	}

	if !record {
		return nil, errNoRecord
	}
	m.NADLink = orDefault(textLink, fallbackDAO)
	return &m, nil
}

// paragraphs joins the text of every p element inside the element whose
// start tag was just consumed.
func paragraphs(dec *xml.Decoder) (string, error) {
	var parts []string
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				s, err := innerText(dec)
				if err != nil {
					return "", err
				}
				if s != "" {
					parts = append(parts, s)
				}
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return strings.Join(parts, " "), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
