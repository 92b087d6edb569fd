package browse

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

const xmlAccept = "application/xml, text/xml, */*"

// Fetcher is the subset of the shared HTTP client the browse clients use.
type Fetcher interface {
	Get(ctx context.Context, op, rawURL string, params url.Values, accept string) ([]byte, error)
	GetOptional(ctx context.Context, op, rawURL string, params url.Values, accept string) ([]byte, error)
}

// errNoALTO marks a page without a transcription file. It never leaves
// the package and keeps missing pages out of the cache.
var errNoALTO = errors.New("alto file not found")

// ALTOClient fetches page transcriptions.
type ALTOClient struct {
	http   Fetcher
	cache  cache.Store
	logger zerolog.Logger
}

func NewALTOClient(f Fetcher, store cache.Store, logger zerolog.Logger) *ALTOClient {
	if store == nil {
		store = cache.Nop{}
	}
	return &ALTOClient{http: f, cache: store, logger: logger}
}

// Fetch returns the text of the ALTO file at altoURL. found is false when
// the file does not exist or cannot be parsed; a blank page is found with
// empty text.
func (c *ALTOClient) Fetch(ctx context.Context, altoURL string) (text string, found bool, err error) {
	ctx, span := tracer.StartSpan(ctx, "alto.Fetch", tracer.StringAttr("alto.url", altoURL))
	defer func() { tracer.End(span, err) }()

	text, lookup, err := cache.Fetch(ctx, c.cache, cache.ALTO, cache.Params{"url": altoURL}, func(ctx context.Context) (string, error) {
		body, err := c.http.GetOptional(ctx, "alto", altoURL, nil, xmlAccept)
		if err != nil {
			return "", err
		}
		if body == nil {
			return "", errNoALTO
		}
		text, err := ExtractText(body)
		if err != nil {
			c.logger.Warn().Err(err).Str("url", altoURL).Msg("unparseable ALTO XML")
			return "", errNoALTO
		}
		return text, nil
	})
	if errors.Is(err, errNoALTO) {
		span.SetAttributes(tracer.StringAttr("alto.result", "not_found"))
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	result := "success"
	if text == "" {
		result = "empty"
	}
	span.SetAttributes(
		tracer.StringAttr("alto.result", result),
		tracer.StringAttr("cache.status", lookup.Status.String()),
		tracer.IntAttr("alto.text_length", len(text)),
	)
	return text, true, nil
}

// ExtractText joins the CONTENT of every ALTO String element with single
// spaces. Any ALTO namespace version is accepted. Documents without String
// elements are read as PAGE XML, taking the TextEquiv/Unicode of each
// TextLine.
func ExtractText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		words []string
		lines []string
		stack []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			switch t.Name.Local {
			case "String":
				if v := strings.TrimSpace(attr(t, "CONTENT")); v != "" {
					words = append(words, v)
				}
			case "Unicode":
				if len(stack) >= 3 && stack[len(stack)-2] == "TextEquiv" && stack[len(stack)-3] == "TextLine" {
					s, err := innerText(dec)
					if err != nil {
						return "", err
					}
					stack = stack[:len(stack)-1]
					if s != "" {
						lines = append(lines, s)
					}
				}
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(words) > 0 {
		return strings.Join(words, " "), nil
	}
	return strings.Join(lines, " "), nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// innerText reads the character data up to the end of the element whose
// start tag was just consumed, collapsing whitespace.
func innerText(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}
