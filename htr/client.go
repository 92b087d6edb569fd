// Package htr delegates handwritten text recognition to the remote HTRflow
// Gradio Space and exposes it as the htr_transcribe tool.
package htr

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

const (
	apiName      = "htr_transcribe"
	callPath     = "/gradio_api/call/" + apiName
	maxSSELine   = 1 << 20
	opTranscribe = "htr.transcribe"
)

var (
	Languages     = []string{"swedish", "norwegian", "english", "medieval"}
	Layouts       = []string{"single_page", "spread"}
	ExportFormats = []string{"alto_xml", "page_xml", "json"}
)

// Request is one transcription job.
type Request struct {
	ImageURLs    []string
	Language     string
	Layout       string
	ExportFormat string
	// CustomYAML is an HTRflow pipeline; it overrides Language and Layout.
	CustomYAML string
}

// Result holds the file URLs produced by the Space.
type Result struct {
	ViewerURL    string `json:"viewer_url"`
	PagesURL     string `json:"pages_url"`
	ExportURL    string `json:"export_url"`
	ExportFormat string `json:"export_format"`
}

// Doer is the part of the network client the Gradio calls need.
type Doer interface {
	PostJSON(ctx context.Context, op, rawURL string, in, out any) error
	Stream(ctx context.Context, op, rawURL, accept string) (io.ReadCloser, error)
}

// Client talks to the Gradio HTTP API of a Space.
type Client struct {
	http    Doer
	baseURL string
	logger  zerolog.Logger
}

func NewClient(d Doer, spaceURL string, logger zerolog.Logger) *Client {
	return &Client{http: d, baseURL: strings.TrimRight(spaceURL, "/"), logger: logger}
}

// withDefaults fills the defaults the Space itself applies.
func (r Request) withDefaults() Request {
	if r.Language == "" {
		r.Language = "swedish"
	}
	if r.Layout == "" {
		r.Layout = "single_page"
	}
	if r.ExportFormat == "" {
		r.ExportFormat = "alto_xml"
	}
	return r
}

// Validate checks a request before anything is sent.
func (r Request) Validate() error {
	if len(r.ImageURLs) == 0 {
		return errs.Invalid("image_urls", "at least one image URL is required")
	}
	for _, raw := range r.ImageURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errs.Invalid("image_urls", "%q is not an http(s) URL", raw)
		}
	}
	if !oneOf(r.Language, Languages) {
		return errs.Invalid("language", "must be one of %s", strings.Join(Languages, ", "))
	}
	if !oneOf(r.Layout, Layouts) {
		return errs.Invalid("layout", "must be one of %s", strings.Join(Layouts, ", "))
	}
	if !oneOf(r.ExportFormat, ExportFormats) {
		return errs.Invalid("export_format", "must be one of %s", strings.Join(ExportFormats, ", "))
	}
	if strings.TrimSpace(r.CustomYAML) != "" {
		var pipeline map[string]any
		if err := yaml.Unmarshal([]byte(r.CustomYAML), &pipeline); err != nil {
			return errs.Invalid("custom_yaml", "not valid YAML: %v", err)
		}
		if len(pipeline) == 0 {
			return errs.Invalid("custom_yaml", "must be a YAML mapping")
		}
	}
	return nil
}

// Transcribe submits the job and waits for its result on the event stream.
func (c *Client) Transcribe(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.StartSpan(ctx, opTranscribe,
		tracer.IntAttr("htr.images", len(req.ImageURLs)),
		tracer.StringAttr("htr.language", req.Language),
	)
	res, err := c.transcribe(ctx, req)
	tracer.End(span, err)
	return res, err
}

func (c *Client) transcribe(ctx context.Context, req Request) (*Result, error) {
	var custom any
	if strings.TrimSpace(req.CustomYAML) != "" {
		custom = req.CustomYAML
	}
	payload := map[string]any{
		"data": []any{req.ImageURLs, req.Language, req.Layout, req.ExportFormat, custom},
	}

	var queued struct {
		EventID string `json:"event_id"`
	}
	if err := c.http.PostJSON(ctx, opTranscribe, c.baseURL+callPath, payload, &queued); err != nil {
		return nil, err
	}
	if queued.EventID == "" {
		return nil, &errs.RemoteAPIError{Op: opTranscribe, URL: c.baseURL + callPath, Err: errors.New("no event_id in response")}
	}
	c.logger.Debug().Str("event_id", queued.EventID).Int("images", len(req.ImageURLs)).Msg("htr job queued")

	streamURL := c.baseURL + callPath + "/" + url.PathEscape(queued.EventID)
	body, err := c.http.Stream(ctx, opTranscribe, streamURL, "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := awaitComplete(body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errs.RemoteAPIError{Op: opTranscribe, URL: streamURL, Err: err}
	}
	return decodeResult(data)
}

// awaitComplete reads server-sent events until the job completes and
// returns the data of the complete event.
func awaitComplete(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	var event string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if done, payload, err := dispatch(event, data); done {
				return payload, err
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	// a final event without a trailing blank line
	if done, payload, err := dispatch(event, data); done {
		return payload, err
	}
	return "", errors.New("event stream ended without a result")
}

func dispatch(event string, data []string) (bool, string, error) {
	payload := strings.Join(data, "\n")
	switch event {
	case "complete":
		return true, payload, nil
	case "error":
		msg := strings.TrimSpace(payload)
		if msg == "" || msg == "null" {
			msg = "the Space reported an error"
		}
		return true, "", fmt.Errorf("transcription failed: %s", msg)
	}
	return false, "", nil
}

// decodeResult unpacks the first output of a complete event.
func decodeResult(data string) (*Result, error) {
	var outputs []json.RawMessage
	if err := json.Unmarshal([]byte(data), &outputs); err != nil || len(outputs) == 0 {
		return nil, &errs.RemoteAPIError{Op: opTranscribe, Err: fmt.Errorf("malformed result: %q", data)}
	}
	var res Result
	if err := json.Unmarshal(outputs[0], &res); err != nil {
		return nil, &errs.RemoteAPIError{Op: opTranscribe, Err: fmt.Errorf("malformed result: %w", err)}
	}
	return &res, nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
