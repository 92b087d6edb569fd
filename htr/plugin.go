package htr

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/plugins"
)

var transcribeFailedSuggestions = []string{
	"Check that the image URLs are publicly reachable",
	"Try again later; the HTR Space may be starting up",
}

// Plugin implements the plugins.Plugin interface for HTR transcription
type Plugin struct {
	client *Client
	logger zerolog.Logger
}

func NewPlugin(client *Client, logger zerolog.Logger) *Plugin {
	return &Plugin{client: client, logger: logger}
}

func (p *Plugin) Name() string { return "htr" }

func (p *Plugin) Description() string {
	return "Handwritten text recognition of document images via the HTRflow Space"
}

// Default is false: jobs are slow and run on a shared remote Space.
func (p *Plugin) Default() bool { return false }

func (p *Plugin) Register(s *mcpsrv.MCPServer) {
	for _, t := range p.Tools() {
		s.AddTool(t.Tool, t.Handler)
	}
}

func (p *Plugin) Tools() []mcpsrv.ServerTool {
	tool := mcplib.NewTool("htr_transcribe",
		mcplib.WithDescription("Transcribe handwritten document images and return file URLs: viewer_url (interactive gallery with polygon overlays), pages_url (per-page lines with confidence) and export_url (ALTO XML, PAGE XML or JSON)."),
		mcplib.WithArray("image_urls",
			mcplib.Required(),
			mcplib.Description("Full http(s) URLs of the page images to process"),
			mcplib.WithStringItems(),
		),
		mcplib.WithString("language",
			mcplib.Description("Document language"),
			mcplib.Enum(Languages...),
			mcplib.DefaultString("swedish"),
		),
		mcplib.WithString("layout",
			mcplib.Description("Page layout: single_page or spread (two-page opening)"),
			mcplib.Enum(Layouts...),
			mcplib.DefaultString("single_page"),
		),
		mcplib.WithString("export_format",
			mcplib.Description("Archival export format"),
			mcplib.Enum(ExportFormats...),
			mcplib.DefaultString("alto_xml"),
		),
		mcplib.WithString("custom_yaml",
			mcplib.Description("Optional HTRflow YAML pipeline; overrides language and layout"),
		),
	)
	return []mcpsrv.ServerTool{{Tool: tool, Handler: p.handleTranscribe}}
}

func (p *Plugin) handleTranscribe(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	r := Request{ImageURLs: imageURLs(req)}
	r.Language, _ = plugins.StringArg(req, "language")
	r.Layout, _ = plugins.StringArg(req, "layout")
	r.ExportFormat, _ = plugins.StringArg(req, "export_format")
	r.CustomYAML, _ = plugins.StringArg(req, "custom_yaml")

	logger := p.logger.With().Str("request_id", uuid.NewString()).Str("session", plugins.SessionID(ctx)).Logger()
	logger.Info().Int("images", len(r.ImageURLs)).Str("language", r.Language).Msg("htr transcription requested")

	res, err := p.client.Transcribe(ctx, r)
	if err != nil {
		var invalid *errs.InvalidParameterError
		if errors.As(err, &invalid) {
			return plugins.ResultError(errs.Envelope("Invalid transcription request", err)), nil
		}
		logger.Error().Err(err).Msg("htr transcription failed")
		return plugins.ResultError(errs.Envelope("Transcription failed", err, transcribeFailedSuggestions...)), nil
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return plugins.ResultError(errs.Envelope("Transcription failed", err)), nil
	}
	logger.Info().Str("viewer_url", res.ViewerURL).Msg("htr transcription complete")
	return plugins.ResultText(string(out)), nil
}

// imageURLs accepts a list of strings or a single string.
func imageURLs(req mcplib.CallToolRequest) []string {
	switch v := req.GetArguments()["image_urls"].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

var _ plugins.Plugin = (*Plugin)(nil)
