package guide

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/format"
	"github.com/briangreenhill/ramcp/plugins"
)

const (
	TOCURI          = "riksarkivet://contents/table_of_contents"
	SectionTemplate = "riksarkivet://guide/{filename}"
	sectionPrefix   = "riksarkivet://guide/"
	markdownMIME    = "text/markdown"
)

// Plugin implements the plugins.Plugin interface for the research guide
type Plugin struct {
	lib    *Library
	logger zerolog.Logger
}

func NewPlugin(lib *Library, logger zerolog.Logger) *Plugin {
	return &Plugin{lib: lib, logger: logger}
}

func (p *Plugin) Name() string { return "guide" }

func (p *Plugin) Description() string {
	return "Historical guides to Riksarkivet's archival sources (markdown resources)"
}

func (p *Plugin) Default() bool { return true }

func (p *Plugin) Register(s *mcpsrv.MCPServer) {
	s.AddResource(
		mcplib.NewResource(TOCURI, "table_of_contents",
			mcplib.WithResourceDescription("Table of contents (Innehållsförteckning) of the Riksarkivet historical guide"),
			mcplib.WithMIMEType(markdownMIME),
		),
		p.readTableOfContents,
	)
	s.AddResourceTemplate(
		mcplib.NewResourceTemplate(SectionTemplate, "guide_section",
			mcplib.WithTemplateDescription("A section of the historical guide by filename, e.g. 01_Domstolar.md"),
			mcplib.WithTemplateMIMEType(markdownMIME),
		),
		p.readSection,
	)
	for _, t := range p.Tools() {
		s.AddTool(t.Tool, t.Handler)
	}
}

func (p *Plugin) Tools() []mcpsrv.ServerTool {
	tool := mcplib.NewTool("list_guides",
		mcplib.WithDescription("List the sections of the Riksarkivet historical guide with the resource URI of each."),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return []mcpsrv.ServerTool{{Tool: tool, Handler: p.handleListGuides}}
}

func (p *Plugin) readTableOfContents(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	text, err := p.lib.Load(TableOfContents)
	if err != nil {
		p.logger.Error().Err(err).Str("source", p.lib.Source()).Msg("table of contents unavailable")
		text = format.ErrorMessage("Table of contents file not found",
			"Check if the "+TableOfContents+" file exists",
			"Verify the GUIDE_DIR path is correct",
		)
	}
	return textContents(req.Params.URI, text), nil
}

func (p *Plugin) readSection(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	filename := SectionFilename(req.Params.URI)
	text, err := p.lib.Load(filename)
	if err != nil {
		p.logger.Warn().Err(err).Str("filename", filename).Msg("guide section unavailable")
		text = SectionError(filename, err)
	}
	return textContents(req.Params.URI, text), nil
}

func (p *Plugin) handleListGuides(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	sections, err := p.lib.Sections()
	if err != nil {
		return plugins.ResultError(errs.Envelope("Failed to list guide sections", err)), nil
	}

	var b strings.Builder
	b.WriteString("📑 Riksarkivet historical guide sections:\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "\n- %s: %s\n  %s%s", s.Filename, s.Title, sectionPrefix, s.Filename)
	}
	fmt.Fprintf(&b, "\n\nStart with %s for an overview.", TOCURI)
	return plugins.ResultText(b.String()), nil
}

// SectionFilename extracts the filename from a section URI.
func SectionFilename(uri string) string {
	name := strings.TrimPrefix(uri, sectionPrefix)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// SectionError renders the envelope for a failed section read.
func SectionError(filename string, err error) string {
	var (
		invalid  *errs.InvalidParameterError
		notFound *errs.NotFoundError
	)
	switch {
	case errors.As(err, &invalid):
		return format.ErrorMessage("Invalid filename format", "Filename must end with .md extension")
	case errors.As(err, &notFound):
		return format.ErrorMessage(fmt.Sprintf("Guide section '%s' not found", filename),
			"Check the filename spelling",
			"Use the table_of_contents resource to see available sections",
			"Ensure the filename includes .md extension",
		)
	}
	return format.ErrorMessage(fmt.Sprintf("Failed to load guide content '%s': %v", filename, err),
		"Check file permissions",
		"Verify file encoding is UTF-8",
	)
}

func textContents(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{URI: uri, MIMEType: markdownMIME, Text: text},
	}
}

var _ plugins.Plugin = (*Plugin)(nil)
