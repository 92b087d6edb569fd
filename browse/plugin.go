package browse

import (
	"context"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/format"
	"github.com/briangreenhill/ramcp/internal/session"
	"github.com/briangreenhill/ramcp/internal/tracer"
	"github.com/briangreenhill/ramcp/plugins"
)

var browseFailedSuggestions = []string{
	"Check the reference code format",
	"Verify page numbers are valid",
	"Try with fewer pages",
}

// Plugin implements the plugins.Plugin interface for document browsing
type Plugin struct {
	ops     *Operations
	tracker *session.Tracker
	logger  zerolog.Logger
}

func NewPlugin(ops *Operations, tracker *session.Tracker, logger zerolog.Logger) *Plugin {
	if tracker == nil {
		tracker = session.NewTracker()
	}
	return &Plugin{ops: ops, tracker: tracker, logger: logger}
}

func (p *Plugin) Name() string { return "browse" }

func (p *Plugin) Description() string {
	return "Browse full page transcriptions of documents by reference code"
}

func (p *Plugin) Default() bool { return true }

func (p *Plugin) Register(s *mcpsrv.MCPServer) {
	for _, t := range p.Tools() {
		s.AddTool(t.Tool, t.Handler)
	}
}

func (p *Plugin) Tools() []mcpsrv.ServerTool {
	tool := mcplib.NewTool("browse_document",
		mcplib.WithDescription(`Browse specific pages of a document by reference code and view full transcriptions.

Returns the complete transcribed text of each page as it appears in the original (usually Swedish),
with links to the ALTO XML, the IIIF image and Riksarkivet's image viewer (bildvisaren).
Blank but digitised pages show "(Empty page - no transcribed text)". Material that is not
digitised returns its archival metadata only.

Pages already shown in this session are replaced by a one-line stub. Reference transcriptions
already in your context instead of browsing them again; pass dedup=false to force full text.

Examples: pages="5", pages="1-10", pages="5,7,9" with highlight_term="Stockholm".`),
		mcplib.WithString("reference_code",
			mcplib.Description("Document reference code from search results, e.g. SE/RA/420422/01"),
			mcplib.Required(),
		),
		mcplib.WithString("pages",
			mcplib.Description("Page specification: single (5), range (1-10) or list (5,7,9)"),
			mcplib.Required(),
		),
		mcplib.WithString("highlight_term",
			mcplib.Description("Keyword to highlight in the transcription"),
		),
		mcplib.WithNumber("max_pages",
			mcplib.Description("Maximum number of pages to retrieve (default 20)"),
		),
		mcplib.WithBoolean("dedup",
			mcplib.Description("Stub pages already shown in this session (default true)"),
		),
		mcplib.WithString("research_context",
			mcplib.Description("Brief summary of the user's research goal. Used for logging only"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return []mcpsrv.ServerTool{{Tool: tool, Handler: p.handleBrowse}}
}

func (p *Plugin) handleBrowse(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ref, _ := plugins.StringArg(req, "reference_code")
	pages, _ := plugins.StringArg(req, "pages")
	term, _ := plugins.StringArg(req, "highlight_term")
	dedup := plugins.BoolArg(req, "dedup", true)

	if ref == "" {
		return plugins.ResultError(format.ErrorMessage("reference_code must not be empty",
			"Provide a document reference code, e.g. 'SE/RA/420422/01'")), nil
	}
	if pages == "" {
		return plugins.ResultError(format.ErrorMessage("pages must not be empty",
			"Specify pages like '1-5', '1,3,5', or '7'")), nil
	}

	log := p.logger.With().Str("tool", "browse_document").Str("reference_code", ref).Str("pages", pages).Logger()
	if rc, _ := plugins.StringArg(req, "research_context"); rc != "" {
		log.Info().Str("research_context", rc).Msg("tool called")
	} else {
		log.Info().Msg("tool called")
	}

	ctx, span := tracer.StartSpan(ctx, "tool.browse_document", tracer.BoolAttr("dedup", dedup))
	defer span.End()

	res, err := p.ops.Browse(ctx, Request{
		ReferenceCode: ref,
		Pages:         pages,
		HighlightTerm: term,
		MaxPages:      plugins.IntArg(req, "max_pages", DefaultMaxPages),
	})
	if err != nil {
		tracer.RecordError(span, err)
		log.Error().Err(err).Msg("browse failed")
		return plugins.ResultError(errs.Envelope("Browse failed", err, browseFailedSuggestions...)), nil
	}

	if len(res.Pages) == 0 && res.Metadata == nil {
		tracer.SetOK(span)
		return plugins.ResultError(NoPagesMessage(res.ReferenceCode)), nil
	}

	scope := session.Scope(plugins.SessionID(ctx), "browse")
	ids := res.ItemIDs()
	_, stubbed := p.tracker.Partition(scope, ids, dedup)
	text := FormatResult(res, term, toSet(stubbed))
	p.tracker.MarkSeen(scope, ids...)

	tracer.SetOK(span)
	log.Info().Int("pages", len(res.Pages)).Int("stubbed", len(stubbed)).Msg("browse rendered")
	return plugins.ResultText(text), nil
}

// NoPagesMessage is the envelope for a document with neither pages nor metadata.
func NoPagesMessage(ref string) string {
	return format.ErrorMessage("Could not load pages for "+strings.TrimSpace(ref),
		"The pages might not have transcriptions",
		"Try different page numbers",
		"Check if the document is fully digitized",
	)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

var _ plugins.Plugin = (*Plugin)(nil)
