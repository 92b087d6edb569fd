package search

import (
	"context"
	"errors"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/format"
	"github.com/briangreenhill/ramcp/internal/session"
	"github.com/briangreenhill/ramcp/internal/tracer"
	"github.com/briangreenhill/ramcp/plugins"
)

const (
	defMaxSnippets       = 3
	defMaxResponseTokens = 15000
)

var searchFailedSuggestions = []string{
	"Try a simpler search term",
	"Check if the service is available",
	"Reduce max_results",
}

// Plugin implements the plugins.Plugin interface for search
type Plugin struct {
	client  *Client
	tracker *session.Tracker
	logger  zerolog.Logger
}

// NewPlugin creates the search module. tracker may be shared with other modules.
func NewPlugin(client *Client, tracker *session.Tracker, logger zerolog.Logger) *Plugin {
	if tracker == nil {
		tracker = session.NewTracker()
	}
	return &Plugin{client: client, tracker: tracker, logger: logger}
}

func (p *Plugin) Name() string { return "search" }

func (p *Plugin) Description() string {
	return "Search transcribed text and metadata in Riksarkivet's collections"
}

func (p *Plugin) Default() bool { return true }

func (p *Plugin) Register(s *mcpsrv.MCPServer) {
	for _, t := range p.Tools() {
		s.AddTool(t.Tool, t.Handler)
	}
}

// Tools returns the module's MCP tools.
func (p *Plugin) Tools() []mcpsrv.ServerTool {
	return []mcpsrv.ServerTool{p.toolSearchTranscribed(), p.toolSearchMetadata()}
}

func (p *Plugin) toolSearchTranscribed() mcpsrv.ServerTool {
	tool := mcplib.NewTool("search_transcribed",
		mcplib.WithDescription(`Search for keywords in historical documents from the Swedish National Archives (Riksarkivet).

Returns matching volumes with page numbers and highlighted text snippets from AI-transcribed pages.
Supports Solr syntax: wildcards (troll*), fuzzy (Stockholm~1), proximity ("kyrka stöld"~10) and
grouped Boolean operators ((troll* OR häx*) AND (Stockholm OR Göteborg)). Always group Boolean
expressions with parentheses and quote multi-word phrases.

Documents already shown in this session are compacted to new pages or omitted. Prefer referencing
results already in your context; pass dedup=false to force full output.
Use browse_document to read full page transcriptions.`),
		mcplib.WithString("keyword",
			mcplib.Description("Search term or Solr query"),
			mcplib.Required(),
		),
		mcplib.WithNumber("offset",
			mcplib.Description("Starting position for pagination: 0, then 25, 50, ..."),
			mcplib.Required(),
		),
		mcplib.WithBoolean("transcribed_only",
			mcplib.Description("Search transcribed text (true) or metadata (false). Default true"),
		),
		mcplib.WithBoolean("only_digitised",
			mcplib.Description("Limit to digitised materials. Required for transcribed search. Default true"),
		),
		mcplib.WithNumber("max_results",
			mcplib.Description("Maximum documents per query (default 25)"),
		),
		mcplib.WithNumber("max_snippets_per_record",
			mcplib.Description("Maximum matching pages per document (default 3)"),
		),
		mcplib.WithNumber("max_response_tokens",
			mcplib.Description("Maximum tokens in the response (default 15000)"),
		),
		mcplib.WithBoolean("dedup",
			mcplib.Description("Compact documents already shown in this session (default true)"),
		),
		mcplib.WithString("research_context",
			mcplib.Description("Brief summary of the user's research goal. Used for logging only"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: p.handleSearchTranscribed}
}

func (p *Plugin) toolSearchMetadata() mcpsrv.ServerTool {
	tool := mcplib.NewTool("search_metadata",
		mcplib.WithDescription(`Search document metadata (titles, names, places, descriptions) in Riksarkivet.

With only_digitised=false this covers more than two million records, including material that has
not been digitised. Combine keyword with name, place and a year range to narrow results.`),
		mcplib.WithString("keyword",
			mcplib.Description("Free-text search term"),
		),
		mcplib.WithNumber("offset",
			mcplib.Description("Starting position for pagination (default 0)"),
		),
		mcplib.WithBoolean("only_digitised",
			mcplib.Description("Limit to digitised materials (default false)"),
		),
		mcplib.WithNumber("max_results",
			mcplib.Description("Maximum documents per query (default 25)"),
		),
		mcplib.WithString("name",
			mcplib.Description("Person name to search for"),
		),
		mcplib.WithString("place",
			mcplib.Description("Place name to search for"),
		),
		mcplib.WithNumber("year_min",
			mcplib.Description("Only records from this year or later"),
		),
		mcplib.WithNumber("year_max",
			mcplib.Description("Only records up to this year"),
		),
		mcplib.WithString("sort",
			mcplib.Description("relevance, timeAsc, timeDesc, alphaAsc or alphaDesc"),
		),
		mcplib.WithNumber("max_response_tokens",
			mcplib.Description("Maximum tokens in the response (default 15000)"),
		),
		mcplib.WithBoolean("dedup",
			mcplib.Description("Omit documents already shown in this session (default true)"),
		),
		mcplib.WithString("research_context",
			mcplib.Description("Brief summary of the user's research goal. Used for logging only"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: p.handleSearchMetadata}
}

func (p *Plugin) handleSearchTranscribed(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	keyword, _ := plugins.StringArg(req, "keyword")
	transcribedOnly := plugins.BoolArg(req, "transcribed_only", true)
	onlyDigitised := plugins.BoolArg(req, "only_digitised", true)

	if transcribedOnly && !onlyDigitised {
		return plugins.ResultError(format.ErrorMessage(
			"transcribed_only=true requires only_digitised=true. Transcriptions only exist for digitised materials. "+
				"Use transcribed_only=false to search metadata in non-digitised materials.",
			"Set only_digitised=true to search transcribed text",
			"Set transcribed_only=false to search all materials' metadata",
		)), nil
	}

	maxSnippets := plugins.IntArg(req, "max_snippets_per_record", defMaxSnippets)
	q := Query{
		OnlyDigitised:        onlyDigitised,
		Max:                  plugins.IntArg(req, "max_results", DefaultMaxResults),
		Offset:               plugins.IntArg(req, "offset", 0),
		MaxSnippetsPerRecord: &maxSnippets,
	}
	if transcribedOnly {
		q.TranscribedText = keyword
	} else {
		q.Text = keyword
	}
	return p.run(ctx, req, "search_transcribed", q), nil
}

func (p *Plugin) handleSearchMetadata(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	keyword, _ := plugins.StringArg(req, "keyword")
	name, _ := plugins.StringArg(req, "name")
	place, _ := plugins.StringArg(req, "place")
	sort, _ := plugins.StringArg(req, "sort")

	q := Query{
		Text:          keyword,
		Name:          name,
		Place:         place,
		Sort:          sort,
		OnlyDigitised: plugins.BoolArg(req, "only_digitised", false),
		Max:           plugins.IntArg(req, "max_results", DefaultMaxResults),
		Offset:        plugins.IntArg(req, "offset", 0),
	}
	if y, ok := plugins.OptionalIntArg(req, "year_min"); ok {
		q.YearMin = &y
	}
	if y, ok := plugins.OptionalIntArg(req, "year_max"); ok {
		q.YearMax = &y
	}
	return p.run(ctx, req, "search_metadata", q), nil
}

// run executes q and renders it. Seen ids are recorded only after the
// response text is complete.
func (p *Plugin) run(ctx context.Context, req mcplib.CallToolRequest, toolName string, q Query) *mcplib.CallToolResult {
	maxTokens := plugins.IntArg(req, "max_response_tokens", defMaxResponseTokens)
	dedup := plugins.BoolArg(req, "dedup", true)
	scope := session.Scope(plugins.SessionID(ctx), "search")

	log := p.logger.With().Str("tool", toolName).Str("keyword", q.Keyword()).Int("offset", q.Offset).Logger()
	if rc, _ := plugins.StringArg(req, "research_context"); rc != "" {
		log.Info().Str("research_context", rc).Msg("tool called")
	} else {
		log.Info().Msg("tool called")
	}

	ctx, span := tracer.StartSpan(ctx, "tool."+toolName, tracer.BoolAttr("dedup", dedup))
	defer span.End()

	if maxTokens < 0 {
		return p.fail(span, log, errs.Invalid("max_response_tokens", "must not be negative, got %d", maxTokens))
	}

	result, err := p.client.Search(ctx, q)
	if err != nil {
		return p.fail(span, log, err)
	}

	var seen Seen
	if dedup {
		seen = func(id string) bool { return p.tracker.HasSeen(scope, id) }
	}
	rendered := FormatResults(result, result.Max, seen)
	text := format.LimitTokens(rendered.Text, maxTokens)
	delivered := rendered.ShownWithin(format.TruncationPoint(rendered.Text, maxTokens))
	text += Paginate(result.Items(), result.TotalHits(), result.Offset, result.Max).Footer(result.Max)

	p.tracker.MarkSeen(scope, delivered...)
	tracer.SetOK(span)
	log.Info().Int("documents", len(result.Items())).Int("shown_ids", len(delivered)).Msg("search rendered")
	return plugins.ResultText(text)
}

func (p *Plugin) fail(span trace.Span, log zerolog.Logger, err error) *mcplib.CallToolResult {
	tracer.RecordError(span, err)
	if errors.Is(err, errs.ErrRateLimited) {
		log.Warn().Err(err).Msg("search rate limited")
	} else {
		log.Error().Err(err).Msg("search failed")
	}
	return plugins.ResultError(errs.Envelope("Search failed", err, searchFailedSuggestions...))
}

var _ plugins.Plugin = (*Plugin)(nil)
