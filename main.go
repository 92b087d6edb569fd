package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/browse"
	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/internal/config"
	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/logging"
	"github.com/briangreenhill/ramcp/internal/server"
	"github.com/briangreenhill/ramcp/internal/tracer"
	"github.com/briangreenhill/ramcp/search"
)

const usage = `Usage: ra <command> [options]

Commands:
  search <keyword>          Search transcribed text (or metadata with --metadata)
      --max N               Maximum documents to fetch (default 50)
      --max-display N       Maximum documents to display (default 20)
      --max-hits-per-vol N  Maximum hits shown per volume (default 3)
      --offset N            Pagination offset (default 0)
      --metadata            Search metadata instead of transcriptions
      --all-materials       Include non-digitised materials (metadata only)
      --log                 Log API calls to RA_MCP_LOG_FILE
  browse <reference_code>   Show page transcriptions of a document
      --page SPEC           Pages, e.g. "1-5" or "1,3,5" (default first 20)
      --search-term T       Highlight T in the text
      --max-pages N         Maximum pages to load (default 20)
      --log                 Log API calls to RA_MCP_LOG_FILE
  serve                     Run the MCP server (stdio unless --http)
      --http                Use streamable HTTP at /mcp
      --host H --port P     HTTP listen address
      --modules a,b         Modules to enable (default: search,browse,guide)
      --list-modules        List available modules and exit
      --instructions FILE   Replace the default instructions body
      --verbose             Debug logging
  cache stats               Show cache entry counts and size
  cache clear [category]    Remove cached entries (all or one category)
  cache prune               Remove expired and corrupt entries
  modules                   List available modules
  version                   Show version
  help                      Show this help

Configuration is read from RA_MCP_* environment variables and an optional .env file.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runCLI(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes err as the error envelope, with the suggestions for its kind.
func printError(w io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprintln(w, errs.Envelope("", err))
}

func runCLI(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}
	switch args[0] {
	case "help", "--help", "-h":
		fmt.Fprint(out, usage)
	case "version", "--version", "-v":
		fmt.Fprintf(out, "ra %s\n", server.Version)
	case "search":
		return runSearch(ctx, args[1:], out)
	case "browse":
		return runBrowse(ctx, args[1:], out)
	case "serve":
		return runServe(ctx, args[1:], out)
	case "cache":
		return runCache(args[1:], out)
	case "modules":
		return listModules(out)
	default:
		return fmt.Errorf("unknown command: %s (see 'ra help')", args[0])
	}
	return nil
}

// runtimeOptions adjust the environment configuration for one command.
type runtimeOptions struct {
	logLevel string
	apiLog   bool
}

// setup loads configuration and builds the shared runtime. The returned
// function flushes traces and closes the API log.
func setup(ctx context.Context, opts runtimeOptions) (*server.Runtime, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.apiLog {
		cfg.LogAPI = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, closeLog, err := logging.New(cfg.Logging(), nil)
	if err != nil {
		return nil, nil, err
	}
	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer())
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}
	cleanup := func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
		_ = closeLog()
	}

	rt, err := server.NewRuntime(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return rt, cleanup, nil
}

// cliLevel keeps terminal output quiet unless API logging was asked for.
func cliLevel(apiLog bool) string {
	if apiLog {
		return "debug"
	}
	return "warn"
}

// parseInterspersed parses flags that may appear before or after the
// positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runSearch(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("search")
	maxResults := fs.Int("max", 50, "")
	maxDisplay := fs.Int("max-display", 20, "")
	maxHits := fs.Int("max-hits-per-vol", 3, "")
	offset := fs.Int("offset", 0, "")
	metadata := fs.Bool("metadata", false, "")
	allMaterials := fs.Bool("all-materials", false, "")
	apiLog := fs.Bool("log", false, "")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	keyword := strings.TrimSpace(strings.Join(positional, " "))
	if keyword == "" {
		return errors.New("search requires a keyword")
	}

	rt, cleanup, err := setup(ctx, runtimeOptions{logLevel: cliLevel(*apiLog), apiLog: *apiLog})
	if err != nil {
		return err
	}
	defer cleanup()

	q := search.Query{
		Max:                  *maxResults,
		Offset:               *offset,
		OnlyDigitised:        !*allMaterials,
		MaxSnippetsPerRecord: maxHits,
	}
	if *metadata {
		q.Text = keyword
	} else {
		q.TranscribedText = keyword
	}

	result, err := rt.Search.Search(ctx, q)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, search.FormatTable(result, *maxDisplay))
	if footer := search.Paginate(result.Items(), result.TotalHits(), result.Offset, result.Max).Footer(result.Max); footer != "" {
		fmt.Fprintln(out, strings.TrimLeft(footer, "\n"))
	}
	return nil
}

func runBrowse(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("browse")
	pages := fs.String("page", "", "")
	term := fs.String("search-term", "", "")
	maxPages := fs.Int("max-pages", browse.DefaultMaxPages, "")
	apiLog := fs.Bool("log", false, "")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return errors.New("browse requires a reference code")
	}
	// reference codes may contain spaces, e.g. "SE/RA/420422/01/A I a 1/288"
	ref := strings.Join(positional, " ")

	rt, cleanup, err := setup(ctx, runtimeOptions{logLevel: cliLevel(*apiLog), apiLog: *apiLog})
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := rt.Browse.Browse(ctx, browse.Request{
		ReferenceCode: ref,
		Pages:         *pages,
		HighlightTerm: *term,
		MaxPages:      *maxPages,
	})
	if err != nil {
		return err
	}
	text := browse.FormatResult(res, *term, nil)
	if text == "" {
		text = browse.NoPagesMessage(ref)
	}
	fmt.Fprintln(out, text)
	return nil
}

func runServe(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("serve")
	useHTTP := fs.Bool("http", false, "")
	host := fs.String("host", "", "")
	port := fs.Int("port", 0, "")
	modules := fs.String("modules", "", "")
	list := fs.Bool("list-modules", false, "")
	instructions := fs.String("instructions", "", "")
	verbose := fs.Bool("verbose", false, "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *list {
		return listModules(out)
	}

	opts := runtimeOptions{}
	if *verbose {
		opts.logLevel = "debug"
	}
	rt, cleanup, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := rt.Config
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	names := cfg.Modules
	if *modules != "" {
		names = splitList(*modules)
	}
	path := cfg.InstructionsPath
	if *instructions != "" {
		path = *instructions
	}

	srv := server.New(rt.Registry(), server.Options{
		Modules:          names,
		InstructionsPath: path,
		AuthToken:        cfg.AuthToken,
		Logger:           rt.Logger,
	})
	if *useHTTP {
		return srv.ServeHTTP(ctx, cfg.Addr())
	}
	return srv.ServeStdio(ctx)
}

func runCache(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("cache requires a subcommand: stats, clear or prune")
	}
	rt, cleanup, err := setup(context.Background(), runtimeOptions{logLevel: "warn"})
	if err != nil {
		return err
	}
	defer cleanup()
	if rt.Files == nil {
		return errors.New("caching is disabled (RA_MCP_CACHE_DISABLED)")
	}

	switch args[0] {
	case "stats":
		st := rt.Files.Stats()
		fmt.Fprintf(out, "Cache directory: %s\n", rt.Files.Dir())
		for _, c := range cache.Categories() {
			fmt.Fprintf(out, "  %-10s %d entries (ttl %s)\n", c, st.Counts[c], c.TTL())
		}
		fmt.Fprintf(out, "Total: %d entries, %s\n", st.Total, humanize.Bytes(uint64(st.Bytes)))
	case "clear":
		var category cache.Category
		if len(args) > 1 {
			category = cache.Category(args[1])
			if !knownCategory(category) {
				return fmt.Errorf("unknown cache category %q", args[1])
			}
		}
		n := rt.Files.Clear(category)
		fmt.Fprintf(out, "Removed %s cache %s\n", humanize.Comma(int64(n)), plural(n, "entry", "entries"))
	case "prune":
		n, err := rt.Files.Prune()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %s stale cache %s\n", humanize.Comma(int64(n)), plural(n, "entry", "entries"))
	default:
		return fmt.Errorf("unknown cache subcommand: %s", args[0])
	}
	return nil
}

func listModules(out io.Writer) error {
	cfg, err := config.Parse(nil)
	if err != nil {
		return err
	}
	cfg.CacheDisabled = true
	rt, err := server.NewRuntime(cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Available modules:")
	for _, p := range rt.Registry().Plugins() {
		marker := ""
		if p.Default() {
			marker = " (default)"
		}
		fmt.Fprintf(out, "  %-8s %s%s\n", p.Name(), p.Description(), marker)
	}
	return nil
}

func knownCategory(c cache.Category) bool {
	for _, k := range cache.Categories() {
		if k == c {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
