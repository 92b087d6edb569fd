package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/internal/errs"
)

// isolate points configuration at temp dirs so tests never touch the user cache.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RA_MCP_CACHE_DIR", dir)
	t.Setenv("RA_MCP_CACHE_DISABLED", "false")
	t.Setenv("RA_MCP_RATE_LIMIT", "0")
	t.Setenv("RA_MCP_MAX_RETRIES", "1")
	t.Setenv("RA_MCP_LOG_FILE", filepath.Join(t.TempDir(), "api.log"))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runCLI(context.Background(), args, &out)
	return out.String(), err
}

func TestRunCLIBasics(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr string
	}{
		{nil, "Usage: ra <command>", ""},
		{[]string{"help"}, "cache prune", ""},
		{[]string{"--help"}, "Usage: ra <command>", ""},
		{[]string{"version"}, "ra dev", ""},
		{[]string{"bogus"}, "", "unknown command: bogus"},
		{[]string{"search"}, "", "search requires a keyword"},
		{[]string{"browse"}, "", "browse requires a reference code"},
		{[]string{"cache"}, "", "cache requires a subcommand"},
		{[]string{"search", "--nope", "x"}, "", "flag provided but not defined"},
	}

	isolate(t)
	for _, tt := range tests {
		out, err := run(t, tt.args...)
		if tt.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("runCLI(%v) error = %v, want %q", tt.args, err, tt.wantErr)
			}
			continue
		}
		require.NoError(t, err, "runCLI(%v)", tt.args)
		assert.Contains(t, out, tt.want, "runCLI(%v)", tt.args)
	}
}

func TestModules(t *testing.T) {
	isolate(t)
	for _, args := range [][]string{{"modules"}, {"serve", "--list-modules"}} {
		out, err := run(t, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "Available modules:")
		assert.Regexp(t, `search +.+\(default\)`, out)
		assert.Regexp(t, `guide +.+\(default\)`, out)
		assert.Regexp(t, `htr +[^\n]+[^)]\n`, out)
	}
}

func TestParseInterspersed(t *testing.T) {
	fs := newFlagSet("t")
	n := fs.Int("max", 1, "")
	b := fs.Bool("metadata", false, "")

	pos, err := parseInterspersed(fs, []string{"--max", "5", "Stockholm", "--metadata", "1676"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stockholm", "1676"}, pos)
	assert.Equal(t, 5, *n)
	assert.True(t, *b)
}

func TestSearchCommand(t *testing.T) {
	isolate(t)
	body, err := os.ReadFile(filepath.Join("search", "testdata", "records.json"))
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Stockholm", r.URL.Query().Get("transcribed_text"))
		assert.Equal(t, "10", r.URL.Query().Get("max"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	t.Setenv("RA_MCP_SEARCH_API_URL", srv.URL)

	out, err := run(t, "search", "Stockholm", "--max", "10", "--max-hits-per-vol", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Search results for 'Stockholm'")
	assert.Contains(t, out, "SE/RA/310187/1")

	// second run is served from the file cache
	again, err := run(t, "search", "--max", "10", "--max-hits-per-vol", "1", "Stockholm")
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSearchCommandRemoteFailure(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()
	t.Setenv("RA_MCP_SEARCH_API_URL", srv.URL)

	_, err := run(t, "search", "Stockholm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestBrowseCommand(t *testing.T) {
	isolate(t)
	record, err := os.ReadFile(filepath.Join("browse", "testdata", "oai_record.xml"))
	require.NoError(t, err)
	alto, err := os.ReadFile(filepath.Join("browse", "testdata", "alto_page.xml"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/OAI":
			_, _ = w.Write(record)
		case "/alto/R000/R0001203/R0001203_00001.xml":
			_, _ = w.Write(alto)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	t.Setenv("RA_MCP_OAI_URL", srv.URL+"/OAI")
	t.Setenv("RA_MCP_ALTO_URL", srv.URL+"/alto")

	out, err := run(t, "browse", "SE/RA/310187/1", "--page", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Anno 1676 uti Stockholm")

	_, err = run(t, "browse", "SE/RA/310187/1", "--page", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid page specification")
}

func TestCacheCommands(t *testing.T) {
	dir := isolate(t)
	fc, err := cache.New(dir)
	require.NoError(t, err)
	fc.Set(cache.Search, cache.Params{"q": "a"}, "x")
	fc.Set(cache.ALTO, cache.Params{"u": "b"}, "y")

	out, err := run(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache directory: "+dir)
	assert.Regexp(t, `search +1 entries`, out)
	assert.Contains(t, out, "Total: 2 entries")

	out, err = run(t, "cache", "clear", "search")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 cache entry\n", out)

	_, err = run(t, "cache", "clear", "nope")
	assert.ErrorContains(t, err, `unknown cache category "nope"`)

	out, err = run(t, "cache", "prune")
	require.NoError(t, err)
	assert.Equal(t, "Pruned 0 stale cache entries\n", out)

	_, err = run(t, "cache", "bogus")
	assert.ErrorContains(t, err, "unknown cache subcommand")
}

func TestCacheCommandsDisabled(t *testing.T) {
	isolate(t)
	t.Setenv("RA_MCP_CACHE_DISABLED", "true")
	_, err := run(t, "cache", "stats")
	assert.ErrorContains(t, err, "caching is disabled")
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			"invalid parameter",
			errs.Invalid("pages", "must not be empty"),
			[]string{"⚠️ **Error**: ", "**Suggestions**:", "- Check the value of 'pages'"},
		},
		{
			"rate limited",
			&errs.RemoteAPIError{Op: "search", Status: http.StatusTooManyRequests, RetryAfter: 30 * time.Second},
			[]string{"⚠️ **Error**: search: HTTP 429 Too Many Requests", "- Retry after 30 seconds"},
		},
		{
			"plain",
			errors.New("unknown command \"frob\""),
			[]string{"⚠️ **Error**: unknown command \"frob\""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}
