package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/ramcp/internal/config"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg, err := config.Parse(map[string]string{
		"RA_MCP_CACHE_DIR": t.TempDir(),
		"RA_MCP_GUIDE_DIR": t.TempDir(),
	})
	require.NoError(t, err)
	rt, err := NewRuntime(cfg, zerolog.Nop())
	require.NoError(t, err)
	return rt
}

func TestNewRuntime(t *testing.T) {
	rt := newTestRuntime(t)
	require.NotNil(t, rt.Files)
	assert.Same(t, rt.Files, rt.Cache)
	assert.Equal(t, "embedded", rt.Guide.Source())
	assert.Equal(t, []string{"search", "browse", "guide", "htr"}, rt.Registry().List())
}

func TestNewRuntimeCacheDisabled(t *testing.T) {
	cfg, err := config.Parse(map[string]string{"RA_MCP_CACHE_DISABLED": "true"})
	require.NoError(t, err)
	rt, err := NewRuntime(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, rt.Files)
	assert.Equal(t, 0, rt.Cache.Stats().Total)
}

func TestNewSelectsModules(t *testing.T) {
	rt := newTestRuntime(t)
	tests := []struct {
		modules []string
		want    []string
	}{
		{nil, []string{"search", "browse", "guide"}},
		{[]string{"htr", "search"}, []string{"htr", "search"}},
		{[]string{"nope", "guide"}, []string{"guide"}},
		{[]string{"nope"}, []string{}},
	}
	for _, tt := range tests {
		s := New(rt.Registry(), Options{Modules: tt.modules, Logger: zerolog.Nop()})
		if got := s.Modules(); !assert.ObjectsAreEqual(tt.want, got) {
			t.Errorf("New(%v).Modules() = %v, want %v", tt.modules, got, tt.want)
		}
	}
}

func TestRegisteredTools(t *testing.T) {
	rt := newTestRuntime(t)
	s := New(rt.Registry(), Options{Modules: []string{"search", "browse", "guide", "htr"}, Logger: zerolog.Nop()})

	tools := s.MCP().ListTools()
	for _, name := range []string{"search_transcribed", "search_metadata", "browse_document", "list_guides", "htr_transcribe"} {
		assert.Contains(t, tools, name)
	}
}

func TestServeStdioInitialize(t *testing.T) {
	rt := newTestRuntime(t)
	s := New(rt.Registry(), Options{Logger: zerolog.Nop()})

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}` + "\n")
	var out bytes.Buffer
	require.NoError(t, s.serveStdio(context.Background(), in, &out))

	var resp struct {
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
			Instructions string `json:"instructions"`
		} `json:"result"`
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	assert.Equal(t, Name, resp.Result.ServerInfo.Name)
	assert.Contains(t, resp.Result.Instructions, "  - browse: ")
	assert.NotContains(t, resp.Result.Instructions, "  - htr: ")
}

func TestHandlerRoutes(t *testing.T) {
	rt := newTestRuntime(t)
	s := New(rt.Registry(), Options{AuthToken: "tok", Logger: zerolog.Nop()})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","modules":["search","browse","guide"]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
