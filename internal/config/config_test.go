package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/ramcp/internal/errs"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://data.riksarkivet.se/api/records", cfg.SearchAPIURL)
	assert.Equal(t, "https://oai-pmh.riksarkivet.se/OAI", cfg.OAIURL)
	assert.Equal(t, "https://lbiiif.riksarkivet.se", cfg.IIIFURL)
	assert.Equal(t, "https://sok.riksarkivet.se/dokument/alto", cfg.ALTOURL)
	assert.Equal(t, DefaultHTRSpaceURL, cfg.HTRSpaceURL)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout)
	assert.Equal(t, "@every 30m", cfg.JanitorSchedule)
	assert.False(t, cfg.HasAuth())
	assert.Empty(t, cfg.Modules)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"RA_MCP_TIMEOUT":         "15",
		"RA_MCP_PORT":            "9000",
		"RA_MCP_MODULES":         "search,htr",
		"RA_MCP_CACHE_DISABLED":  "true",
		"RA_MCP_LOG_API":         "1",
		"RA_MCP_AUTH_TOKEN":      "secret",
		"RA_MCP_BREAKER_TIMEOUT": "2m",
		"RA_MCP_TRACING":         "true",
		"RA_MCP_TRACE_EXPORTER":  "noop",
		"HTR_SPACE_URL":          "https://htr.example.com",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, []string{"search", "htr"}, cfg.Modules)
	assert.True(t, cfg.CacheDisabled)
	assert.True(t, cfg.Logging().APILog)
	assert.True(t, cfg.HasAuth())
	assert.Equal(t, 2*time.Minute, cfg.BreakerTimeout)
	assert.Equal(t, "https://htr.example.com", cfg.HTRSpaceURL)
	assert.True(t, cfg.Tracer().Enabled)
	assert.Equal(t, "noop", cfg.Tracer().Exporter)
}

func TestParseBadNumber(t *testing.T) {
	_, err := Parse(map[string]string{"RA_MCP_PORT": "eighty"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		param string
	}{
		{"timeout too low", map[string]string{"RA_MCP_TIMEOUT": "0"}, "RA_MCP_TIMEOUT"},
		{"port out of range", map[string]string{"RA_MCP_PORT": "70000"}, "RA_MCP_PORT"},
		{"bad url", map[string]string{"RA_MCP_SEARCH_API_URL": "not a url"}, "RA_MCP_SEARCH_API_URL"},
		{"bad log level", map[string]string{"RA_MCP_LOG_LEVEL": "loud"}, "RA_MCP_LOG_LEVEL"},
		{"bad exporter", map[string]string{"RA_MCP_TRACE_EXPORTER": "jaeger"}, "RA_MCP_TRACE_EXPORTER"},
		{"bad htr url", map[string]string{"HTR_SPACE_URL": "nope"}, "HTR_SPACE_URL"},
		{"bad schedule", map[string]string{"RA_MCP_JANITOR_SCHEDULE": "sometimes"}, "RA_MCP_JANITOR_SCHEDULE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.env)
			require.NoError(t, err)

			err = cfg.Validate()
			var ip *errs.InvalidParameterError
			require.True(t, errors.As(err, &ip), "want InvalidParameterError, got %v", err)
			assert.Equal(t, tt.param, ip.Param)
		})
	}
}
