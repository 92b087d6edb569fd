// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/logging"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

// Prefix is prepended to every variable except HTR_SPACE_URL.
const Prefix = "RA_MCP_"

// DefaultHTRSpaceURL is the public HTR demo Space.
const DefaultHTRSpaceURL = "https://riksarkivet-htr-demo.hf.space"

// Config holds all application configuration
type Config struct {
	// Remote endpoints
	SearchAPIURL      string `env:"SEARCH_API_URL" envDefault:"https://data.riksarkivet.se/api/records" validate:"required,url"`
	OAIURL            string `env:"OAI_URL" envDefault:"https://oai-pmh.riksarkivet.se/OAI" validate:"required,url"`
	IIIFURL           string `env:"IIIF_URL" envDefault:"https://lbiiif.riksarkivet.se" validate:"required,url"`
	IIIFCollectionURL string `env:"IIIF_COLLECTION_URL" envDefault:"https://lbiiif.riksarkivet.se/collection/arkiv" validate:"required,url"`
	ALTOURL           string `env:"ALTO_URL" envDefault:"https://sok.riksarkivet.se/dokument/alto" validate:"required,url"`
	BildvisningURL    string `env:"BILDVISNING_URL" envDefault:"https://sok.riksarkivet.se/bildvisning" validate:"required,url"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `env:"TIMEOUT" envDefault:"60" validate:"min=1,max=600"`

	CacheDir      string `env:"CACHE_DIR"`
	CacheDisabled bool   `env:"CACHE_DISABLED"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
	LogAPI    bool   `env:"LOG_API"`
	LogFile   string `env:"LOG_FILE" envDefault:"ra_mcp_api.log"`

	RateLimit       float64       `env:"RATE_LIMIT" envDefault:"5" validate:"gte=0"`
	RateBurst       int           `env:"RATE_BURST" envDefault:"10" validate:"min=1"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3" validate:"min=1,max=10"`
	BreakerFailures uint32        `env:"BREAKER_FAILURES" envDefault:"5" validate:"min=1"`
	BreakerTimeout  time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s" validate:"min=1s"`

	Tracing       bool   `env:"TRACING"`
	TraceExporter string `env:"TRACE_EXPORTER" envDefault:"stdout" validate:"oneof=stdout noop"`

	Host             string   `env:"HOST" envDefault:"0.0.0.0" validate:"required"`
	Port             int      `env:"PORT" envDefault:"8000" validate:"min=1,max=65535"`
	Modules          []string `env:"MODULES" envSeparator:","`
	AuthToken        string   `env:"AUTH_TOKEN"`
	InstructionsPath string   `env:"INSTRUCTIONS_PATH"`
	GuideDir         string   `env:"GUIDE_DIR"`
	JanitorSchedule  string   `env:"JANITOR_SCHEDULE" envDefault:"@every 30m" validate:"required"`

	// HTRSpaceURL comes from HTR_SPACE_URL, without the prefix.
	HTRSpaceURL string `validate:"required,url"`
}

type htrEnv struct {
	SpaceURL string `env:"HTR_SPACE_URL" envDefault:"https://riksarkivet-htr-demo.hf.space"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment when
// environ is nil. It does not validate.
func Parse(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix, Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	var htr htrEnv
	if err := env.ParseWithOptions(&htr, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.HTRSpaceURL = htr.SpaceURL
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report variable names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return Prefix + name
		}
		if f.Name == "HTRSpaceURL" {
			return "HTR_SPACE_URL"
		}
		return f.Name
	})
	return v
}

// Validate checks ranges, URLs and the janitor schedule. The first problem
// is returned as *errs.InvalidParameterError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var vErr validator.ValidationErrors
		if errors.As(err, &vErr) && len(vErr) > 0 {
			fe := vErr[0]
			return &errs.InvalidParameterError{
				Param:  fe.Field(),
				Reason: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return err
	}
	if _, err := cron.ParseStandard(c.JanitorSchedule); err != nil {
		return errs.Invalid(Prefix+"JANITOR_SCHEDULE", "%v", err)
	}
	return nil
}

// HTTPTimeout returns the per-request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasAuth reports whether the HTTP transport requires a bearer token.
func (c *Config) HasAuth() bool {
	return c.AuthToken != ""
}

func (c *Config) Tracer() tracer.Config {
	return tracer.Config{Enabled: c.Tracing, Exporter: c.TraceExporter}
}

func (c *Config) Logging() logging.Options {
	return logging.Options{
		Level:   c.LogLevel,
		Format:  c.LogFormat,
		APILog:  c.LogAPI,
		APIFile: c.LogFile,
	}
}
