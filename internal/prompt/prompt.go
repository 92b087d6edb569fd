// Package prompt builds the server instructions sent to MCP clients.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Module is an enabled tool module as listed in the instructions.
type Module struct {
	Name        string
	Description string
}

// Generator builds instructions from the enabled modules
type Generator struct {
	customPath string
	logger     zerolog.Logger
}

// NewGenerator creates a generator. A non-empty customPath names a file
// whose contents replace the default body.
func NewGenerator(customPath string, logger zerolog.Logger) *Generator {
	return &Generator{customPath: customPath, logger: logger}
}

// Generate returns the instructions for modules.
func (g *Generator) Generate(modules []Module) (string, error) {
	body := DefaultBody()
	if g.customPath != "" {
		b, err := os.ReadFile(g.customPath)
		if err != nil {
			return "", fmt.Errorf("read instructions file: %w", err)
		}
		body = strings.TrimSpace(string(b))
	}
	return Build(modules, body), nil
}

// GenerateWithFallback is Generate, falling back to the default body when
// the custom file cannot be read.
func (g *Generator) GenerateWithFallback(modules []Module) string {
	text, err := g.Generate(modules)
	if err != nil {
		g.logger.Warn().Err(err).Str("path", g.customPath).Msg("using default instructions")
		return Build(modules, DefaultBody())
	}
	return text
}

// Build assembles header, module list and body.
func Build(modules []Module, body string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n📋 ENABLED MODULES:\n\n")
	if len(modules) == 0 {
		b.WriteString("  (No modules enabled)\n")
	}
	for _, m := range modules {
		fmt.Fprintf(&b, "  - %s: %s\n", m.Name, m.Description)
	}
	b.WriteString("\n")
	b.WriteString(discovery)
	if body != "" {
		b.WriteString("\n\n")
		b.WriteString(body)
	}
	b.WriteString("\n")
	return b.String()
}
