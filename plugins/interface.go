// Package plugins defines the common interface for the MCP tool modules
// (search, browse, guide, htr) and the registry that selects them.
package plugins

import (
	"sort"

	mcpsrv "github.com/mark3labs/mcp-go/server"
)

// Plugin is one composable MCP module.
type Plugin interface {
	// Name returns the module name used by --modules (e.g., "search", "browse")
	Name() string

	// Description is a one-line summary for --list-modules and server instructions
	Description() string

	// Default reports whether the module is enabled when no list is given
	Default() bool

	// Register adds the module's tools and resources to s
	Register(s *mcpsrv.MCPServer)
}

// Registry manages the available modules in registration order.
type Registry struct {
	plugins map[string]Plugin
	order   []string
}

// NewRegistry creates a new plugin registry
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
	}
}

// Register adds a plugin to the registry. Registering a name twice replaces
// the earlier plugin but keeps its position.
func (r *Registry) Register(plugin Plugin) {
	if _, exists := r.plugins[plugin.Name()]; !exists {
		r.order = append(r.order, plugin.Name())
	}
	r.plugins[plugin.Name()] = plugin
}

// GetPlugin retrieves a plugin by name
func (r *Registry) GetPlugin(name string) (Plugin, bool) {
	plugin, exists := r.plugins[name]
	return plugin, exists
}

// List returns all registered plugin names in registration order
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// Plugins returns all registered plugins in registration order
func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.plugins[name])
	}
	return out
}

// Select resolves names to plugins. An empty list selects the defaults.
// Unknown names are returned separately and duplicates are ignored.
func (r *Registry) Select(names []string) (selected []Plugin, unknown []string) {
	if len(names) == 0 {
		for _, p := range r.Plugins() {
			if p.Default() {
				selected = append(selected, p)
			}
		}
		return selected, nil
	}

	picked := make(map[string]bool)
	for _, name := range names {
		if name == "" || picked[name] {
			continue
		}
		p, ok := r.plugins[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		picked[name] = true
		selected = append(selected, p)
	}
	sort.Strings(unknown)
	return selected, unknown
}
