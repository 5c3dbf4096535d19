package executor

import (
	"sort"

	"github.com/pocketops/chatexec/pkg/config"
)

// Template is one named command template from configuration.
type Template struct {
	Name    string
	Command string
}

// Registry maps executor names to their templates. It is built once at
// startup and never mutated, so concurrent lookups need no locking.
type Registry struct {
	templates map[string]Template
}

// NewRegistry builds a registry from configuration. Duplicate names are
// allowed; the last entry wins.
func NewRegistry(cfgs []config.ExecutorConfig) *Registry {
	templates := make(map[string]Template, len(cfgs))
	for _, c := range cfgs {
		templates[c.Name] = Template{Name: c.Name, Command: c.Command}
	}
	return &Registry{templates: templates}
}

func (r *Registry) Lookup(name string) (Template, bool) {
	tmpl, ok := r.templates[name]
	return tmpl, ok
}

func (r *Registry) Len() int {
	return len(r.templates)
}

// Names returns the configured executor names, sorted, for diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
