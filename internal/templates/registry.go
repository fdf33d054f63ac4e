// Package templates provides a catalogue of named, parameterized,
// pre-validated queries. Callers that don't write SQL - humans and
// automation alike - invoke a template by name plus a small parameter map,
// and can self-discover the catalogue through Describe.
//
// Templates decouple "what question is commonly asked" from "how is it
// expressed in SQL for this particular store": each template carries SQL in
// the dialect of its target adapter and grows independently of adapter
// internals.
package templates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opsintel-labs/opsintel/internal/errors"
	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/sqlguard"
)

// Template is one named, reusable query definition.
type Template struct {
	// Name identifies the template for Execute calls.
	Name string

	// Description tells a human (or an agent reading the catalogue)
	// what question this template answers.
	Description string

	// Parameters lists the expected parameter names, in the order the
	// SQL's placeholders consume them.
	Parameters []string

	// SQL is the parameterized statement, written in the placeholder
	// dialect of the adapter it targets.
	SQL string
}

// Registry holds registered templates. Registration failures are usage
// errors; execution failures are returned as data, consistent with the
// framework-wide policy.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
	order     []string
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// Register validates and adds a template. The SQL must parse as a read-only
// SELECT; an unparseable or mutating template is a programming error caught
// at registration, long before any caller can execute it.
func (r *Registry) Register(t Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.NewInvalidTemplate(t.Name, "template name is empty")
	}
	if strings.TrimSpace(t.Description) == "" {
		return errors.NewInvalidTemplate(t.Name, "template description is empty")
	}
	if _, err := sqlguard.Validate(t.SQL); err != nil {
		return errors.NewInvalidTemplate(t.Name, err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.templates[t.Name] = t
	return nil
}

// Get returns a template by name.
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Names returns the registered template names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Execute looks up the template, checks the supplied parameters against the
// expected list, and delegates to the service's QueryRaw with the values
// bound in declared order. An unknown template or a missing parameter comes
// back as a stale result with a warning, not an error, so automated callers
// need no recovery path.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}, svc intel.Service) *intel.QueryResult {
	t, ok := r.Get(name)
	if !ok {
		return intel.FailedResult("template:"+name,
			fmt.Sprintf("Unknown template %q; available: %s", name, strings.Join(r.Names(), ", ")), 0)
	}

	args := make([]interface{}, 0, len(t.Parameters))
	var missing []string
	for _, p := range t.Parameters {
		v, ok := params[p]
		if !ok {
			missing = append(missing, p)
			continue
		}
		args = append(args, v)
	}
	if len(missing) > 0 {
		return intel.FailedResult("template:"+name,
			fmt.Sprintf("Missing parameters: %s", strings.Join(missing, ", ")), 0)
	}

	return svc.QueryRaw(ctx, t.SQL, args...)
}

// Describe renders a human-readable listing of every registered template
// and its parameters, for discoverability.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available query templates:\n")
	for _, name := range names {
		t := r.templates[name]
		b.WriteString(fmt.Sprintf("  %s - %s\n", t.Name, t.Description))
		if len(t.Parameters) > 0 {
			b.WriteString(fmt.Sprintf("    parameters: %s\n", strings.Join(t.Parameters, ", ")))
		} else {
			b.WriteString("    parameters: none\n")
		}
	}
	return b.String()
}
