package intel

import (
	"context"
	"sort"
)

// Service is the contract every source adapter implements. Each adapter owns
// exactly one connection to one physical data store and translates between
// that store's native schema and the uniform QueryResult/FreshnessInfo
// envelope. Adapters are thin: no silent retries, no hidden fallbacks.
type Service interface {
	// Name returns the unique name of this source.
	Name() string

	// FreshnessReport enumerates every physical sub-source the adapter
	// manages. It never fails: on connection trouble, affected entries
	// are marked stale with an explanatory warning.
	FreshnessReport(ctx context.Context) map[string]FreshnessInfo

	// QueryRaw executes a parameterized query verbatim against the
	// adapter's store. Parameters are always bound, never interpolated.
	// Failures come back as an empty stale result, never as a panic or
	// error, so automated callers can proceed without recovery
	// boilerplate at every call site.
	QueryRaw(ctx context.Context, query string, args ...interface{}) *QueryResult

	// Refresh triggers a reload of the adapter's source data. A nil
	// return is confirmed success; any partial failure returns an error
	// and must leave prior data intact.
	Refresh(ctx context.Context) error

	// Close releases the adapter's connection. Safe to call twice.
	Close() error
}

// IsStale reports whether any sub-source in the service's freshness report
// is stale. This is the single staleness gate for callers who don't care
// which specific sub-source is old.
func IsStale(ctx context.Context, svc Service) bool {
	for _, info := range svc.FreshnessReport(ctx) {
		if info.Stale {
			return true
		}
	}
	return false
}

// Registry manages source adapters by name.
type Registry struct {
	services map[string]Service
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register adds a service to the registry, replacing any previous service
// with the same name.
func (r *Registry) Register(svc Service) {
	r.services[svc.Name()] = svc
}

// Get returns a service by name.
func (r *Registry) Get(name string) (Service, bool) {
	svc, ok := r.services[name]
	return svc, ok
}

// Available returns the sorted names of all registered services.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmpty returns true if no services are registered.
func (r *Registry) IsEmpty() bool {
	return len(r.services) == 0
}

// CloseAll closes every registered service, returning the last error seen.
func (r *Registry) CloseAll() error {
	var lastErr error
	for _, svc := range r.services {
		if err := svc.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
