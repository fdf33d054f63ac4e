// Package status provides aggregate operational visibility over the
// framework: which sources are stale, and where the collection schedule
// stands. High-signal, no dashboards.
package status

import (
	"context"
	"sort"

	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/scheduler"
)

// SourceStatus summarizes one adapter's freshness report.
type SourceStatus struct {
	Source          string                         `json:"source"`
	Stale           bool                           `json:"is_stale"`
	StaleSubsources []string                       `json:"stale_subsources,omitempty"`
	Freshness       map[string]intel.FreshnessInfo `json:"freshness"`
}

// Result is the aggregate status of every registered source plus the
// collection schedule.
type Result struct {
	Healthy  bool                    `json:"healthy"`
	Sources  []SourceStatus          `json:"sources"`
	Schedule []scheduler.EntryStatus `json:"schedule,omitempty"`
}

// Checker computes aggregate status on demand.
type Checker struct {
	registry *intel.Registry
	sched    *scheduler.Scheduler
}

// NewChecker creates a checker over the registry and an optional scheduler.
func NewChecker(registry *intel.Registry, sched *scheduler.Scheduler) *Checker {
	return &Checker{registry: registry, sched: sched}
}

// Check gathers a fresh status snapshot. It never fails: unreachable
// sources appear as stale entries with warnings, courtesy of the adapters'
// resilient freshness reporting.
func (c *Checker) Check(ctx context.Context) *Result {
	result := &Result{Healthy: true, Sources: []SourceStatus{}}

	for _, name := range c.registry.Available() {
		svc, _ := c.registry.Get(name)
		report := svc.FreshnessReport(ctx)

		status := SourceStatus{Source: name, Freshness: report}
		for sub, info := range report {
			if info.Stale {
				status.Stale = true
				status.StaleSubsources = append(status.StaleSubsources, sub)
			}
		}
		sort.Strings(status.StaleSubsources)
		if status.Stale {
			result.Healthy = false
		}
		result.Sources = append(result.Sources, status)
	}

	if c.sched != nil {
		result.Schedule = c.sched.Status()
	}
	return result
}
