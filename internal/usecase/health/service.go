// Package health aggregates component liveness for the health endpoint.
package health

import "context"

// Status is the aggregated service status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure: the service still answers,
	// possibly with degraded responses.
	Degraded Status = "degraded"
)

// Check is an individual component outcome.
type Check struct {
	OK    bool
	Error string
}

// Report aggregates component checks.
type Report struct {
	Status Status
	Checks map[string]Check
}

// Service coordinates component health checks.
type Service struct {
	store     StorePinger
	embedding EmbeddingChecker
}

// New creates a health service. embedding can be nil when no remote
// embedding provider is configured.
func New(store StorePinger, embedding EmbeddingChecker) *Service {
	return &Service{store: store, embedding: embedding}
}

// Check probes each component and aggregates the outcome.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]Check{
		"store": toCheck(s.store.Ping(ctx)),
	}
	if s.embedding != nil {
		checks["embedding"] = toCheck(s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, c := range checks {
		if !c.OK {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}

func toCheck(err error) Check {
	if err != nil {
		return Check{Error: err.Error()}
	}
	return Check{OK: true}
}
