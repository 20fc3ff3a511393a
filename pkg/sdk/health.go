package newsrag

import (
	"context"
	"time"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component -> "ok" or the failure message
}

// Health checks the health of all backing components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	defer func() { c.obs.observe("health", start, nil) }()

	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for name, check := range report.Checks {
		if check.OK {
			checks[name] = "ok"
		} else {
			checks[name] = check.Error
		}
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
