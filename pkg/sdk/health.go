package mailrag

import (
	"context"

	healthuc "github.com/kailas-cloud/mailrag/internal/usecase/health"
)

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// HealthStatus is the outcome of Client.Health. Status is "ok" when every check
// passed and "degraded" otherwise. Checks maps a component name to "ok" or "error".
type HealthStatus struct {
	Status string
	Checks map[string]string
}

// OK reports whether every check passed.
func (h HealthStatus) OK() bool { return h.Status == string(healthuc.Healthy) }

// Health pings the storage backend. The in-memory backend has nothing to ping
// and is always healthy.
func (c *Client) Health(ctx context.Context) HealthStatus {
	r := c.healthSvc.Check(ctx)
	h := HealthStatus{Status: string(r.Status), Checks: make(map[string]string, len(r.Checks))}
	for name, st := range r.Checks {
		h.Checks[name] = string(st)
	}
	return h
}
