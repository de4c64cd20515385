package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported by Check.
const (
	ComponentStorage   = "storage"
	ComponentEmbedding = "embedding"
	ComponentLLM       = "llm"
)

// DefaultTimeout bounds every individual check.
const DefaultTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Failed returns the names of failing components in sorted order.
func (r Report) Failed() []string {
	var out []string
	for name, res := range r.Checks {
		if res == CheckError {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	checks  []check
	timeout time.Duration
}

// New creates a Service. embedding and llm can be nil, in which case they are not reported.
func New(storage Pinger, embedding, llm ProviderChecker) *Service {
	s := &Service{timeout: DefaultTimeout}
	if storage != nil {
		s.checks = append(s.checks, check{ComponentStorage, storage.Ping})
	}
	if embedding != nil {
		s.checks = append(s.checks, check{ComponentEmbedding, embedding.HealthCheck})
	}
	if llm != nil {
		s.checks = append(s.checks, check{ComponentLLM, llm.HealthCheck})
	}
	return s
}

// WithTimeout returns a copy of the service using d per check.
func (s *Service) WithTimeout(d time.Duration) *Service {
	cp := *s
	cp.timeout = d
	return &cp
}

// Check runs every component check in parallel.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.checks))

	var wg sync.WaitGroup
	for i, c := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			if err := c.fn(cctx); err != nil {
				results[i] = CheckError
				return
			}
			results[i] = CheckOK
		}()
	}
	wg.Wait()

	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy
	for i, c := range s.checks {
		checks[c.name] = results[i]
		if results[i] == CheckError {
			status = Degraded
		}
	}
	return Report{Status: status, Checks: checks}
}
