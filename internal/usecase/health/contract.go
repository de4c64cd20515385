package health

import "context"

// Pinger checks storage availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks a remote model provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pingers checks several stores as one component. The first failure wins.
type Pingers []Pinger

// Ping implements Pinger.
func (p Pingers) Ping(ctx context.Context) error {
	for _, pinger := range p {
		if err := pinger.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
