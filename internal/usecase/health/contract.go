package health

import "context"

// ProviderChecker checks a scoring provider's availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexReader reports the loaded corpus size.
type IndexReader interface {
	Len() int
}
