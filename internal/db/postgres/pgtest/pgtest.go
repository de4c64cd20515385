//go:build integration

// Package pgtest starts a disposable pgvector-enabled PostgreSQL for integration tests.
package pgtest

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Image ships PostgreSQL with the vector extension preinstalled.
const Image = "pgvector/pgvector:pg16"

// Start runs a container and returns its DSN and a teardown func.
func Start(ctx context.Context) (dsn string, teardown func(), err error) {
	ctr, err := tcpostgres.Run(ctx, Image,
		tcpostgres.WithDatabase("mailrag"),
		tcpostgres.WithUsername("mailrag"),
		tcpostgres.WithPassword("mailrag"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return "", nil, fmt.Errorf("connection string: %w", err)
	}

	return dsn, func() { _ = testcontainers.TerminateContainer(ctr) }, nil
}
