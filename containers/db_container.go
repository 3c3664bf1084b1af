package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image      = "postgres:16.3-alpine"
	dbName     = "livematch"
	dbUser     = "livematch"
	dbPassword = "secret"
)

// DBContainer - одноразовый postgres для интеграционных тестов.
type DBContainer struct {
	container *postgres.PostgresContainer
}

func NewDBContainer(ctx context.Context) (*DBContainer, error) {
	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("error starting container: %w", err)
	}

	return &DBContainer{
		container: container,
	}, nil
}

func (c *DBContainer) Shutdown(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("error terminating container: %w", err)
	}
	return nil
}

func (c *DBContainer) ConnectionString(ctx context.Context) (string, error) {
	// explicitly set sslmode=disable because the container is not configured to use TLS
	return c.container.ConnectionString(ctx, "sslmode=disable")
}
