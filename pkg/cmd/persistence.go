package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence/file"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. postgres:// URLs get the SQL backend, anything else is
// treated as a filesystem root for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	provider := ""
	if idx := strings.Index(databaseURL, "://"); idx != -1 {
		provider = databaseURL[:idx]
	}

	switch provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgres persistence: %w", err))
		}

		return p
	case "file", "":
		root := strings.TrimPrefix(databaseURL, "file://")

		p, err := file.NewPersistence(root)
		if err != nil {
			panic(fmt.Errorf("failed to initialize file persistence: %w", err))
		}

		return p
	default:
		panic("Unsupported persistence provider: " + provider)
	}
}
