package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// VersionRepository stores immutable definition snapshots. Rows are
// insert-only; the unique (automation_id, version) constraint guards
// against concurrent publishes racing to the same number.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *VersionRepository) Create(ctx context.Context, version *models.AutomationVersion) error {
	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate version ID: %w", err)
		}

		version.ID = id.String()
	}

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	definitionJSON, err := json.Marshal(version.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `
		INSERT INTO automation_versions (id, automation_id, version, definition, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		version.ID,
		version.AutomationID,
		version.Version,
		definitionJSON,
		version.CreatedBy,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create automation version: %w", err)
	}

	return nil
}

func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.AutomationVersion, error) {
	query := `
		SELECT id, automation_id, version, definition, created_by, created_at
		FROM automation_versions
		WHERE id = $1
	`

	version, err := r.scanVersion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, fmt.Errorf("failed to scan automation version: %w", err)
	}

	return version, nil
}

func (r *VersionRepository) GetByNumber(ctx context.Context, automationID string, number int) (*models.AutomationVersion, error) {
	query := `
		SELECT id, automation_id, version, definition, created_by, created_at
		FROM automation_versions
		WHERE automation_id = $1 AND version = $2
	`

	version, err := r.scanVersion(r.db.QueryRowContext(ctx, query, automationID, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, fmt.Errorf("failed to scan automation version: %w", err)
	}

	return version, nil
}

// LatestNumber returns the highest version number for the automation,
// or 0 when no versions exist.
func (r *VersionRepository) LatestNumber(ctx context.Context, automationID string) (int, error) {
	var latest int

	query := `SELECT COALESCE(MAX(version), 0) FROM automation_versions WHERE automation_id = $1`

	if err := r.db.QueryRowContext(ctx, query, automationID).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to query latest version number: %w", err)
	}

	return latest, nil
}

func (r *VersionRepository) scanVersion(scanner interface {
	Scan(dest ...any) error
}) (*models.AutomationVersion, error) {
	var (
		version        models.AutomationVersion
		definitionJSON []byte
	)

	err := scanner.Scan(
		&version.ID,
		&version.AutomationID,
		&version.Version,
		&definitionJSON,
		&version.CreatedBy,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(definitionJSON, &version.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}

	return &version, nil
}
