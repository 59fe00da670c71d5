package file

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// VersionRepository stores immutable definition snapshots. Rows are
// only ever created, never rewritten.
type VersionRepository struct {
	persistence *Persistence
}

func (r *VersionRepository) Create(_ context.Context, version *models.AutomationVersion) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		version.ID = id.String()
	}

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	return r.persistence.writeJSON("versions", version.ID, version)
}

func (r *VersionRepository) GetByID(_ context.Context, id string) (*models.AutomationVersion, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	version := &models.AutomationVersion{}
	if err := r.persistence.readJSON("versions", id, version, persistence.ErrVersionNotFound); err != nil {
		return nil, err
	}

	return version, nil
}

func (r *VersionRepository) GetByNumber(ctx context.Context, automationID string, number int) (*models.AutomationVersion, error) {
	versions, err := r.listByAutomation(automationID)
	if err != nil {
		return nil, err
	}

	for _, version := range versions {
		if version.Version == number {
			return version, nil
		}
	}

	return nil, persistence.ErrVersionNotFound
}

func (r *VersionRepository) LatestNumber(_ context.Context, automationID string) (int, error) {
	versions, err := r.listByAutomation(automationID)
	if err != nil {
		return 0, err
	}

	latest := 0

	for _, version := range versions {
		if version.Version > latest {
			latest = version.Version
		}
	}

	return latest, nil
}

func (r *VersionRepository) listByAutomation(automationID string) ([]*models.AutomationVersion, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("versions")
	if err != nil {
		return nil, err
	}

	versions := make([]*models.AutomationVersion, 0)

	for _, id := range ids {
		version := &models.AutomationVersion{}
		if err := r.persistence.readJSON("versions", id, version, persistence.ErrVersionNotFound); err != nil {
			return nil, err
		}

		if version.AutomationID == automationID {
			versions = append(versions, version)
		}
	}

	return versions, nil
}
