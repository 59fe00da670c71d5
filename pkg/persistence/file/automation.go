package file

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// AutomationRepository stores automations as JSON files.
type AutomationRepository struct {
	persistence *Persistence
}

func (r *AutomationRepository) GetAll(_ context.Context, workspaceID string) ([]*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("automations")
	if err != nil {
		return nil, err
	}

	automations := make([]*models.Automation, 0, len(ids))

	for _, id := range ids {
		automation := &models.Automation{}
		if err := r.persistence.readJSON("automations", id, automation, persistence.ErrAutomationNotFound); err != nil {
			return nil, err
		}

		if automation.DeletedAt != nil {
			continue
		}

		if workspaceID != "" && automation.WorkspaceID != workspaceID {
			continue
		}

		automations = append(automations, automation)
	}

	return automations, nil
}

func (r *AutomationRepository) GetByID(_ context.Context, id string) (*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	automation := &models.Automation{}
	if err := r.persistence.readJSON("automations", id, automation, persistence.ErrAutomationNotFound); err != nil {
		return nil, err
	}

	if automation.DeletedAt != nil {
		return nil, persistence.ErrAutomationNotFound
	}

	return automation, nil
}

func (r *AutomationRepository) Save(_ context.Context, automation *models.Automation) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	now := time.Now().UTC()

	if automation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		automation.ID = id.String()
	}

	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	return r.persistence.writeJSON("automations", automation.ID, automation)
}

func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	automation, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	now := time.Now().UTC()
	automation.DeletedAt = &now

	return r.persistence.writeJSON("automations", automation.ID, automation)
}

func (r *AutomationRepository) SetPublishedVersion(ctx context.Context, automationID string, version int) error {
	automation, err := r.GetByID(ctx, automationID)
	if err != nil {
		return err
	}

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	automation.PublishedVersion = version
	automation.UpdatedAt = time.Now().UTC()

	return r.persistence.writeJSON("automations", automation.ID, automation)
}
