package file

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// TriggerRepository stores automation triggers as JSON files.
type TriggerRepository struct {
	persistence *Persistence
}

func (r *TriggerRepository) Save(_ context.Context, trigger *models.AutomationTrigger) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	now := time.Now().UTC()

	if trigger.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		trigger.ID = id.String()
	}

	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	return r.persistence.writeJSON("triggers", trigger.ID, trigger)
}

func (r *TriggerRepository) GetByID(_ context.Context, id string) (*models.AutomationTrigger, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	trigger := &models.AutomationTrigger{}
	if err := r.persistence.readJSON("triggers", id, trigger, persistence.ErrTriggerNotFound); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (r *TriggerRepository) Delete(_ context.Context, id string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := os.Remove(r.persistence.path("triggers", id)); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrTriggerNotFound
		}

		return err
	}

	return nil
}

func (r *TriggerRepository) ListByAutomation(_ context.Context, automationID string) ([]*models.AutomationTrigger, error) {
	return r.list(func(trigger *models.AutomationTrigger) bool {
		return trigger.AutomationID == automationID
	})
}

func (r *TriggerRepository) ListByEventKey(_ context.Context, workspaceID, eventKey string) ([]*models.AutomationTrigger, error) {
	return r.list(func(trigger *models.AutomationTrigger) bool {
		return trigger.WorkspaceID == workspaceID && trigger.EventKey == eventKey
	})
}

func (r *TriggerRepository) list(keep func(*models.AutomationTrigger) bool) ([]*models.AutomationTrigger, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("triggers")
	if err != nil {
		return nil, err
	}

	triggers := make([]*models.AutomationTrigger, 0)

	for _, id := range ids {
		trigger := &models.AutomationTrigger{}
		if err := r.persistence.readJSON("triggers", id, trigger, persistence.ErrTriggerNotFound); err != nil {
			return nil, err
		}

		if keep(trigger) {
			triggers = append(triggers, trigger)
		}
	}

	return triggers, nil
}
