package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// RunRepository stores runs as JSON files. Idempotent creation is
// enforced with an exclusive marker file keyed by the
// (trigger, subject, occurrence) triple.
type RunRepository struct {
	persistence *Persistence
}

func occurrenceKey(run *models.AutomationRun) string {
	return fmt.Sprintf("%s_%s_%s", run.TriggerID, run.SubjectID, run.OccurrenceID)
}

func (r *RunRepository) Create(_ context.Context, run *models.AutomationRun) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		run.ID = id.String()
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	// O_EXCL makes the marker the uniqueness constraint.
	marker := r.persistence.path("runs_by_occurrence", occurrenceKey(run))

	file, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return &persistence.RunError{Op: "Create", RunID: run.ID, Err: persistence.ErrDuplicateRun}
		}

		return fmt.Errorf("failed to create occurrence marker: %w", err)
	}

	_, _ = file.WriteString(run.ID)
	_ = file.Close()

	return r.persistence.writeJSON("runs", run.ID, run)
}

func (r *RunRepository) GetByID(_ context.Context, id string) (*models.AutomationRun, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	run := &models.AutomationRun{}
	if err := r.persistence.readJSON("runs", id, run, persistence.ErrRunNotFound); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *RunRepository) Update(_ context.Context, run *models.AutomationRun) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if _, err := os.Stat(r.persistence.path("runs", run.ID)); err != nil {
		return &persistence.RunError{Op: "Update", RunID: run.ID, Err: persistence.ErrRunNotFound}
	}

	return r.persistence.writeJSON("runs", run.ID, run)
}

func (r *RunRepository) ListByAutomation(_ context.Context, automationID string) ([]*models.AutomationRun, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("runs")
	if err != nil {
		return nil, err
	}

	runs := make([]*models.AutomationRun, 0)

	for _, id := range ids {
		run := &models.AutomationRun{}
		if err := r.persistence.readJSON("runs", id, run, persistence.ErrRunNotFound); err != nil {
			return nil, err
		}

		if run.AutomationID == automationID {
			runs = append(runs, run)
		}
	}

	return runs, nil
}
