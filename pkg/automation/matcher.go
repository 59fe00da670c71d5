package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// TriggerMatch is one trigger that fires for an event, resolved to
// the version that will execute.
type TriggerMatch struct {
	Trigger    *models.AutomationTrigger
	Automation *models.Automation
	Version    *models.AutomationVersion
}

// TriggerMatcher resolves an incoming event to the set of automations
// that must run for it.
type TriggerMatcher struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewTriggerMatcher creates a new trigger matcher.
func NewTriggerMatcher(p persistence.Persistence, logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{persistence: p, logger: logger}
}

// Match returns every active, scoped trigger whose automation is
// active and published. Triggers pointing at missing or unpublished
// automations are skipped, not errors: a stale trigger must never
// block delivery to the healthy ones.
func (m *TriggerMatcher) Match(ctx context.Context, event *models.TriggerEvent) ([]*TriggerMatch, error) {
	triggers, err := m.persistence.TriggerRepository().ListByEventKey(ctx, event.WorkspaceID, event.EventKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers for event key %s: %w", event.EventKey, err)
	}

	matches := make([]*TriggerMatch, 0)

	for _, trigger := range triggers {
		if !trigger.IsActive || !trigger.Matches(event) {
			continue
		}

		automation, err := m.persistence.AutomationRepository().GetByID(ctx, trigger.AutomationID)
		if err != nil {
			if persistence.IsNotFound(err) {
				m.logger.WarnContext(ctx, "Trigger references missing automation",
					"trigger_id", trigger.ID, "automation_id", trigger.AutomationID)

				continue
			}

			return nil, fmt.Errorf("failed to load automation %s: %w", trigger.AutomationID, err)
		}

		if !automation.IsActive || !automation.IsPublished() {
			continue
		}

		version, err := m.persistence.VersionRepository().GetByNumber(ctx, automation.ID, automation.PublishedVersion)
		if err != nil {
			if persistence.IsNotFound(err) {
				m.logger.ErrorContext(ctx, "Published version missing",
					"automation_id", automation.ID, "version", automation.PublishedVersion)

				continue
			}

			return nil, fmt.Errorf("failed to load published version of %s: %w", automation.ID, err)
		}

		matches = append(matches, &TriggerMatch{
			Trigger:    trigger,
			Automation: automation,
			Version:    version,
		})
	}

	return matches, nil
}
