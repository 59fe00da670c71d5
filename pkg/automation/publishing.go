package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/luisscruza/optiflow-sub005/pkg/registry"
)

// PublishingService owns the version lifecycle: drafting new
// definition snapshots and moving the published pointer. Versions are
// append-only; a definition is never edited in place.
type PublishingService struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	logger      *slog.Logger
}

// NewPublishingService creates a new publishing service.
func NewPublishingService(p persistence.Persistence, r *registry.Registry, logger *slog.Logger) *PublishingService {
	return &PublishingService{persistence: p, registry: r, logger: logger}
}

// CreateDraft validates a definition and stores it as the next
// version of the automation. The draft is inert until published.
func (s *PublishingService) CreateDraft(ctx context.Context, automationID string, definition *models.Definition, createdBy string) (*models.AutomationVersion, error) {
	if _, err := s.persistence.AutomationRepository().GetByID(ctx, automationID); err != nil {
		return nil, err
	}

	graph := models.NewGraph(definition)
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	for _, node := range definition.Nodes {
		if !s.registry.IsRegistered(node.Type) {
			return nil, fmt.Errorf("node %s has unregistered type '%s'", node.ID, node.Type)
		}

		if err := s.registry.ValidateConfig(node.Type, node.Config); err != nil {
			return nil, fmt.Errorf("node %s: %w", node.ID, err)
		}
	}

	latest, err := s.persistence.VersionRepository().LatestNumber(ctx, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to determine next version number: %w", err)
	}

	version := &models.AutomationVersion{
		AutomationID: automationID,
		Version:      latest + 1,
		Definition:   *definition,
		CreatedBy:    createdBy,
	}

	if err := s.persistence.VersionRepository().Create(ctx, version); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Created draft version",
		"automation_id", automationID, "version", version.Version)

	return version, nil
}

// Publish points the automation at an existing version. In-flight
// runs keep the snapshot they started with.
func (s *PublishingService) Publish(ctx context.Context, automationID string, versionNumber int) (*models.Automation, error) {
	if _, err := s.persistence.VersionRepository().GetByNumber(ctx, automationID, versionNumber); err != nil {
		return nil, err
	}

	if err := s.persistence.AutomationRepository().SetPublishedVersion(ctx, automationID, versionNumber); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Published version",
		"automation_id", automationID, "version", versionNumber)

	return s.persistence.AutomationRepository().GetByID(ctx, automationID)
}

// GetPublished returns the automation and the version snapshot that
// new runs would use.
func (s *PublishingService) GetPublished(ctx context.Context, automationID string) (*models.Automation, *models.AutomationVersion, error) {
	automation, err := s.persistence.AutomationRepository().GetByID(ctx, automationID)
	if err != nil {
		return nil, nil, err
	}

	if !automation.IsPublished() {
		return nil, nil, ErrNotPublished
	}

	version, err := s.persistence.VersionRepository().GetByNumber(ctx, automationID, automation.PublishedVersion)
	if err != nil {
		return nil, nil, err
	}

	return automation, version, nil
}
