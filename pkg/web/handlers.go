// Package web provides HTTP handlers and REST API endpoints for automation management.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/luisscruza/optiflow-sub005/pkg/automation"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

type APIHandlers struct {
	persistence  persistence.Persistence
	publishing   *automation.PublishingService
	orchestrator *automation.Orchestrator
	validator    *validator.Validate
}

func NewAPIHandlers(
	p persistence.Persistence,
	publishing *automation.PublishingService,
	orchestrator *automation.Orchestrator,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence:  p,
		publishing:   publishing,
		orchestrator: orchestrator,
		validator:    validator,
	}
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	workspaceID := c.Query("workspace_id")
	if workspaceID == "" {
		return badRequest(c, "workspace_id query parameter is required")
	}

	automations, err := h.persistence.AutomationRepository().GetAll(c.Context(), workspaceID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"automations": automations})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	auto, err := h.persistence.AutomationRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(auto)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	auto := &models.Automation{
		WorkspaceID: req.WorkspaceID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if req.IsActive != nil {
		auto.IsActive = *req.IsActive
	}

	if err := h.persistence.AutomationRepository().Save(c.Context(), auto); err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(auto)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req UpdateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.persistence.AutomationRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := h.persistence.AutomationRepository().Save(c.Context(), existing); err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	if err := h.persistence.AutomationRepository().Delete(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateDraft(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req CreateDraftRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.publishing.CreateDraft(c.Context(), id, req.Definition, req.CreatedBy)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) GetVersion(c fiber.Ctx) error {
	id := c.Params("id")

	number, err := strconv.Atoi(c.Params("version"))
	if err != nil || number < 1 {
		return badRequest(c, "Version must be a positive integer")
	}

	version, err := h.persistence.VersionRepository().GetByNumber(c.Context(), id, number)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) PublishAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req PublishRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	published, err := h.publishing.Publish(c.Context(), id, req.Version)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) GetPublishedVersion(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	auto, version, err := h.publishing.GetPublished(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"automation": auto,
		"version":    version,
	})
}

func (h *APIHandlers) GetTriggers(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	triggers, err := h.persistence.TriggerRepository().ListByAutomation(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"triggers": triggers})
}

func (h *APIHandlers) CreateTrigger(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req CreateTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	auto, err := h.persistence.AutomationRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	trigger := &models.AutomationTrigger{
		AutomationID:    auto.ID,
		WorkspaceID:     auto.WorkspaceID,
		EventKey:        req.EventKey,
		WorkflowID:      req.WorkflowID,
		WorkflowStageID: req.WorkflowStageID,
		IsActive:        true,
	}
	if req.IsActive != nil {
		trigger.IsActive = *req.IsActive
	}

	if err := h.persistence.TriggerRepository().Save(c.Context(), trigger); err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(trigger)
}

func (h *APIHandlers) GetTrigger(c fiber.Ctx) error {
	id := c.Params("triggerId")
	if id == "" {
		return badRequest(c, "Trigger ID is required")
	}

	trigger, err := h.persistence.TriggerRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(trigger)
}

func (h *APIHandlers) UpdateTrigger(c fiber.Ctx) error {
	id := c.Params("triggerId")
	if id == "" {
		return badRequest(c, "Trigger ID is required")
	}

	var req UpdateTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.persistence.TriggerRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	if req.EventKey != nil {
		existing.EventKey = *req.EventKey
	}

	if req.WorkflowID != nil {
		existing.WorkflowID = req.WorkflowID
	}

	if req.WorkflowStageID != nil {
		existing.WorkflowStageID = req.WorkflowStageID
	}

	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := h.persistence.TriggerRepository().Save(c.Context(), existing); err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteTrigger(c fiber.Ctx) error {
	id := c.Params("triggerId")
	if id == "" {
		return badRequest(c, "Trigger ID is required")
	}

	if err := h.persistence.TriggerRepository().Delete(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// EmitEvent accepts a domain event occurrence and creates runs for
// every matching trigger. Replays of an occurrence are absorbed and
// report zero created runs.
func (h *APIHandlers) EmitEvent(c fiber.Ctx) error {
	var req EmitEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := &models.TriggerEvent{
		OccurrenceID:    req.OccurrenceID,
		EventKey:        req.EventKey,
		WorkspaceID:     req.WorkspaceID,
		WorkflowID:      req.WorkflowID,
		WorkflowStageID: req.WorkflowStageID,
		SubjectType:     req.SubjectType,
		SubjectID:       req.SubjectID,
		Payload:         req.Payload,
		OccurredAt:      time.Now().UTC(),
	}

	runIDs, err := h.orchestrator.Emit(c.Context(), event)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(EmitEventResponse{RunIDs: runIDs})
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	runs, err := h.persistence.RunRepository().ListByAutomation(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("runId")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.persistence.RunRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) GetRunNodes(c fiber.Ctx) error {
	id := c.Params("runId")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	if _, err := h.persistence.RunRepository().GetByID(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	nodeRuns, err := h.persistence.NodeRunRepository().ListByRun(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"node_runs": nodeRuns})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	var detail string
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		detail = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"detail":    detail,
		"timestamp": time.Now().UTC(),
	})
}
