package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/luisscruza/optiflow-sub005/pkg/automation"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps engine and storage errors onto problem
// responses.
func handleDomainError(c fiber.Ctx, err error) error {
	var (
		invalidTrigger *models.InvalidTriggerError
		cyclic         *models.CyclicGraphError
		unknownNode    *models.UnknownNodeError
	)

	switch {
	case errors.As(err, &invalidTrigger), errors.As(err, &cyclic), errors.As(err, &unknownNode):
		return badRequest(c, err.Error())

	case errors.Is(err, automation.ErrNotPublished):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("not_published").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case persistence.IsDuplicateRun(err):
		return conflict(c, err.Error())

	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	default:
		return internalError(c, err)
	}
}
