package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/arminiranpour/cnaghsh/internal/pkg/cache"
	"github.com/arminiranpour/cnaghsh/internal/pkg/database"
	"github.com/arminiranpour/cnaghsh/internal/pkg/entitlements"
	"github.com/arminiranpour/cnaghsh/internal/pkg/jobs"
	"github.com/arminiranpour/cnaghsh/internal/pkg/usercontext"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type jobCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"max=10000"`
	City        string `json:"city" validate:"max=100"`
}

// HandleJobCreate stores a draft job posting for the logged-in user. Drafts
// are free; publishing is what spends a credit.
func HandleJobCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login_required"})
	}

	var req jobCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	svc := jobs.NewService(database.GetDB())
	job, err := svc.Create(userCtx.UserID, req.Title, req.Description, req.City)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(job)
}

// HandleJobPublish publishes a draft job, spending one job-post credit inside
// the publish transaction. Entitlement shortfalls map to 402 with a distinct
// code per cause so the UI can show the right call to action.
func HandleJobPublish(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login_required"})
	}

	jobID, err := c.ParamsInt("id")
	if err != nil || jobID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_job_id"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := jobs.NewService(database.GetDB())
	job, err := svc.Publish(ctx, userCtx.UserID, uint(jobID))
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job_not_found"})
		case errors.Is(err, jobs.ErrNotOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not_job_owner"})
		case errors.Is(err, jobs.ErrAlreadyPublished):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_published"})
		case errors.Is(err, entitlements.ErrNoEntitlement):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "no_entitlement"})
		case errors.Is(err, entitlements.ErrInsufficientCredits):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient_credits"})
		case errors.Is(err, entitlements.ErrExpiredCredits):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "expired_credits"})
		case errors.Is(err, entitlements.ErrConcurrentUpdate):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "credit_contention_retry"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "publish_failed"})
		}
	}

	_ = cache.Delete(creditsCacheKey(userCtx.UserID, entitlements.KindJobPost))

	return c.Status(fiber.StatusOK).JSON(job)
}
