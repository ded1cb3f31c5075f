package controllers

import (
	"errors"

	"github.com/arminiranpour/cnaghsh/internal/pkg/checkout"
	"github.com/arminiranpour/cnaghsh/internal/pkg/database"
	"github.com/arminiranpour/cnaghsh/internal/pkg/entitlements"
	"github.com/arminiranpour/cnaghsh/internal/pkg/usercontext"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type checkoutStartRequest struct {
	PriceID  uint   `json:"price_id" validate:"required"`
	Provider string `json:"provider" validate:"required,oneof=zarinpal idpay nextpay"`
}

// HandleCheckoutStart opens a checkout session for the logged-in user. The
// returned session id is handed to the gateway and comes back on the webhook.
func HandleCheckoutStart(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login_required"})
	}

	var req checkoutStartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	db := database.GetDB()
	svc := checkout.NewServiceFromDB(db, webhookCfg, entitlements.NewApplier(db))

	session, err := svc.StartSession(userCtx.UserID, req.PriceID, req.Provider)
	if err != nil {
		var rejection *checkout.Error
		if errors.As(err, &rejection) {
			return c.Status(rejection.Status).JSON(fiber.Map{"error": rejection.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_start_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": session.ID,
		"provider":   session.Provider,
		"price_id":   session.PriceID,
		"status":     session.Status,
	})
}
