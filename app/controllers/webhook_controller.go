package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arminiranpour/cnaghsh/internal/pkg/checkout"
	"github.com/arminiranpour/cnaghsh/internal/pkg/database"
	"github.com/arminiranpour/cnaghsh/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2"
)

// signatureHeader carries the gateway's shared-secret value on callbacks.
const signatureHeader = "X-Webhook-Signature"

// HandleProviderWebhook processes a payment gateway callback for the provider
// named in the route. Rejections map to 4xx so gateways do not retry bad
// deliveries forever; only genuine server faults return 500.
func HandleProviderWebhook(c *fiber.Ctx) error {
	providerName := strings.ToLower(strings.TrimSpace(c.Params("provider")))
	signature := strings.TrimSpace(c.Get(signatureHeader))
	rawBody := append([]byte(nil), c.BodyRaw()...)

	db := database.GetDB()
	svc := checkout.NewServiceFromDB(db, webhookCfg, entitlements.NewApplier(db))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := svc.ProcessCallback(ctx, providerName, signature, rawBody)
	if err != nil {
		var rejection *checkout.Error
		if errors.As(err, &rejection) {
			return c.Status(rejection.Status).JSON(fiber.Map{"error": rejection.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "status": result.Status})
}
