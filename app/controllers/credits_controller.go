package controllers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arminiranpour/cnaghsh/internal/pkg/cache"
	"github.com/arminiranpour/cnaghsh/internal/pkg/database"
	"github.com/arminiranpour/cnaghsh/internal/pkg/entitlements"
	"github.com/arminiranpour/cnaghsh/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

const creditsSummaryTTL = 30 * time.Second

func creditsCacheKey(userID uint, kind string) string {
	return fmt.Sprintf("credits:%d:%s", userID, kind)
}

// HandleCreditsSummary reports the logged-in user's active credit pool of one
// kind. The summary is null (not zero) when no active bundle exists, so the
// UI can tell "never purchased / expired" apart from "purchased but spent".
func HandleCreditsSummary(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login_required"})
	}

	kind := c.Params("kind")
	switch kind {
	case entitlements.KindJobPost, entitlements.KindCoursePublish:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_credit_kind"})
	}

	key := creditsCacheKey(userCtx.UserID, kind)
	if cached, err := cache.Get(key); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	}

	sum, err := entitlements.Summarize(database.GetDB(), userCtx.UserID, kind)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "summary_failed"})
	}

	body, err := json.Marshal(fiber.Map{"kind": kind, "summary": sum})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "summary_failed"})
	}
	_ = cache.Set(key, string(body), creditsSummaryTTL)

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(body)
}
