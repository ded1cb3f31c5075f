package controllers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arminiranpour/cnaghsh/internal/pkg/gateway"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookTestApp() *fiber.App {
	app := fiber.New()
	app.Post("/webhooks/:provider", HandleProviderWebhook)
	return app
}

func TestHandleProviderWebhook_Rejections(t *testing.T) {
	SetWebhookConfig(gateway.Config{
		Secrets: map[string]string{"idpay": "hook-secret"},
	})

	app := newWebhookTestApp()

	tests := []struct {
		name       string
		provider   string
		signature  string
		body       string
		wantStatus int
	}{
		{
			name:       "unknown provider",
			provider:   "paypal",
			signature:  "hook-secret",
			body:       `{"sessionId":"S1"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "missing signature",
			provider:   "idpay",
			signature:  "",
			body:       `{"sessionId":"S1"}`,
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "wrong signature",
			provider:   "idpay",
			signature:  "not-the-secret",
			body:       `{"sessionId":"S1"}`,
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "malformed body",
			provider:   "idpay",
			signature:  "hook-secret",
			body:       `{not json`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "missing session id",
			provider:   "idpay",
			signature:  "hook-secret",
			body:       `{"id":"idp_1","track_id":"trk_1","status":100}`,
			wantStatus: fiber.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/webhooks/"+tc.provider, strings.NewReader(tc.body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			if tc.signature != "" {
				req.Header.Set("X-Webhook-Signature", tc.signature)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}
