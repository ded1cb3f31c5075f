package controllers

import (
	"github.com/arminiranpour/cnaghsh/internal/pkg/gateway"
)

// webhookCfg holds the webhook secret configuration. It is built exactly once
// at startup via Setup; handlers never read the environment themselves.
var webhookCfg gateway.Config

// Setup builds the controller-level configuration. Must run before the
// router installs any handler.
func Setup() {
	webhookCfg = gateway.ConfigFromEnv()
}

// WebhookConfig exposes the active webhook configuration (used by tests to
// inject secrets).
func WebhookConfig() gateway.Config {
	return webhookCfg
}

// SetWebhookConfig overrides the webhook configuration. Intended for tests.
func SetWebhookConfig(cfg gateway.Config) {
	webhookCfg = cfg
}
