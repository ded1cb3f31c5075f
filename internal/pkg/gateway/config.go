package gateway

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/arminiranpour/cnaghsh/internal/pkg/env"
)

// Config carries the webhook shared secrets. It is built once at process
// start and handed to the reconciler; nothing in this package reads the
// environment after that.
type Config struct {
	// Secrets maps provider name to its webhook secret.
	Secrets map[string]string
	// SharedSecret is the fallback used when a provider has no own secret.
	SharedSecret string
}

// ConfigFromEnv builds the webhook secret configuration from
// <PROVIDER>_WEBHOOK_SECRET variables plus the WEBHOOK_SHARED_SECRET
// fallback. Providers left without any secret run unverified (sandbox);
// that is logged loudly so it cannot go unnoticed outside development.
func ConfigFromEnv() Config {
	cfg := Config{
		Secrets:      make(map[string]string),
		SharedSecret: strings.TrimSpace(env.GetEnv("WEBHOOK_SHARED_SECRET", "")),
	}
	for _, name := range Names() {
		key := strings.ToUpper(name) + "_WEBHOOK_SECRET"
		if secret := strings.TrimSpace(env.GetEnv(key, "")); secret != "" {
			cfg.Secrets[name] = secret
		}
	}
	for _, name := range Names() {
		if cfg.SecretFor(name) == "" {
			log.Printf("WARNING: no webhook secret configured for provider %q, signature checks disabled (sandbox mode)", name)
		}
	}
	return cfg
}

// SecretFor returns the secret used to verify callbacks from the given
// provider, falling back to the shared secret.
func (c Config) SecretFor(provider string) string {
	if s, ok := c.Secrets[strings.ToLower(strings.TrimSpace(provider))]; ok && s != "" {
		return s
	}
	return c.SharedSecret
}

// Verify checks the callback signature header against the provider's secret.
// With no secret configured verification passes (sandbox mode). Otherwise the
// header must be present and match in constant time; a length mismatch is
// rejected without byte-wise comparison work.
func (c Config) Verify(provider, signatureHeader string) bool {
	secret := c.SecretFor(provider)
	if secret == "" {
		return true
	}
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sig), []byte(secret)) == 1
}
