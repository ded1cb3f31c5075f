package constants

// Static route constants
const (
	WebhookRoute = "/webhooks/:provider"

	APIRoute   = "/api"
	APIV1Route = "/v1"

	CheckoutRoute   = "/checkout"
	JobsRoute       = "/jobs"
	JobPublishRoute = "/jobs/:id/publish"
	CreditsRoute    = "/credits/:kind"
)
