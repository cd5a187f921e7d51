package constants

// Static route constants
const (
	WebhooksRoute = "/webhooks/:provider"
	APIRoute      = "/api"
	APIV1Route    = "/v1"
	MetricsRoute  = "/metrics"
)
