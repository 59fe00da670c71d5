package webhook

import (
	"context"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/protocol"
)

// WebhookNodeFactory creates WebhookNode instances.
type WebhookNodeFactory struct{}

// NewWebhookNodeFactory creates a new webhook node factory.
func NewWebhookNodeFactory() protocol.NodeFactory {
	return &WebhookNodeFactory{}
}

func (f *WebhookNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewWebhookNode(id, config)
}

func (f *WebhookNodeFactory) ID() string {
	return models.NodeTypeWebhook
}

func (f *WebhookNodeFactory) Name() string {
	return "HTTP Webhook"
}

func (f *WebhookNodeFactory) Description() string {
	return "Sends an HTTP request to an external endpoint with a templated payload"
}

// Schema returns the JSON schema for webhook node configuration.
func (f *WebhookNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Endpoint URL. Supports templating with {{trigger.payload_field}}",
				"examples": []string{
					"https://lab.example.com/hooks/jobs",
					"https://api.example.com/jobs/{{job.id}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "POST",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers. Values support templating",
			},
			"body": map[string]any{
				"type":        []string{"string", "object", "array"},
				"description": "Request body. A string is sent verbatim after templating; objects and arrays are rendered recursively and sent as JSON",
				"examples": []any{
					`{"job": "{{job.id}}", "stage": "{{stage.name}}"}`,
					map[string]any{"job": "{{job.id}}", "rush": true},
				},
			},
		},
		"required": []string{"url"},
	}
}
