package whatsapp

import (
	"context"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/protocol"
)

// WhatsAppNodeFactory creates WhatsAppNode instances.
type WhatsAppNodeFactory struct{}

// NewWhatsAppNodeFactory creates a new WhatsApp node factory.
func NewWhatsAppNodeFactory() protocol.NodeFactory {
	return &WhatsAppNodeFactory{}
}

func (f *WhatsAppNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewWhatsAppNode(id, config)
}

func (f *WhatsAppNodeFactory) ID() string {
	return models.NodeTypeWhatsApp
}

func (f *WhatsAppNodeFactory) Name() string {
	return "WhatsApp Message"
}

func (f *WhatsAppNodeFactory) Description() string {
	return "Sends a templated text message through the WhatsApp Cloud API"
}

// Schema returns the JSON schema for WhatsApp node configuration.
func (f *WhatsAppNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"phone_number_id": map[string]any{
				"type":        "string",
				"description": "Sender phone number id from the Cloud API",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient phone number. Supports templating",
				"examples": []string{
					"{{contact.phone}}",
				},
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Message text. Supports templating",
			},
		},
		"required": []string{"phone_number_id", "to", "message"},
	}
}
