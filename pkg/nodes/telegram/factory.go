package telegram

import (
	"context"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/protocol"
)

// TelegramNodeFactory creates TelegramNode instances.
type TelegramNodeFactory struct{}

// NewTelegramNodeFactory creates a new Telegram node factory.
func NewTelegramNodeFactory() protocol.NodeFactory {
	return &TelegramNodeFactory{}
}

func (f *TelegramNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewTelegramNode(id, config)
}

func (f *TelegramNodeFactory) ID() string {
	return models.NodeTypeTelegram
}

func (f *TelegramNodeFactory) Name() string {
	return "Telegram Message"
}

func (f *TelegramNodeFactory) Description() string {
	return "Sends a templated message to a Telegram chat through the Bot API"
}

// Schema returns the JSON schema for Telegram node configuration.
func (f *TelegramNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"chat_id": map[string]any{
				"type":        "string",
				"description": "Target chat id. Supports templating",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Message text. Supports templating",
				"examples": []string{
					"Job {{job.id}} entered {{stage.name}}",
				},
			},
			"parse_mode": map[string]any{
				"type": "string",
				"enum": []string{"Markdown", "MarkdownV2", "HTML"},
			},
		},
		"required": []string{"chat_id", "message"},
	}
}
