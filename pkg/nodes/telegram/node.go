// Package telegram provides the Telegram message node for automation runs.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/protocol"
	"github.com/luisscruza/optiflow-sub005/pkg/template"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// TelegramNode sends a templated message through the Telegram Bot API.
// The bot token comes from configuration or the TELEGRAM_BOT_TOKEN
// environment variable.
type TelegramNode struct {
	id      string
	config  Config
	baseURL string
	client  *http.Client
}

// Config defines the configuration for Telegram message nodes.
type Config struct {
	ChatID    string `json:"chat_id"`
	Message   string `json:"message"`
	BotToken  string `json:"bot_token,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// NewTelegramNode creates a new Telegram node from its raw definition
// configuration.
func NewTelegramNode(id string, config map[string]any) (*TelegramNode, error) {
	var cfg Config

	chatID, ok := config["chat_id"].(string)
	if !ok || chatID == "" {
		return nil, errors.New("missing required field 'chat_id'")
	}

	message, ok := config["message"].(string)
	if !ok || message == "" {
		return nil, errors.New("missing required field 'message'")
	}

	cfg.ChatID = chatID
	cfg.Message = message

	if token, ok := config["bot_token"].(string); ok {
		cfg.BotToken = token
	}

	if cfg.BotToken == "" {
		cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}

	if cfg.BotToken == "" {
		return nil, errors.New("missing bot token: set 'bot_token' or TELEGRAM_BOT_TOKEN")
	}

	if parseMode, ok := config["parse_mode"].(string); ok {
		cfg.ParseMode = parseMode
	}

	baseURL := defaultAPIBaseURL
	if override, ok := config["api_base_url"].(string); ok && override != "" {
		baseURL = override
	}

	return &TelegramNode{
		id:      id,
		config:  cfg,
		baseURL: baseURL,
		client:  &http.Client{},
	}, nil
}

func (n *TelegramNode) ID() string {
	return n.id
}

func (n *TelegramNode) Type() string {
	return models.NodeTypeTelegram
}

func (n *TelegramNode) Retryable() bool {
	return true
}

func (n *TelegramNode) Execute(ctx context.Context, executionCtx models.ExecutionContext) (*protocol.NodeResult, error) {
	payload := map[string]any{
		"chat_id": template.RenderStringWithContext(n.config.ChatID, &executionCtx),
		"text":    template.RenderStringWithContext(n.config.Message, &executionCtx),
	}

	if n.config.ParseMode != "" {
		payload["parse_mode"] = n.config.ParseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.config.BotToken)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build telegram request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")

	response, err := n.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("telegram request failed: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read telegram response: %w", err)
	}

	var apiResponse struct {
		OK          bool           `json:"ok"`
		Description string         `json:"description"`
		Result      map[string]any `json:"result"`
	}

	if err := json.Unmarshal(responseBody, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode telegram response: %w", err)
	}

	if !apiResponse.OK {
		return nil, fmt.Errorf("telegram API rejected message: %s", apiResponse.Description)
	}

	return &protocol.NodeResult{Output: map[string]any{
		"message": apiResponse.Result,
	}}, nil
}
