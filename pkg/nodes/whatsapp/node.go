// Package whatsapp provides the WhatsApp message node for automation runs.
package whatsapp

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

const defaultAPIBaseURL = "https://graph.facebook.com/v20.0"

// WhatsAppNode sends a templated text message through the WhatsApp
// Cloud API. The access token comes from configuration or the
// WHATSAPP_ACCESS_TOKEN environment variable.
type WhatsAppNode struct {
	id      string
	config  Config
	baseURL string
	client  *http.Client
}

// Config defines the configuration for WhatsApp message nodes.
type Config struct {
	PhoneNumberID string `json:"phone_number_id"`
	To            string `json:"to"`
	Message       string `json:"message"`
	AccessToken   string `json:"access_token,omitempty"`
}

// NewWhatsAppNode creates a new WhatsApp node from its raw definition
// configuration.
func NewWhatsAppNode(id string, config map[string]any) (*WhatsAppNode, error) {
	var cfg Config

	phoneNumberID, ok := config["phone_number_id"].(string)
	if !ok || phoneNumberID == "" {
		return nil, errors.New("missing required field 'phone_number_id'")
	}

	to, ok := config["to"].(string)
	if !ok || to == "" {
		return nil, errors.New("missing required field 'to'")
	}

	message, ok := config["message"].(string)
	if !ok || message == "" {
		return nil, errors.New("missing required field 'message'")
	}

	cfg.PhoneNumberID = phoneNumberID
	cfg.To = to
	cfg.Message = message

	if token, ok := config["access_token"].(string); ok {
		cfg.AccessToken = token
	}

	if cfg.AccessToken == "" {
		cfg.AccessToken = os.Getenv("WHATSAPP_ACCESS_TOKEN")
	}

	if cfg.AccessToken == "" {
		return nil, errors.New("missing access token: set 'access_token' or WHATSAPP_ACCESS_TOKEN")
	}

	baseURL := defaultAPIBaseURL
	if override, ok := config["api_base_url"].(string); ok && override != "" {
		baseURL = override
	}

	return &WhatsAppNode{
		id:      id,
		config:  cfg,
		baseURL: baseURL,
		client:  &http.Client{},
	}, nil
}

func (n *WhatsAppNode) ID() string {
	return n.id
}

func (n *WhatsAppNode) Type() string {
	return models.NodeTypeWhatsApp
}

func (n *WhatsAppNode) Retryable() bool {
	return true
}

func (n *WhatsAppNode) Execute(ctx context.Context, executionCtx models.ExecutionContext) (*protocol.NodeResult, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                template.RenderStringWithContext(n.config.To, &executionCtx),
		"type":              "text",
		"text": map[string]any{
			"body": template.RenderStringWithContext(n.config.Message, &executionCtx),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", n.baseURL, n.config.PhoneNumberID)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build whatsapp request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+n.config.AccessToken)

	response, err := n.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request failed: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read whatsapp response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("whatsapp API returned HTTP %d: %s", response.StatusCode, string(responseBody))
	}

	var apiResponse struct {
		Messages []map[string]any `json:"messages"`
	}

	if err := json.Unmarshal(responseBody, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode whatsapp response: %w", err)
	}

	output := map[string]any{}
	if len(apiResponse.Messages) > 0 {
		output["message_id"] = apiResponse.Messages[0]["id"]
	}

	return &protocol.NodeResult{Output: output}, nil
}
