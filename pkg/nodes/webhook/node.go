// Package webhook provides the HTTP webhook node for automation runs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/protocol"
	"github.com/luisscruza/optiflow-sub005/pkg/template"
)

// HTTPError is returned when the endpoint answers with a non-2xx
// status. It carries the status code so callers can distinguish
// endpoint rejections from transport failures.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("webhook returned HTTP %d", e.StatusCode)
}

// WebhookNode posts a templated payload to an external HTTP endpoint.
type WebhookNode struct {
	id     string
	config Config
	client *http.Client
}

// Config defines the configuration for webhook nodes. URL, header
// values and the body all support templating. The body may be a plain
// string or a structural value (object/array) that is rendered
// recursively and sent as JSON.
type Config struct {
	URL     string         `json:"url"`
	Method  string         `json:"method"`
	Headers map[string]any `json:"headers"`
	Body    any            `json:"body,omitempty"`
}

// NewWebhookNode creates a new webhook node from its raw definition
// configuration.
func NewWebhookNode(id string, config map[string]any) (*WebhookNode, error) {
	cfg := Config{
		Method:  http.MethodPost,
		Headers: make(map[string]any),
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	cfg.URL = url

	if method, ok := config["method"].(string); ok && method != "" {
		cfg.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			cfg.Headers[key] = value
		}
	}

	cfg.Body = config["body"]

	return &WebhookNode{
		id:     id,
		config: cfg,
		client: &http.Client{},
	}, nil
}

func (n *WebhookNode) ID() string {
	return n.id
}

func (n *WebhookNode) Type() string {
	return models.NodeTypeWebhook
}

func (n *WebhookNode) Retryable() bool {
	return true
}

// Execute renders the configuration against the run context and
// performs the request. Any non-2xx status is an error.
func (n *WebhookNode) Execute(ctx context.Context, executionCtx models.ExecutionContext) (*protocol.NodeResult, error) {
	url := template.RenderStringWithContext(n.config.URL, &executionCtx)

	var reader io.Reader

	switch body := n.config.Body.(type) {
	case nil:
	case string:
		if rendered := template.RenderStringWithContext(body, &executionCtx); rendered != "" {
			reader = strings.NewReader(rendered)
		}
	default:
		// Structural bodies render recursively; non-string leaves keep
		// their JSON types.
		encoded, err := json.Marshal(template.RenderWithContext(body, &executionCtx))
		if err != nil {
			return nil, fmt.Errorf("failed to encode webhook body: %w", err)
		}

		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, n.config.Method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}

	if _, ok := n.config.Headers["Content-Type"]; reader != nil && !ok {
		request.Header.Set("Content-Type", "application/json")
	}

	for key, value := range n.config.Headers {
		request.Header.Set(key, headerString(template.RenderWithContext(value, &executionCtx)))
	}

	response, err := n.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: response.StatusCode, Body: string(responseBody)}
	}

	output := map[string]any{
		"status_code": response.StatusCode,
	}

	var parsed any
	if err := json.Unmarshal(responseBody, &parsed); err == nil {
		output["body"] = parsed
	} else {
		output["body"] = string(responseBody)
	}

	return &protocol.NodeResult{Output: output}, nil
}

func headerString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprint(value)
}
