package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTelegramNode_Validation(t *testing.T) {
	_, err := NewTelegramNode("n1", map[string]any{"message": "hi", "bot_token": "t"})
	assert.Error(t, err, "chat_id is required")

	_, err = NewTelegramNode("n1", map[string]any{"chat_id": "123", "bot_token": "t"})
	assert.Error(t, err, "message is required")
}

func TestTelegramNode_SendsRenderedMessage(t *testing.T) {
	var (
		receivedPath string
		receivedBody map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&receivedBody)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 7},
		})
	}))
	defer server.Close()

	node, err := NewTelegramNode("tg", map[string]any{
		"chat_id":      "-100200300",
		"message":      "Job {{job.id}} entered {{stage.name}}",
		"bot_token":    "test-token",
		"api_base_url": server.URL,
	})
	require.NoError(t, err)

	result, err := node.Execute(context.Background(), models.ExecutionContext{
		TriggerData: map[string]any{
			"job":   map[string]any{"id": float64(42)},
			"stage": map[string]any{"name": "Quality Control"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", receivedPath)
	assert.Equal(t, "-100200300", receivedBody["chat_id"])
	assert.Equal(t, "Job 42 entered Quality Control", receivedBody["text"])

	message, ok := result.Output["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), message["message_id"])
}

func TestTelegramNode_APIRejectionIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"description": "chat not found",
		})
	}))
	defer server.Close()

	node, err := NewTelegramNode("tg", map[string]any{
		"chat_id":      "unknown",
		"message":      "hello",
		"bot_token":    "test-token",
		"api_base_url": server.URL,
	})
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), models.ExecutionContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
