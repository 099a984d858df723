package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAliyunQwenChatModel_Validation(t *testing.T) {
	_, err := NewAliyunQwenChatModel("", "qwen-plus", "")
	assert.Error(t, err, "空API密钥应该被拒绝")

	m, err := NewAliyunQwenChatModel("key", "", "")
	require.NoError(t, err)
	assert.Equal(t, defaultQwenModelName, m.modelName)
	assert.Equal(t, openAICompatibleQwenAPIURL, m.apiURL)
}

func TestAliyunQwenChatModel_Generate(t *testing.T) {
	var captured OpenAIChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		content := "evaluation result"
		resp := OpenAICompletionResponse{
			Id:    "chatcmpl-1",
			Model: captured.Model,
			Choices: []OpenAIChatChoice{
				{Message: OpenAIMessage{Role: "assistant", Content: &content}, FinishReason: "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	m, err := NewAliyunQwenChatModel("test-key", "qwen-plus", server.URL)
	require.NoError(t, err)

	messages := []*schema.Message{
		schema.SystemMessage("system prompt"),
		schema.UserMessage("user prompt"),
	}
	resp, err := m.Generate(context.Background(), messages,
		model.WithTemperature(0.3), model.WithMaxTokens(500))
	require.NoError(t, err)

	assert.Equal(t, schema.Assistant, resp.Role)
	assert.Equal(t, "evaluation result", resp.Content)

	// 调用级选项应透传到请求体
	assert.Equal(t, "qwen-plus", captured.Model)
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.3, float64(*captured.Temperature), 1e-6)
	require.NotNil(t, captured.MaxTokens)
	assert.Equal(t, 500, *captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
}

func TestAliyunQwenChatModel_GenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit"}}`))
	}))
	defer server.Close()

	m, err := NewAliyunQwenChatModel("test-key", "qwen-plus", server.URL)
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("q")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API 请求失败")
}

func TestAliyunQwenChatModel_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer server.Close()

	m, err := NewAliyunQwenChatModel("test-key", "", server.URL)
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("q")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "空选项")
}
