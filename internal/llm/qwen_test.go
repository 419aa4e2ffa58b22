package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQwenChatModelValidation(t *testing.T) {
	_, err := NewQwenChatModel("", "qwen-plus", "")
	assert.Error(t, err, "空API密钥应报错")

	m, err := NewQwenChatModel("key", "", "")
	require.NoError(t, err)
	assert.Equal(t, defaultQwenModelName, m.modelName, "模型名缺省时应使用默认模型")
	assert.Equal(t, openAICompatibleQwenAPIURL, m.apiURL)
}

func TestQwenGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req openAIChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-turbo", req.Model)
		require.Len(t, req.Messages, 2)

		content := `{"skill_ratio": 0.8, "experience_ratio": 0.5}`
		resp := openAICompletionResponse{
			Id: "chatcmpl-1",
			Choices: []openAIChatChoice{
				{Message: openAIMessage{Role: "assistant", Content: &content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	m, err := NewQwenChatModel("test-key", "qwen-turbo", server.URL, WithTemperature(0.2), WithMaxTokens(512))
	require.NoError(t, err)

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("你是评估助手"),
		schema.UserMessage("评估这份简历"),
	})
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Contains(t, msg.Content, "skill_ratio")
}

func TestQwenGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	m, err := NewQwenChatModel("test-key", "qwen-plus", server.URL)
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.Error(t, err)
}

func TestQwenGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer server.Close()

	m, err := NewQwenChatModel("test-key", "qwen-plus", server.URL)
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.Error(t, err)
}
