package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// DashScope的OpenAI兼容端点
	openAICompatibleQwenAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName       = "qwen-plus"
)

// QwenChatModel 实现 model.ToolCallingChatModel 接口，
// 通过OpenAI兼容API与阿里云通义千问模型交互。
type QwenChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature *float64
	maxTokens   int
	httpClient  *http.Client
	boundTools  []openAITool
}

// QwenOption 模型构造选项
type QwenOption func(*QwenChatModel)

// WithTemperature 设置采样温度
func WithTemperature(t float64) QwenOption {
	return func(m *QwenChatModel) {
		m.temperature = &t
	}
}

// WithMaxTokens 设置最大输出token数
func WithMaxTokens(n int) QwenOption {
	return func(m *QwenChatModel) {
		m.maxTokens = n
	}
}

// NewQwenChatModel 创建一个新的通义千问模型实例
func NewQwenChatModel(apiKey, modelName, apiURL string, opts ...QwenOption) (*QwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultQwenModelName
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = openAICompatibleQwenAPIURL
	}

	m := &QwenChatModel{
		apiKey:     apiKey,
		modelName:  mn,
		apiURL:     url,
		httpClient: &http.Client{},
		boundTools: make([]openAITool, 0),
	}
	for _, opt := range opts {
		opt(m)
	}

	log.Printf("使用阿里云通义千问 LLM 客户端，API URL: %s, 模型: %s", url, mn)
	return m, nil
}

// --- OpenAI兼容的请求/响应结构 ---

type openAIFunctionParams struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

type openAIFunction struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  openAIFunctionParams `json:"parameters"`
}

type openAITool struct {
	Type     string         `json:"type"` // 固定为 "function"
	Function openAIFunction `json:"function"`
}

type openAIChatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Tools       []openAITool      `json:"tools,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role      string           `json:"role"`
	Content   *string          `json:"content"` // 存在tool_calls时可能为null
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	Id       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIChatChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAICompletionResponse struct {
	Id      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
}

// Generate 实现 model.ChatModel 接口
func (m *QwenChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt
	}

	reqPayload := openAIChatCompletionRequest{
		Model:       m.modelName,
		Messages:    messages,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}
	if len(m.boundTools) > 0 {
		reqPayload.Tools = m.boundTools
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var openAIResp openAICompletionResponse
	if err := json.Unmarshal(bodyBytes, &openAIResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, string(bodyBytes))
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	apiMessage := openAIResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}

	if len(apiMessage.ToolCalls) > 0 {
		resultMessage.ToolCalls = make([]schema.ToolCall, len(apiMessage.ToolCalls))
		for i, tc := range apiMessage.ToolCalls {
			resultMessage.ToolCalls[i] = schema.ToolCall{
				ID: tc.Id,
				Function: schema.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}

	if resultMessage.Role == "" {
		resultMessage.Role = schema.RoleType("assistant")
	}

	return resultMessage, nil
}

// Stream 实现 model.ChatModel 接口。评估场景走一次性生成，流式暂不支持。
func (m *QwenChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("QwenChatModel 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口。
// 匹配评估只用纯文本生成，工具参数统一按空对象声明。
func (m *QwenChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.boundTools = make([]openAITool, 0, len(tools))
	for _, toolInfo := range tools {
		if toolInfo == nil {
			continue
		}
		m.boundTools = append(m.boundTools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        toolInfo.Name,
				Description: toolInfo.Desc,
				Parameters: openAIFunctionParams{
					Type:       "object",
					Properties: map[string]interface{}{},
				},
			},
		})
	}
	return nil
}

// WithTools 满足 model.ToolCallingChatModel 接口
func (m *QwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := m.BindTools(tools); err != nil {
		return nil, err
	}
	return m, nil
}

var _ model.ChatModel = (*QwenChatModel)(nil)
var _ model.ToolCallingChatModel = (*QwenChatModel)(nil)
