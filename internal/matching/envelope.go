package matching

import (
	"encoding/json"
	"fmt"
	"strings"

	"job-match-go/internal/types"
)

// 简历内容缓存值历史上存在三种形态：
//   1. Raw        整个值是一个JSON字符串字面量，内容才是真正的JSON
//   2. Structured 直接就是结构化对象
//   3. Enveloped  包在 {"resumeData": ...} 信封里
// DecodeResumeEnvelope 统一解码三种形态，调用方不做类型猜测。

// DecodeResumeEnvelope 解码简历内容缓存值
func DecodeResumeEnvelope(raw string) (*types.ResumeContent, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("简历内容为空")
	}

	// Raw形态: 值本身是JSON字符串字面量，拆开一层再解
	var inner string
	if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
		if strings.TrimSpace(inner) == "" {
			return nil, fmt.Errorf("简历内容为空")
		}
		return DecodeResumeEnvelope(inner)
	}

	// Enveloped形态: 取出resumeData字段再解；字段值也可能是字符串字面量
	var envelope struct {
		ResumeData json.RawMessage `json:"resumeData"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return nil, fmt.Errorf("解析简历内容失败: %w", err)
	}
	if len(envelope.ResumeData) > 0 && string(envelope.ResumeData) != "null" {
		return DecodeResumeEnvelope(string(envelope.ResumeData))
	}

	// Structured形态
	var content types.ResumeContent
	if err := json.Unmarshal([]byte(trimmed), &content); err != nil {
		return nil, fmt.Errorf("解析简历内容失败: %w", err)
	}
	return &content, nil
}

// DecodeResumePayload 将向量库payload解码为简历内容
func DecodeResumePayload(payload map[string]interface{}) (*types.ResumeContent, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("简历payload为空")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化payload失败: %w", err)
	}
	return DecodeResumeEnvelope(string(data))
}

// IsEmptyContent 判断解码出的简历内容是否没有任何可用信息
func IsEmptyContent(c *types.ResumeContent) bool {
	if c == nil {
		return true
	}
	return c.Name == "" &&
		len(c.Skills) == 0 &&
		len(c.Experience) == 0 &&
		c.Summary == "" &&
		c.YearsOfExperience == 0 &&
		len(c.Languages) == 0 &&
		c.Location == ""
}
