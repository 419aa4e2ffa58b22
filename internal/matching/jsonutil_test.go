package matching

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"纯JSON", `{"a": 1}`, `{"a": 1}`},
		{"前后有说明文字", "评估结果如下：\n{\"skill_ratio\": 0.8}\n以上。", `{"skill_ratio": 0.8}`},
		{"嵌套对象", `前缀{"a": {"b": 2}}后缀`, `{"a": {"b": 2}}`},
		{"markdown代码块", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"没有JSON", "抱歉，我无法评估。", ""},
		{"括号不闭合", `{"a": 1`, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractJSON(tc.input))
		})
	}
}

// TestSanitizeJSON 验证字符串内部未转义的引号会被修复
func TestSanitizeJSON(t *testing.T) {
	broken := `{"match_reason": "候选人熟悉"微服务"架构"}`

	var result map[string]string
	require.Error(t, json.Unmarshal([]byte(broken), &result), "修复前应无法解析")

	fixed := sanitizeJSON(broken)
	require.NoError(t, json.Unmarshal([]byte(fixed), &result))
	assert.Equal(t, `候选人熟悉"微服务"架构`, result["match_reason"])
}

func TestSanitizeJSONKeepsValidJSON(t *testing.T) {
	valid := `{"skills": ["Go", "Redis"], "score": 0.5, "reason": "匹配"}`
	assert.Equal(t, valid, sanitizeJSON(valid))

	escaped := `{"reason": "已经\"转义\"的引号"}`
	assert.Equal(t, escaped, sanitizeJSON(escaped))
}
