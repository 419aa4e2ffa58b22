package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/tracing"
	"job-match-go/internal/types"
)

const explainerSystemPrompt = `你是一位职业发展顾问，负责向求职者解释简历与岗位的匹配情况并给出改进建议。
你的输出必须是一个JSON对象，不要输出任何其他文字。`

const explainerPromptTemplate = `请分析以下简历与岗位的匹配情况：

== 简历 ==
%s

== 岗位 ==
%s

输出JSON，包含以下字段：
- matched_skills: 候选人具备且岗位需要的技能列表
- missing_skills: 岗位需要但简历未体现的技能列表
- match_reason: 一句话说明匹配程度的核心原因
- overall_match_score: 整体印象分，0到100之间的数字
- strong_experience_alignment: 与岗位高度相关的过往经历（可为空数组）
- improvement_suggestions: 针对该岗位的简历改进建议列表

格式示例：
{"matched_skills": ["Go", "MySQL"], "missing_skills": ["Kubernetes"], "match_reason": "后端核心技能匹配，缺少容器编排经验", "overall_match_score": 72, "strong_experience_alignment": ["三年微服务开发"], "improvement_suggestions": ["补充容器化部署相关项目经验"]}`

// LLMMatchExplainer 基于LLM的匹配解释评估器
type LLMMatchExplainer struct {
	model          model.ToolCallingChatModel
	promptTemplate string
	evalTimeout    time.Duration
	maxRetries     int
	retryWait      time.Duration
}

// NewLLMMatchExplainer 创建匹配解释评估器
func NewLLMMatchExplainer(chatModel model.ToolCallingChatModel, cfg config.EstimatorConfig) *LLMMatchExplainer {
	e := &LLMMatchExplainer{
		model:          chatModel,
		promptTemplate: cfg.PromptTemplate,
		evalTimeout:    config.GetDuration(cfg.EvalTimeout, 30*time.Second),
		maxRetries:     cfg.MaxRetries,
		retryWait:      time.Duration(cfg.RetryWaitSeconds) * time.Second,
	}
	if e.promptTemplate == "" {
		e.promptTemplate = explainerPromptTemplate
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	if e.retryWait <= 0 {
		e.retryWait = 2 * time.Second
	}
	return e
}

// Explain 生成匹配解释
func (e *LLMMatchExplainer) Explain(ctx context.Context, resume *types.ResumeContent, job *types.JobContent) (*types.MatchExplanation, error) {
	ctx, span := estimatorTracer.Start(ctx, "llm.match_explain", oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("job.id", job.JobID))

	prompt := fmt.Sprintf(e.promptTemplate, formatResumeForPrompt(resume), formatJobForPrompt(job))
	messages := []*schema.Message{
		schema.SystemMessage(explainerSystemPrompt),
		schema.UserMessage(prompt),
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(lastErr).Int("attempt", attempt).Str("job_id", job.JobID).
				Msg("匹配解释评估失败，准备重试")
			select {
			case <-time.After(e.retryWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		explanation, err := e.explainOnce(ctx, messages)
		if err == nil {
			span.SetAttributes(attribute.Int("explanation.matched_skills", len(explanation.MatchedSkills)))
			return explanation, nil
		}
		lastErr = err
	}

	tracing.RecordError(span, lastErr, tracing.ErrorTypeLLM)
	return nil, lastErr
}

func (e *LLMMatchExplainer) explainOnce(ctx context.Context, messages []*schema.Message) (*types.MatchExplanation, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.evalTimeout)
	defer cancel()

	resp, err := e.model.Generate(callCtx, messages)
	if err != nil {
		return nil, fmt.Errorf("调用LLM失败: %w", err)
	}

	jsonStr := extractJSON(resp.Content)
	if jsonStr == "" {
		return nil, fmt.Errorf("LLM响应中未找到JSON: %s", tracing.SafeLLMOutput(resp.Content))
	}

	var explanation types.MatchExplanation
	if err := json.Unmarshal([]byte(jsonStr), &explanation); err != nil {
		if err2 := json.Unmarshal([]byte(sanitizeJSON(jsonStr)), &explanation); err2 != nil {
			return nil, fmt.Errorf("解析解释结果失败: %w", err)
		}
	}

	if explanation.OverallMatchScore != nil {
		if s := *explanation.OverallMatchScore; s < 0 || s > 100 {
			return nil, fmt.Errorf("overall_match_score超出[0,100]区间: %f", s)
		}
	}
	return &explanation, nil
}
