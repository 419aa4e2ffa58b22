package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/tracing"
	"job-match-go/internal/types"
)

var estimatorTracer = otel.Tracer("job-match-go/matching/estimator")

const skillOverlapSystemPrompt = `你是一位资深的技术招聘顾问，负责量化评估简历与岗位的匹配程度。
你的输出必须是一个JSON对象，不要输出任何其他文字。`

const skillOverlapPromptTemplate = `请对比以下简历和岗位，给出两个比率：

1. skill_ratio: 岗位所需技能中，候选人已具备的比例
2. experience_ratio: 候选人过往经历与该岗位职责的相关程度

== 简历 ==
%s

== 岗位 ==
%s

要求：
- 两个比率都必须是0到1之间的小数
- 岗位未列出明确技能时，按描述和职责推断所需技能
- 只输出JSON，格式如下：
{"skill_ratio": 0.75, "experience_ratio": 0.60}`

// LLMSkillOverlapEstimator 基于LLM的技能/经验重合度评估器
type LLMSkillOverlapEstimator struct {
	model          model.ToolCallingChatModel
	promptTemplate string
	evalTimeout    time.Duration
	maxRetries     int
	retryWait      time.Duration
}

// NewLLMSkillOverlapEstimator 创建技能重合度评估器
func NewLLMSkillOverlapEstimator(chatModel model.ToolCallingChatModel, cfg config.EstimatorConfig) *LLMSkillOverlapEstimator {
	e := &LLMSkillOverlapEstimator{
		model:          chatModel,
		promptTemplate: cfg.PromptTemplate,
		evalTimeout:    config.GetDuration(cfg.EvalTimeout, 30*time.Second),
		maxRetries:     cfg.MaxRetries,
		retryWait:      time.Duration(cfg.RetryWaitSeconds) * time.Second,
	}
	if e.promptTemplate == "" {
		e.promptTemplate = skillOverlapPromptTemplate
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	if e.retryWait <= 0 {
		e.retryWait = 2 * time.Second
	}
	return e
}

// Estimate 评估简历与岗位的技能/经验重合度
func (e *LLMSkillOverlapEstimator) Estimate(ctx context.Context, resume *types.ResumeContent, job *types.JobContent) (*types.SkillOverlap, error) {
	ctx, span := estimatorTracer.Start(ctx, "llm.skill_overlap_estimate", oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("job.id", job.JobID))

	prompt := fmt.Sprintf(e.promptTemplate, formatResumeForPrompt(resume), formatJobForPrompt(job))
	messages := []*schema.Message{
		schema.SystemMessage(skillOverlapSystemPrompt),
		schema.UserMessage(prompt),
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(lastErr).Int("attempt", attempt).Str("job_id", job.JobID).
				Msg("技能重合度评估失败，准备重试")
			select {
			case <-time.After(e.retryWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		overlap, err := e.estimateOnce(ctx, messages)
		if err == nil {
			span.SetAttributes(
				attribute.Float64("overlap.skill_ratio", overlap.SkillRatio),
				attribute.Float64("overlap.experience_ratio", overlap.ExperienceRatio),
			)
			return overlap, nil
		}
		lastErr = err
	}

	tracing.RecordError(span, lastErr, tracing.ErrorTypeLLM)
	return nil, lastErr
}

func (e *LLMSkillOverlapEstimator) estimateOnce(ctx context.Context, messages []*schema.Message) (*types.SkillOverlap, error) {
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

	var overlap types.SkillOverlap
	if err := json.Unmarshal([]byte(jsonStr), &overlap); err != nil {
		// 先修复再重试一次反序列化
		if err2 := json.Unmarshal([]byte(sanitizeJSON(jsonStr)), &overlap); err2 != nil {
			return nil, fmt.Errorf("解析评估结果失败: %w", err)
		}
	}

	if err := validateOverlap(&overlap); err != nil {
		return nil, err
	}
	return &overlap, nil
}

func validateOverlap(o *types.SkillOverlap) error {
	if o.SkillRatio < 0 || o.SkillRatio > 1 {
		return fmt.Errorf("skill_ratio超出[0,1]区间: %f", o.SkillRatio)
	}
	if o.ExperienceRatio < 0 || o.ExperienceRatio > 1 {
		return fmt.Errorf("experience_ratio超出[0,1]区间: %f", o.ExperienceRatio)
	}
	return nil
}
