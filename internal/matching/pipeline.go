package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"job-match-go/internal/constants"
	"job-match-go/internal/logger"
	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/tracing"
	"job-match-go/internal/types"
)

var pipelineTracer = otel.Tracer("job-match-go/matching/pipeline")

// Pipeline 匹配评分流水线。
// 两个入口都是缓存优先：命中时原样返回缓存值，cached=true。
type Pipeline struct {
	resumes    ResumeStore
	jobs       JobStore
	cache      MatchCache
	vectors    VectorIndex
	skills     SkillOverlapEstimator
	explainer  MatchExplainer
	events     EventPublisher // 可为nil，事件发布是尽力而为
	matchLimit int
}

// NewPipeline 组装匹配流水线
func NewPipeline(
	resumes ResumeStore,
	jobs JobStore,
	cache MatchCache,
	vectors VectorIndex,
	skills SkillOverlapEstimator,
	explainer MatchExplainer,
	events EventPublisher,
	matchLimit int,
) *Pipeline {
	if matchLimit <= 0 {
		matchLimit = constants.DefaultMatchLimit
	}
	return &Pipeline{
		resumes:    resumes,
		jobs:       jobs,
		cache:      cache,
		vectors:    vectors,
		skills:     skills,
		explainer:  explainer,
		events:     events,
		matchLimit: matchLimit,
	}
}

// ListMatches 返回指定简历向量的岗位候选列表。
// 缓存命中时第二个返回值为true。
func (p *Pipeline) ListMatches(ctx context.Context, resumeVectorID string) ([]types.MatchListEntry, bool, error) {
	ctx, span := pipelineTracer.Start(ctx, "matching.list_matches")
	defer span.End()
	span.SetAttributes(attribute.String("resume.vector_id", resumeVectorID))

	if resumeVectorID == "" {
		return nil, false, fmt.Errorf("%w: 简历向量ID为空", types.ErrValidation)
	}

	cached, err := p.cache.GetMatchList(ctx, resumeVectorID)
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		// 缓存读失败按未命中处理，继续走向量召回
		logger.Ctx(ctx).Warn().Err(err).Str("vector_id", resumeVectorID).Msg("读取岗位推荐缓存失败")
	}

	results, err := p.vectors.RecommendSimilarJobs(ctx, resumeVectorID, p.matchLimit)
	if err != nil {
		return nil, false, fmt.Errorf("%w: 向量召回失败: %v", types.ErrRetrieval, err)
	}

	entries := make([]types.MatchListEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, types.MatchListEntry{
			JobID: r.ID,
			Score: VectorScoreToPercent(r.Score),
		})
	}

	if err := p.cache.SetMatchList(ctx, resumeVectorID, entries); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("vector_id", resumeVectorID).Msg("写入岗位推荐缓存失败")
	}

	span.SetAttributes(attribute.Int("matches.count", len(entries)))
	return entries, false, nil
}

// ComputeDetailedMatch 计算指定简历与岗位的详细匹配结果。
// 缓存命中时第二个返回值为true。任何失败路径都不写缓存。
func (p *Pipeline) ComputeDetailedMatch(ctx context.Context, resumeID, jobID string, vectorScore int) (*types.MatchResult, bool, error) {
	ctx, span := pipelineTracer.Start(ctx, "matching.compute_detailed_match")
	defer span.End()
	span.SetAttributes(
		attribute.String("resume.id", resumeID),
		attribute.String("job.id", jobID),
		attribute.Int("vector_score", vectorScore),
	)

	if resumeID == "" || jobID == "" {
		return nil, false, fmt.Errorf("%w: 简历ID和岗位ID不能为空", types.ErrValidation)
	}
	if vectorScore < constants.MinVectorScore || vectorScore > constants.MaxVectorScore {
		return nil, false, fmt.Errorf("%w: vector_score必须在[%d,%d]区间: %d",
			types.ErrValidation, constants.MinVectorScore, constants.MaxVectorScore, vectorScore)
	}

	if cached, err := p.cache.GetMatchResult(ctx, resumeID, jobID); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Str("job_id", jobID).
			Msg("读取匹配结果缓存失败")
	}

	resume, err := p.resumes.FindResumeByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: 简历 %s 不存在", types.ErrNotFound, resumeID)
		}
		return nil, false, fmt.Errorf("%w: 查询简历失败: %v", types.ErrRetrieval, err)
	}

	resumeContent, err := p.resolveResumeContent(ctx, resume)
	if err != nil {
		return nil, false, err
	}

	jobRecord, err := p.jobs.FindJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: 岗位 %s 不存在", types.ErrNotFound, jobID)
		}
		return nil, false, fmt.Errorf("%w: 查询岗位失败: %v", types.ErrRetrieval, err)
	}
	jobContent := jobContentFromModel(jobRecord)

	// 两个评估器并发执行，任一失败则整体失败，不缓存部分结果
	var overlap *types.SkillOverlap
	var explanation *types.MatchExplanation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var estErr error
		overlap, estErr = p.skills.Estimate(gctx, resumeContent, jobContent)
		return estErr
	})
	g.Go(func() error {
		var expErr error
		explanation, expErr = p.explainer.Explain(gctx, resumeContent, jobContent)
		return expErr
	})
	if err := g.Wait(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", types.ErrComputation, err)
	}

	result := &types.MatchResult{
		ResumeID:                  resumeID,
		JobID:                     jobID,
		VectorScore:               vectorScore,
		SkillScore:                RatioToPercent(overlap.SkillRatio),
		ExpRelevanceScore:         RatioToPercent(overlap.ExperienceRatio),
		FinalScore:                BlendScores(vectorScore, overlap.SkillRatio, overlap.ExperienceRatio),
		MatchedSkills:             emptyIfNil(explanation.MatchedSkills),
		MissingSkills:             emptyIfNil(explanation.MissingSkills),
		MatchReason:               explanation.MatchReason,
		StrongExperienceAlignment: explanation.StrongExperienceAlignment,
		ImprovementSuggestions:    emptyIfNil(explanation.ImprovementSuggestions),
		ComputedAt:                time.Now().Unix(),
	}

	if err := p.cache.SetMatchResult(ctx, resumeID, jobID, result); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Str("job_id", jobID).
			Msg("写入匹配结果缓存失败")
	}

	p.publishMatchComputed(ctx, result)

	span.SetAttributes(attribute.Int("match.final_score", result.FinalScore))
	return result, false, nil
}

// resolveResumeContent 按固定顺序解析简历内容：
// 解析列 -> Redis简历缓存 -> Qdrant payload。前一级有内容则不再尝试后续级。
func (p *Pipeline) resolveResumeContent(ctx context.Context, resume *models.Resume) (*types.ResumeContent, error) {
	ctx, span := pipelineTracer.Start(ctx, "matching.resolve_resume_content")
	defer span.End()

	if len(resume.ParsedContent) > 0 {
		content, err := DecodeResumeEnvelope(string(resume.ParsedContent))
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resume.ResumeID).
				Str("content_preview", tracing.SafeResumeContent(string(resume.ParsedContent))).
				Msg("解析简历记录中的结构化内容失败")
		} else if !IsEmptyContent(content) {
			return markResolved(span, "store", content), nil
		}
	}

	if resume.VectorID == "" {
		return nil, fmt.Errorf("%w: 简历 %s 无可用内容", types.ErrNotFound, resume.ResumeID)
	}

	raw, err := p.cache.GetResumeData(ctx, resume.VectorID)
	if err == nil {
		content, decodeErr := DecodeResumeEnvelope(raw)
		if decodeErr != nil {
			logger.Ctx(ctx).Warn().Err(decodeErr).Str("vector_id", resume.VectorID).
				Str("content_preview", tracing.SafeResumeContent(raw)).
				Msg("解析简历内容缓存失败")
		} else if !IsEmptyContent(content) {
			return markResolved(span, "cache", content), nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.Ctx(ctx).Warn().Err(err).Str("vector_id", resume.VectorID).
			Msg("读取简历内容缓存失败")
	}

	payload, err := p.vectors.RetrieveResumePayload(ctx, resume.VectorID)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取简历向量payload失败: %v", types.ErrRetrieval, err)
	}
	if len(payload) > 0 {
		content, decodeErr := DecodeResumePayload(payload)
		if decodeErr != nil {
			logger.Ctx(ctx).Warn().Err(decodeErr).Str("vector_id", resume.VectorID).
				Msg("解析简历向量payload失败")
		} else if !IsEmptyContent(content) {
			return markResolved(span, "vector_index", content), nil
		}
	}

	return nil, fmt.Errorf("%w: 简历 %s 无可用内容", types.ErrNotFound, resume.ResumeID)
}

// markResolved 在span上记录内容来源。候选人姓名是PII，入span前做掩码。
func markResolved(span oteltrace.Span, source string, content *types.ResumeContent) *types.ResumeContent {
	span.SetAttributes(
		attribute.String("resume.content_source", source),
		attribute.String("resume.candidate_name", tracing.SafeAttributeValue("name", content.Name, tracing.DefaultMaxLength)),
	)
	return content
}

// publishMatchComputed 发布匹配完成事件，失败只记日志
func (p *Pipeline) publishMatchComputed(ctx context.Context, result *types.MatchResult) {
	if p.events == nil {
		return
	}
	event := storage.NewMatchComputedEvent(result.ResumeID, result.JobID, result.FinalScore)
	if err := p.events.PublishMatchComputed(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("resume_id", result.ResumeID).Str("job_id", result.JobID).
			Msg("发布匹配完成事件失败")
	}
}

// jobContentFromModel 岗位记录转评估输入。描述/要求缺失降级为空串。
func jobContentFromModel(job *models.Job) *types.JobContent {
	return &types.JobContent{
		JobID:            job.JobID,
		Title:            job.Title,
		Employer:         job.Employer,
		Description:      job.Description,
		Requirements:     string(job.RequirementsJSON),
		Responsibilities: job.Responsibilities,
		Location:         job.Location,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
