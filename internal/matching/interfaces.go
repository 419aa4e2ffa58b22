package matching

import (
	"context"

	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/types"
)

// ResumeStore 简历读模型访问端口
type ResumeStore interface {
	// FindResumeByID 按简历ID获取记录，未找到时返回 gorm.ErrRecordNotFound
	FindResumeByID(ctx context.Context, resumeID string) (*models.Resume, error)
}

// JobStore 岗位读模型访问端口
type JobStore interface {
	// FindJobByID 按岗位ID获取记录，未找到时返回 gorm.ErrRecordNotFound
	FindJobByID(ctx context.Context, jobID string) (*models.Job, error)
}

// MatchCache 匹配结果缓存端口。
// 读方法在未命中时返回 storage.ErrNotFound。
type MatchCache interface {
	GetMatchList(ctx context.Context, resumeVectorID string) ([]types.MatchListEntry, error)
	SetMatchList(ctx context.Context, resumeVectorID string, entries []types.MatchListEntry) error

	GetMatchResult(ctx context.Context, resumeID, jobID string) (*types.MatchResult, error)
	SetMatchResult(ctx context.Context, resumeID, jobID string, result *types.MatchResult) error

	// GetResumeData 返回上游写入的简历内容缓存原始字符串
	GetResumeData(ctx context.Context, resumeVectorID string) (string, error)
}

// VectorIndex 向量召回端口
type VectorIndex interface {
	RecommendSimilarJobs(ctx context.Context, resumeVectorID string, limit int) ([]storage.SearchResult, error)
	RetrieveResumePayload(ctx context.Context, resumeVectorID string) (map[string]interface{}, error)
}

// SkillOverlapEstimator 技能/经验重合度评估端口
type SkillOverlapEstimator interface {
	Estimate(ctx context.Context, resume *types.ResumeContent, job *types.JobContent) (*types.SkillOverlap, error)
}

// MatchExplainer 匹配解释评估端口
type MatchExplainer interface {
	Explain(ctx context.Context, resume *types.ResumeContent, job *types.JobContent) (*types.MatchExplanation, error)
}

// EventPublisher 匹配事件发布端口
type EventPublisher interface {
	PublishMatchComputed(ctx context.Context, event *storage.MatchComputedEvent) error
}
