package storage

import (
	"time"

	"github.com/google/uuid"
)

// MatchComputedEvent 匹配计算完成事件。
// 每次新鲜计算出详细匹配结果后发布一次，缓存命中不发。
type MatchComputedEvent struct {
	EventID    string    `json:"event_id"`    // 事件唯一ID
	ResumeID   string    `json:"resume_id"`   // 简历ID
	JobID      string    `json:"job_id"`      // 岗位ID
	FinalScore int       `json:"final_score"` // 最终匹配分 (0-100)
	ComputedAt time.Time `json:"computed_at"` // 计算完成时间
}

// NewMatchComputedEvent 构造匹配完成事件
func NewMatchComputedEvent(resumeID, jobID string, finalScore int) *MatchComputedEvent {
	return &MatchComputedEvent{
		EventID:    uuid.NewString(),
		ResumeID:   resumeID,
		JobID:      jobID,
		FinalScore: finalScore,
		ComputedAt: time.Now(),
	}
}
