package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"

	"job-match-go/internal/logger"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/types"
)

// Matcher 匹配流水线入口
type Matcher interface {
	ListMatches(ctx context.Context, resumeVectorID string) ([]types.MatchListEntry, bool, error)
	ComputeDetailedMatch(ctx context.Context, resumeID, jobID string, vectorScore int) (*types.MatchResult, bool, error)
}

// ResumeFinder 处理层需要的简历查询能力
type ResumeFinder interface {
	FindResumeByID(ctx context.Context, resumeID string) (*models.Resume, error)
	FindPrimaryResumeByUser(ctx context.Context, userID string) (*models.Resume, error)
}

// MatchHandler 负责处理匹配相关的HTTP请求
type MatchHandler struct {
	matcher Matcher
	resumes ResumeFinder
}

// NewMatchHandler 创建 MatchHandler 实例
func NewMatchHandler(matcher Matcher, resumes ResumeFinder) *MatchHandler {
	return &MatchHandler{
		matcher: matcher,
		resumes: resumes,
	}
}

// HandleListMatches 返回当前用户主简历的岗位推荐列表。
// GET /api/v1/jobs/matches
func (h *MatchHandler) HandleListMatches(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUserID(c)
	if !ok {
		writeError(c, types.ErrAuthentication)
		return
	}

	resume, err := h.resumes.FindPrimaryResumeByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(c, types.ErrNotFound)
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("查询主简历失败")
		writeError(c, types.ErrRetrieval)
		return
	}

	// 向量化仍在进行中时拒绝请求，而不是返回空列表
	if resume.VectorID == "" {
		writeError(c, types.ErrValidation)
		return
	}

	matches, cached, err := h.matcher.ListMatches(ctx, resume.VectorID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("resume_id", resume.ResumeID).Msg("获取岗位推荐列表失败")
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"success":   true,
		"matches":   matches,
		"resume_id": resume.ResumeID,
		"cached":    cached,
	})
}

type computeMatchRequest struct {
	// 指针类型以区分缺失字段和零分
	VectorScore *int `json:"vector_score"`
}

// HandleComputeMatch 计算指定简历与岗位的详细匹配结果。
// POST /api/v1/resumes/:resume_id/matches/:job_id
func (h *MatchHandler) HandleComputeMatch(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUserID(c)
	if !ok {
		writeError(c, types.ErrAuthentication)
		return
	}

	resumeID := c.Param("resume_id")
	jobID := c.Param("job_id")
	if resumeID == "" || jobID == "" {
		writeError(c, types.ErrValidation)
		return
	}

	var req computeMatchRequest
	body, err := c.Body()
	if err != nil {
		writeError(c, types.ErrValidation)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil || req.VectorScore == nil {
		writeError(c, types.ErrValidation)
		return
	}

	resume, err := h.resumes.FindResumeByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(c, types.ErrNotFound)
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("resume_id", resumeID).Msg("查询简历失败")
		writeError(c, types.ErrRetrieval)
		return
	}
	if resume.UserID != userID {
		writeError(c, types.ErrAuthorization)
		return
	}

	result, cached, err := h.matcher.ComputeDetailedMatch(ctx, resumeID, jobID, *req.VectorScore)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("resume_id", resumeID).Str("job_id", jobID).
			Msg("计算详细匹配失败")
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"success": true,
		"match":   result,
		"cached":  cached,
	})
}

// currentUserID 从认证中间件写入的上下文里取当前用户ID
func currentUserID(c *app.RequestContext) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	userID, ok := v.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

// writeError 将错误分类映射为HTTP状态码，响应体统一为 {"error": message}
func writeError(c *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrAuthentication):
		status = consts.StatusUnauthorized
	case errors.Is(err, types.ErrAuthorization):
		status = consts.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		status = consts.StatusNotFound
	case errors.Is(err, types.ErrValidation):
		status = consts.StatusBadRequest
	case errors.Is(err, types.ErrRetrieval):
		status = consts.StatusBadGateway
	case errors.Is(err, types.ErrComputation):
		status = consts.StatusInternalServerError
	}
	c.JSON(status, utils.H{"error": err.Error()})
}
