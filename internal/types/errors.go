package types

import "errors"

// 错误分类哨兵。各层用 fmt.Errorf("...: %w", Err...) 包装具体原因，
// HTTP边界通过 errors.Is 映射到状态码。
var (
	// ErrAuthentication 未认证（缺失或无效凭证）-> 401
	ErrAuthentication = errors.New("authentication required")

	// ErrAuthorization 已认证但无权访问目标资源 -> 403
	ErrAuthorization = errors.New("access denied")

	// ErrNotFound 简历/岗位/简历内容不存在 -> 404
	ErrNotFound = errors.New("resource not found")

	// ErrValidation 请求参数非法 -> 400
	ErrValidation = errors.New("invalid request")

	// ErrRetrieval 后端检索失败（向量库/缓存/数据库不可达）-> 502
	ErrRetrieval = errors.New("retrieval failed")

	// ErrComputation LLM评估或混合计算失败 -> 500
	ErrComputation = errors.New("match computation failed")
)
