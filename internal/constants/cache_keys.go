package constants

import "time"

// Redis Key 格式常量
// 匹配相关的键沿用线上既有格式，不加应用前缀，避免缓存迁移
const (
	// KeyJobMatchList 简历的岗位推荐列表缓存 (STRING, JSON数组)
	// 格式: jobs:{resumeVectorID}
	KeyJobMatchList = "jobs:%s"

	// KeyMatchResult 简历与岗位的详细匹配结果缓存 (STRING, JSON对象)
	// 格式: match:{resumeID}:{jobID}
	KeyMatchResult = "match:%s:%s"

	// KeyResumeData 解析后的简历内容缓存 (STRING, JSON)
	// 由上游解析服务写入，值可能是裸JSON字符串、结构化对象或
	// {"resumeData": ...} 信封，读取侧统一解码
	// 格式: resumeData:{resumeVectorID}
	KeyResumeData = "resumeData:%s"
)

// 缓存TTL
const (
	// MatchListCacheTTL 推荐列表缓存时长
	MatchListCacheTTL = 300 * time.Second

	// MatchResultCacheTTL 详细匹配结果缓存时长
	MatchResultCacheTTL = 3600 * time.Second
)
