package constants

const (
	// MinVectorScore / MaxVectorScore 请求中向量分数的合法范围
	MinVectorScore = 0
	MaxVectorScore = 100

	// DefaultMatchLimit 推荐列表默认召回数量
	DefaultMatchLimit = 20

	// TaskSkillOverlap / TaskMatchExplain LLM任务名，用于config.GetModelForTask
	TaskSkillOverlap = "skill_overlap"
	TaskMatchExplain = "match_explain"
)
