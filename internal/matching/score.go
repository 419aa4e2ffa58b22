package matching

import "math"

// 分数混合权重。三个权重之和为0.95而非1.0，
// 线上评分口径即是如此（满分输入得95分），不做归一化。
const (
	WeightVector     = 0.65
	WeightSkill      = 0.25
	WeightExperience = 0.05
)

// BlendScores 将向量分(0-100整数)和两个LLM比率(0-1)混合为最终分。
// 内部分数先归一化为0-1小数，混合后保留3位小数，再换算回百分制整数。
func BlendScores(vectorScore int, skillRatio, experienceRatio float64) int {
	fraction := float64(vectorScore)/100*WeightVector +
		skillRatio*WeightSkill +
		experienceRatio*WeightExperience
	fraction = math.Round(fraction*1000) / 1000
	return int(math.Round(fraction * 100))
}

// RatioToPercent 将0-1比率换算为0-100整数分
func RatioToPercent(ratio float64) int {
	return int(math.Round(ratio * 100))
}

// VectorScoreToPercent 将向量引擎返回的[0,1]相似度换算为0-100整数分
func VectorScoreToPercent(similarity float32) int {
	return int(math.Round(float64(similarity) * 100))
}
