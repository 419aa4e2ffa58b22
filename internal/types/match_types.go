package types

// ExperienceItem 简历中的一段工作经历
type ExperienceItem struct {
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Dates       string `json:"dates,omitempty"`
	Description string `json:"description,omitempty"`
}

// ResumeContent 解析后的简历结构化内容。
// 三个来源（MySQL解析列、Redis缓存、Qdrant payload）统一解码为该结构。
type ResumeContent struct {
	Name              string           `json:"name,omitempty"`
	Skills            []string         `json:"skills,omitempty"`
	Experience        []ExperienceItem `json:"experience,omitempty"`
	Summary           string           `json:"summary,omitempty"`
	YearsOfExperience float64          `json:"years_of_experience,omitempty"`
	Languages         []string         `json:"languages,omitempty"`
	Location          string           `json:"location,omitempty"`
}

// JobContent 参与匹配评估的岗位文本内容
type JobContent struct {
	JobID            string `json:"job_id"`
	Title            string `json:"title,omitempty"`
	Employer         string `json:"employer,omitempty"`
	Description      string `json:"description,omitempty"`
	Requirements     string `json:"requirements,omitempty"`
	Responsibilities string `json:"responsibilities,omitempty"`
	Location         string `json:"location,omitempty"`
}

// SkillOverlap 技能/经验重合度评估结果，两个比率均在[0,1]区间
type SkillOverlap struct {
	SkillRatio      float64 `json:"skill_ratio"`
	ExperienceRatio float64 `json:"experience_ratio"`
}

// MatchExplanation 匹配解释评估结果
type MatchExplanation struct {
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`
	MatchReason   string   `json:"match_reason"`

	// OverallMatchScore LLM给出的整体印象分(0-100)，可能缺失
	OverallMatchScore *float64 `json:"overall_match_score,omitempty"`

	// StrongExperienceAlignment 与岗位高度相关的经历条目
	StrongExperienceAlignment []string `json:"strong_experience_alignment,omitempty"`

	ImprovementSuggestions []string `json:"improvement_suggestions,omitempty"`
}

// MatchResult 详细匹配结果，整体作为JSON写入缓存并原样返回
type MatchResult struct {
	ResumeID string `json:"resume_id"`
	JobID    string `json:"job_id"`

	// VectorScore 调用方传入的向量相似度分数 (0-100)
	VectorScore int `json:"vector_score"`
	// SkillScore 技能重合度百分制整数分
	SkillScore int `json:"skill_score"`
	// ExpRelevanceScore 经验相关度百分制整数分
	ExpRelevanceScore int `json:"exp_relevance_score"`
	// FinalScore 加权混合后的最终分 (0-100)
	FinalScore int `json:"final_score"`

	MatchedSkills             []string `json:"matched_skills"`
	MissingSkills             []string `json:"missing_skills"`
	MatchReason               string   `json:"match_reason"`
	StrongExperienceAlignment []string `json:"strong_experience_alignment,omitempty"`
	ImprovementSuggestions    []string `json:"improvement_suggestions"`

	// ComputedAt 计算完成的Unix时间戳（秒）
	ComputedAt int64 `json:"computed_at"`
}

// MatchListEntry 推荐列表中的一条岗位候选
type MatchListEntry struct {
	JobID string `json:"job_id"`
	// Score 向量相似度换算成的0-100整数分
	Score int `json:"score"`
}
