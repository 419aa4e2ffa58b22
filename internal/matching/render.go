package matching

import (
	"fmt"
	"strings"

	"job-match-go/internal/types"
)

// formatResumeForPrompt 将简历内容渲染为提示词中的纯文本块
func formatResumeForPrompt(resume *types.ResumeContent) string {
	var b strings.Builder

	if resume.Name != "" {
		fmt.Fprintf(&b, "姓名: %s\n", resume.Name)
	}
	if resume.Summary != "" {
		fmt.Fprintf(&b, "概述: %s\n", resume.Summary)
	}
	if resume.YearsOfExperience > 0 {
		fmt.Fprintf(&b, "工作年限: %.1f年\n", resume.YearsOfExperience)
	}
	if len(resume.Skills) > 0 {
		fmt.Fprintf(&b, "技能: %s\n", strings.Join(resume.Skills, ", "))
	}
	if len(resume.Languages) > 0 {
		fmt.Fprintf(&b, "语言: %s\n", strings.Join(resume.Languages, ", "))
	}
	if resume.Location != "" {
		fmt.Fprintf(&b, "所在地: %s\n", resume.Location)
	}
	if len(resume.Experience) > 0 {
		b.WriteString("工作经历:\n")
		for _, exp := range resume.Experience {
			fmt.Fprintf(&b, "- %s", exp.Title)
			if exp.Company != "" {
				fmt.Fprintf(&b, " @ %s", exp.Company)
			}
			if exp.Dates != "" {
				fmt.Fprintf(&b, " (%s)", exp.Dates)
			}
			b.WriteString("\n")
			if exp.Description != "" {
				fmt.Fprintf(&b, "  %s\n", exp.Description)
			}
		}
	}

	text := b.String()
	if text == "" {
		return "(简历内容为空)"
	}
	return text
}

// formatJobForPrompt 将岗位内容渲染为提示词中的纯文本块。
// 描述/要求缺失时降级为空串，不中断评估。
func formatJobForPrompt(job *types.JobContent) string {
	var b strings.Builder

	if job.Title != "" {
		fmt.Fprintf(&b, "岗位: %s\n", job.Title)
	}
	if job.Employer != "" {
		fmt.Fprintf(&b, "公司: %s\n", job.Employer)
	}
	if job.Location != "" {
		fmt.Fprintf(&b, "工作地点: %s\n", job.Location)
	}
	if job.Description != "" {
		fmt.Fprintf(&b, "岗位描述:\n%s\n", job.Description)
	}
	if job.Requirements != "" {
		fmt.Fprintf(&b, "任职要求:\n%s\n", job.Requirements)
	}
	if job.Responsibilities != "" {
		fmt.Fprintf(&b, "工作职责:\n%s\n", job.Responsibilities)
	}

	text := b.String()
	if text == "" {
		return "(岗位内容为空)"
	}
	return text
}
