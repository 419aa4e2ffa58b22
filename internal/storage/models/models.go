package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Resume 简历读模型表。
// 解析与向量化由上游服务完成，本服务只读取其结果；
// VectorID 为空表示向量化尚未完成。
type Resume struct {
	ResumeID      string         `gorm:"type:char(36);primaryKey"`
	UserID        string         `gorm:"type:char(36);not null;index:idx_resumes_user_primary,priority:1"`
	VectorID      string         `gorm:"type:char(36);index:idx_resumes_vector_id"`
	ParsedContent datatypes.JSON `gorm:"type:json"` // 上游解析服务写入的结构化简历内容
	IsPrimary     bool           `gorm:"default:false;index:idx_resumes_user_primary,priority:2"`
	FileName      string         `gorm:"type:varchar(255)"`
	CreatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Resume) TableName() string {
	return "resumes"
}

// Job 岗位读模型表
type Job struct {
	JobID            string         `gorm:"type:char(36);primaryKey"`
	Title            string         `gorm:"type:varchar(255);not null"`
	Employer         string         `gorm:"type:varchar(255)"`
	Description      string         `gorm:"type:text"`
	RequirementsJSON datatypes.JSON `gorm:"type:json"` // 结构化任职要求
	Responsibilities string         `gorm:"type:text"`
	Location         string         `gorm:"type:varchar(255)"`
	SalaryRange      string         `gorm:"type:varchar(100)"`
	EmploymentType   string         `gorm:"type:varchar(50)"`
	Status           string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jobs_status"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// StringToJSON Helper function to convert string to datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}

// MapToJSON Helper function to convert map[string]interface{} to datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
