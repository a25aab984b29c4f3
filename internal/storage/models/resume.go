package models

import (
	"time"

	"gorm.io/datatypes"
)

// Resume 结构化简历记录，嵌套字段按抽取结果原样保存为 JSON
type Resume struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`
	Email          string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_resumes_email_unique" json:"email"`
	PhoneNumber    *string        `gorm:"type:varchar(64)" json:"phone_number"`
	Skills         datatypes.JSON `gorm:"type:json;not null" json:"skills"`
	WorkExperience datatypes.JSON `gorm:"type:json" json:"work_experience"`
	Education      datatypes.JSON `gorm:"type:json;not null" json:"education"`
	Certifications datatypes.JSON `gorm:"type:json" json:"certifications"`
	Projects       datatypes.JSON `gorm:"type:json;not null" json:"projects"`
	GPA            *string        `gorm:"column:gpa;type:varchar(32)" json:"gpa"`
	ModelType      string         `gorm:"type:varchar(32);not null;index:idx_resumes_model_type" json:"model_type"`
	SourceObject   string         `gorm:"type:varchar(1024)" json:"-"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Resume) TableName() string {
	return "resumes"
}
