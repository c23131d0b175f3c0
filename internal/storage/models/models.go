package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// User 用户主表
// ExternalID是认证体系下发的外部标识，API层只凭它定位用户
type User struct {
	UserID     string    `gorm:"type:char(36);primaryKey"`
	ExternalID string    `gorm:"type:varchar(255);uniqueIndex:idx_users_external_id_unique;not null"`
	Email      string    `gorm:"type:varchar(255)"`
	Name       string    `gorm:"type:varchar(255)"`
	CreatedAt  time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt  time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// Resume 简历记录表
// ObjectKey保存对象存储中的键，删除记录时用它回收blob
type Resume struct {
	ResumeID      string         `gorm:"type:char(36);primaryKey"`
	UserID        string         `gorm:"type:char(36);not null;index:idx_resumes_user_id"`
	FileName      string         `gorm:"type:varchar(255);not null"`
	FileURL       string         `gorm:"type:varchar(1024);not null"`
	ObjectKey     string         `gorm:"type:varchar(1024);not null"`
	FileSize      int64          `gorm:"type:bigint;not null"`
	FileMD5       string         `gorm:"type:char(32);index:idx_resumes_file_md5"`
	MimeType      string         `gorm:"type:varchar(100);not null"`
	ParsedContent string         `gorm:"type:text"`
	Analysis      datatypes.JSON `gorm:"type:json"`
	StrengthScore int            `gorm:"type:int;default:0"`
	ATSScore      int            `gorm:"type:int;default:0"`
	Suggestions   datatypes.JSON `gorm:"type:json"`
	IsPrimary     bool           `gorm:"default:false;index:idx_resumes_is_primary"`
	CreatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_resumes_created_at"`
	UpdatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	User *User `gorm:"foreignKey:UserID;references:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Resume) TableName() string {
	return "resumes"
}

// MapToJSON 将map转换为datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// SliceToJSON 将字符串切片转换为datatypes.JSON
func SliceToJSON(s []string) (datatypes.JSON, error) {
	if s == nil {
		s = []string{}
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
