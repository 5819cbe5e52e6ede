package model

import (
	"time"

	"gorm.io/datatypes"
)

// PrivacySettings 隐私设置
type PrivacySettings struct {
	ProfileVisibility string `json:"profileVisibility"`
	ShowActivity      bool   `json:"showActivity"`
	ShowStudyGuides   bool   `json:"showStudyGuides"`
}

// AccessibilitySettings 无障碍设置
type AccessibilitySettings struct {
	FontSize      string `json:"fontSize"`
	HighContrast  bool   `json:"highContrast"`
	ReducedMotion bool   `json:"reducedMotion"`
}

// UserSettings 用户偏好
type UserSettings struct {
	EmailNotifications bool                  `json:"emailNotifications"`
	StudyReminders     bool                  `json:"studyReminders"`
	PrivacySettings    PrivacySettings       `json:"privacySettings"`
	Accessibility      AccessibilitySettings `json:"accessibility"`
	Language           string                `json:"language"`
}

// DefaultUserSettings 新用户及重置数据后的默认设置
func DefaultUserSettings() UserSettings {
	return UserSettings{
		EmailNotifications: true,
		StudyReminders:     true,
		PrivacySettings: PrivacySettings{
			ProfileVisibility: "public",
			ShowActivity:      true,
			ShowStudyGuides:   true,
		},
		Accessibility: AccessibilitySettings{
			FontSize: "medium",
		},
		Language: "en",
	}
}

// User 用户账号
type User struct {
	ID             int64                            `json:"_id" gorm:"primaryKey;autoIncrement"`
	Username       string                           `json:"username" gorm:"size:30;uniqueIndex;not null"`
	Email          string                           `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash   string                           `json:"-" gorm:"size:255;not null"`
	ProfilePicture string                           `json:"profilePicture" gorm:"size:512"`
	Bio            string                           `json:"bio" gorm:"size:500"`
	Settings       datatypes.JSONType[UserSettings] `json:"settings"`
	CreatedAt      time.Time                        `json:"createdAt"`
	UpdatedAt      time.Time                        `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// UserSummary 在学习指南中展开的用户信息
type UserSummary struct {
	ID             int64  `json:"_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}

// Summary 返回对外展示的精简用户信息
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}
