package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 闪卡类型
const (
	FlashcardMultipleChoice = "multiple_choice"
	FlashcardFreeform       = "freeform"
)

// Flashcard 学习指南内嵌的闪卡
type Flashcard struct {
	Question           string   `json:"question"`
	Answer             string   `json:"answer"`
	Type               string   `json:"type"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
}

// Keyword 关键词，importance 取值 1-10
type Keyword struct {
	Word       string `json:"word"`
	Importance int    `json:"importance"`
}

// Version 内容修改前的快照
type Version struct {
	Content   string    `json:"content"`
	UpdatedBy int64     `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlashcardList GORM JSON 字段
type FlashcardList []Flashcard

// KeywordList GORM JSON 字段
type KeywordList []Keyword

// VersionList GORM JSON 字段，按时间追加
type VersionList []Version

func scanJSON(value interface{}, dest interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}

func (f *FlashcardList) Scan(value interface{}) error {
	*f = nil
	return scanJSON(value, f)
}

func (f FlashcardList) Value() (driver.Value, error) {
	if f == nil {
		f = FlashcardList{}
	}
	b, err := json.Marshal(f)
	return string(b), err
}

func (k *KeywordList) Scan(value interface{}) error {
	*k = nil
	return scanJSON(value, k)
}

func (k KeywordList) Value() (driver.Value, error) {
	if k == nil {
		k = KeywordList{}
	}
	b, err := json.Marshal(k)
	return string(b), err
}

func (v *VersionList) Scan(value interface{}) error {
	*v = nil
	return scanJSON(value, v)
}

func (v VersionList) Value() (driver.Value, error) {
	if v == nil {
		v = VersionList{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

// StudyGuide 学习指南
//
// Subjects、Contributors、UpvotedBy 存放在子表中，由仓库层负责读写。
// Upvotes 只能通过 ToggleUpvote / RemoveUpvoter 修改，保证 Upvotes == len(UpvotedBy)。
type StudyGuide struct {
	ID            string        `json:"_id" gorm:"primaryKey;size:36"`
	Title         string        `json:"title" gorm:"size:100;not null"`
	Description   string        `json:"description" gorm:"type:text"`
	Content       string        `json:"content" gorm:"type:longtext;not null"`
	Summary       string        `json:"summary" gorm:"type:text"`
	Flashcards    FlashcardList `json:"flashcards" gorm:"type:json"`
	Keywords      KeywordList   `json:"keywords" gorm:"type:json"`
	Versions      VersionList   `json:"versions" gorm:"type:json"`
	CustomSubject string        `json:"customSubject,omitempty" gorm:"size:100"`
	IsPublic      bool          `json:"isPublic" gorm:"index"`
	CreatorID     int64         `json:"creator" gorm:"index;not null"`
	Upvotes       int           `json:"upvotes" gorm:"index;not null"`
	CreatedAt     time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt     time.Time     `json:"updatedAt" gorm:"index"`

	Subjects     []string `json:"subjects" gorm:"-"`
	Contributors []int64  `json:"contributors" gorm:"-"`
	UpvotedBy    []int64  `json:"upvotedBy" gorm:"-"`
}

func (StudyGuide) TableName() string {
	return "study_guides"
}

// StudyGuideSubject 学科，一行一个
type StudyGuideSubject struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	StudyGuideID string `gorm:"size:36;index;not null"`
	Subject      string `gorm:"size:100;index;not null"`
	Position     int    `gorm:"not null"`
}

func (StudyGuideSubject) TableName() string {
	return "study_guide_subjects"
}

// StudyGuideContributor 贡献者
type StudyGuideContributor struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	StudyGuideID string `gorm:"size:36;index;not null"`
	UserID       int64  `gorm:"index;not null"`
	Position     int    `gorm:"not null"`
}

func (StudyGuideContributor) TableName() string {
	return "study_guide_contributors"
}

// StudyGuideUpvote 点赞记录
type StudyGuideUpvote struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	StudyGuideID string `gorm:"size:36;index;not null"`
	UserID       int64  `gorm:"index;not null"`
	Position     int    `gorm:"not null"`
}

func (StudyGuideUpvote) TableName() string {
	return "study_guide_upvotes"
}

// IsCreator 判断是否为创建者
func (g *StudyGuide) IsCreator(userID int64) bool {
	return g.CreatorID == userID
}

// IsContributor 判断是否在贡献者列表中
func (g *StudyGuide) IsContributor(userID int64) bool {
	return containsID(g.Contributors, userID)
}

// CanEdit 创建者或贡献者可以编辑
func (g *StudyGuide) CanEdit(userID int64) bool {
	return g.IsCreator(userID) || g.IsContributor(userID)
}

// AddContributor 既不是创建者也不是贡献者时追加到贡献者列表
func (g *StudyGuide) AddContributor(userID int64) {
	if g.IsCreator(userID) || g.IsContributor(userID) {
		return
	}
	g.Contributors = append(g.Contributors, userID)
}

// RemoveContributor 从贡献者列表移除
func (g *StudyGuide) RemoveContributor(userID int64) {
	g.Contributors = removeID(g.Contributors, userID)
}

// HasUpvoted 判断是否已点赞
func (g *StudyGuide) HasUpvoted(userID int64) bool {
	return containsID(g.UpvotedBy, userID)
}

// ToggleUpvote 切换点赞状态，返回切换后是否处于点赞状态
func (g *StudyGuide) ToggleUpvote(userID int64) bool {
	upvoted := !g.HasUpvoted(userID)
	if upvoted {
		g.UpvotedBy = append(g.UpvotedBy, userID)
	} else {
		g.UpvotedBy = removeID(g.UpvotedBy, userID)
	}
	g.Upvotes = len(g.UpvotedBy)
	return upvoted
}

// RemoveUpvoter 撤销某用户的点赞
func (g *StudyGuide) RemoveUpvoter(userID int64) {
	g.UpvotedBy = removeID(g.UpvotedBy, userID)
	g.Upvotes = len(g.UpvotedBy)
}

// AppendVersion 记录一条历史版本
func (g *StudyGuide) AppendVersion(content string, updatedBy int64, at time.Time) {
	g.Versions = append(g.Versions, Version{Content: content, UpdatedBy: updatedBy, UpdatedAt: at})
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// VersionView 展开 updatedBy 后的版本
type VersionView struct {
	Content   string       `json:"content"`
	UpdatedBy *UserSummary `json:"updatedBy"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// StudyGuideView 对外返回的学习指南，用户引用已展开
type StudyGuideView struct {
	ID            string        `json:"_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Content       string        `json:"content"`
	Summary       string        `json:"summary"`
	Flashcards    []Flashcard   `json:"flashcards"`
	Keywords      []Keyword     `json:"keywords"`
	Subjects      []string      `json:"subjects"`
	CustomSubject string        `json:"customSubject,omitempty"`
	IsPublic      bool          `json:"isPublic"`
	Creator       *UserSummary  `json:"creator"`
	Contributors  []UserSummary `json:"contributors"`
	Upvotes       int           `json:"upvotes"`
	UpvotedBy     []int64       `json:"upvotedBy"`
	Versions      []VersionView `json:"versions"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// StudyGuideList 分页列表
type StudyGuideList struct {
	StudyGuides []StudyGuideView `json:"studyGuides"`
	Page        int              `json:"page"`
	Pages       int              `json:"pages"`
	Total       int64            `json:"total"`
}

// UpvoteResult 点赞切换结果
type UpvoteResult struct {
	Upvotes int  `json:"upvotes"`
	Upvoted bool `json:"upvoted"`
}
