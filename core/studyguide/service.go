// Package studyguide 实现学习指南的创建、更新、删除、点赞与查询流程。
package studyguide

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"StudySync/core/errs"
	"StudySync/core/notify"
	"StudySync/logger"
	"StudySync/model"
	"StudySync/repository"

	"github.com/google/uuid"
)

const (
	minContentLength = 10
	minTitleLength   = 3
	maxTitleLength   = 100

	// 内容长度变化超过该值才重新生成 AI 内容
	significantChangeThreshold = 100

	defaultPageSize = 10
	maxPageSize     = 100

	// 保证 (page-1)*limit 不溢出
	maxPage = 1_000_000
)

// ContentGenerator AI 内容生成，失败时返回空结果
type ContentGenerator interface {
	Summarize(ctx context.Context, content string) string
	GenerateFlashcards(ctx context.Context, content string) []model.Flashcard
	ExtractKeywords(ctx context.Context, content string) []model.Keyword
}

type nopGenerator struct{}

func (nopGenerator) Summarize(context.Context, string) string { return "" }

func (nopGenerator) GenerateFlashcards(context.Context, string) []model.Flashcard { return nil }

func (nopGenerator) ExtractKeywords(context.Context, string) []model.Keyword { return nil }

// GuideCache 详情缓存，可为 nil
//
// 缓存未展开的指南，用户信息每次读取时重新展开。
// Invalidate 递增版本号，SetIfVersion 只在版本号未变化时写入。
type GuideCache interface {
	Get(ctx context.Context, id string) (*model.StudyGuide, error)
	Version(ctx context.Context, id string) (int64, error)
	SetIfVersion(ctx context.Context, guide *model.StudyGuide, version int64) error
	Invalidate(ctx context.Context, ids ...string) error
}

// Service 学习指南业务流程
type Service struct {
	guides    repository.StudyGuideRepository
	users     repository.UserRepository
	generator ContentGenerator
	notifier  notify.Notifier
	cache     GuideCache
	now       func() time.Time
}

// NewService 创建 Service，notifier 为 nil 时不发布事件
func NewService(guides repository.StudyGuideRepository, users repository.UserRepository,
	generator ContentGenerator, notifier notify.Notifier, cache GuideCache) *Service {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if generator == nil {
		generator = nopGenerator{}
	}
	return &Service{
		guides:    guides,
		users:     users,
		generator: generator,
		notifier:  notifier,
		cache:     cache,
		now:       time.Now,
	}
}

// CreateInput 创建参数
type CreateInput struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Content       string   `json:"content"`
	Subjects      []string `json:"subjects"`
	CustomSubject string   `json:"customSubject"`
	IsPublic      *bool    `json:"isPublic"`
}

// UpdateInput 更新参数，nil 表示未提供
type UpdateInput struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Content     *string            `json:"content"`
	Subjects    []string           `json:"subjects"`
	Flashcards  *[]model.Flashcard `json:"flashcards"`
	IsPublic    *bool              `json:"isPublic"`
}

// ListQuery 列表参数
type ListQuery struct {
	Subject string
	Search  string
	Sort    string
	Page    int
	Limit   int
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

// IsSignificantChange 判断内容修改是否需要重新生成 AI 内容
func IsSignificantChange(oldContent, newContent string) bool {
	if oldContent == "" {
		return true
	}
	return math.Abs(float64(length(oldContent)-length(newContent))) > significantChangeThreshold
}

func validateContent(content string) error {
	if length(content) < minContentLength {
		return errs.Validation("Content must be at least 10 characters long")
	}
	return nil
}

func validateTitle(title string) error {
	n := length(strings.TrimSpace(title))
	if n < minTitleLength || n > maxTitleLength {
		return errs.Validation("Title must be between 3 and 100 characters")
	}
	return nil
}

// normalizeFlashcards 校验用户提交的闪卡，未指定类型时默认为 freeform
func normalizeFlashcards(cards []model.Flashcard) ([]model.Flashcard, error) {
	out := make([]model.Flashcard, 0, len(cards))
	for _, c := range cards {
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.Answer) == "" {
			return nil, errs.Validation("Each flashcard needs a question and an answer")
		}
		switch c.Type {
		case "":
			c.Type = model.FlashcardFreeform
		case model.FlashcardFreeform, model.FlashcardMultipleChoice:
		default:
			return nil, errs.Validation("Flashcard type must be multiple_choice or freeform")
		}
		if c.Options == nil {
			c.Options = []string{}
		}
		out = append(out, c)
	}
	return out, nil
}

// normalizeSubjects 去空白、去重并保持顺序
func normalizeSubjects(subjects []string) []string {
	out := make([]string, 0, len(subjects))
	seen := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Create 先持久化并广播 created，再尽力生成 AI 内容后二次保存
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*model.StudyGuide, error) {
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}

	subjects := normalizeSubjects(in.Subjects)
	custom := strings.TrimSpace(in.CustomSubject)
	if custom != "" {
		subjects = []string{custom}
	}
	if len(subjects) == 0 {
		return nil, errs.Validation("At least one subject is required")
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	guide := &model.StudyGuide{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Content:       in.Content,
		Subjects:      subjects,
		CustomSubject: custom,
		IsPublic:      isPublic,
		CreatorID:     userID,
		Contributors:  []int64{userID},
		UpvotedBy:     []int64{},
	}
	if err := s.guides.Save(ctx, guide); err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.Created(guide))

	logger.Info("[StudyGuide] 创建成功",
		logger.String("id", guide.ID),
		logger.Int64("creator", userID))

	s.enrich(ctx, guide)
	return guide, nil
}

// enrich 生成摘要、闪卡、关键词，任何一项为空都不影响其他项
func (s *Service) enrich(ctx context.Context, guide *model.StudyGuide) {
	summary := s.generator.Summarize(ctx, guide.Content)
	flashcards := s.generator.GenerateFlashcards(ctx, guide.Content)
	keywords := s.generator.ExtractKeywords(ctx, guide.Content)
	if summary == "" && len(flashcards) == 0 && len(keywords) == 0 {
		return
	}

	before := *guide
	if summary != "" {
		guide.Summary = summary
	}
	if len(flashcards) > 0 {
		guide.Flashcards = flashcards
	}
	if len(keywords) > 0 {
		guide.Keywords = keywords
	}
	if err := s.guides.Save(ctx, guide); err != nil {
		logger.Warn("[StudyGuide] 保存 AI 内容失败",
			logger.String("id", guide.ID),
			logger.ErrorField(err))
		guide.Summary, guide.Flashcards, guide.Keywords = before.Summary, before.Flashcards, before.Keywords
	}
}

func (s *Service) load(ctx context.Context, id string) (*model.StudyGuide, error) {
	guide, err := s.guides.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if guide == nil {
		return nil, errs.NotFound("Study guide not found")
	}
	return guide, nil
}

// Update 创建者或贡献者可更新；内容发生变化时记录旧版本
func (s *Service) Update(ctx context.Context, id string, userID int64, in UpdateInput) (*model.StudyGuide, error) {
	guide, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !guide.CanEdit(userID) {
		return nil, errs.Forbidden("Not authorized to update this study guide")
	}

	newContent := ""
	contentGiven := in.Content != nil && *in.Content != ""
	if contentGiven {
		newContent = *in.Content
		if err := validateContent(newContent); err != nil {
			return nil, err
		}
	}
	if in.Title != nil && *in.Title != "" {
		if err := validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	var flashcards []model.Flashcard
	if in.Flashcards != nil {
		if flashcards, err = normalizeFlashcards(*in.Flashcards); err != nil {
			return nil, err
		}
	}

	guide.AddContributor(userID)

	if contentGiven && IsSignificantChange(guide.Content, newContent) {
		if summary := s.generator.Summarize(ctx, newContent); summary != "" {
			guide.Summary = summary
		}
		if in.Flashcards == nil {
			if cards := s.generator.GenerateFlashcards(ctx, newContent); len(cards) > 0 {
				guide.Flashcards = cards
			}
		}
		if keywords := s.generator.ExtractKeywords(ctx, newContent); len(keywords) > 0 {
			guide.Keywords = keywords
		}
	}

	now := s.now()
	if contentGiven && newContent != guide.Content {
		guide.AppendVersion(guide.Content, userID, now)
		guide.Content = newContent
	}
	if in.Title != nil && *in.Title != "" {
		guide.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		guide.Description = *in.Description
	}
	if subjects := normalizeSubjects(in.Subjects); len(subjects) > 0 {
		guide.Subjects = subjects
	}
	if in.Flashcards != nil {
		guide.Flashcards = flashcards
	}
	if in.IsPublic != nil {
		guide.IsPublic = *in.IsPublic
	}

	if err := s.guides.Save(ctx, guide); err != nil {
		return nil, err
	}
	s.invalidate(ctx, guide.ID)
	s.notifier.Publish(notify.Updated(guide.ID, userID, guide.UpdatedAt))
	return guide, nil
}

// Delete 仅创建者可删除
func (s *Service) Delete(ctx context.Context, id string, userID int64) error {
	guide, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !guide.IsCreator(userID) {
		return errs.Forbidden("Not authorized to delete this study guide")
	}
	if err := s.guides.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.notifier.Publish(notify.Deleted(id))

	logger.Info("[StudyGuide] 已删除", logger.String("id", id), logger.Int64("user", userID))
	return nil
}

// ToggleUpvote 切换点赞，重复调用交替生效
func (s *Service) ToggleUpvote(ctx context.Context, id string, userID int64) (*model.UpvoteResult, error) {
	guide, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	upvoted := guide.ToggleUpvote(userID)
	if err := s.guides.Save(ctx, guide); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.notifier.Publish(notify.Upvoted(guide))
	return &model.UpvoteResult{Upvotes: guide.Upvotes, Upvoted: upvoted}, nil
}

// Get 返回展开用户信息后的详情，指南本身优先读缓存
func (s *Service) Get(ctx context.Context, id string) (*model.StudyGuideView, error) {
	guide, err := s.cachedLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.expand(ctx, []*model.StudyGuide{guide})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// cachedLoad 未命中时读数据库并回填，回填以读库前取得的版本号为条件
func (s *Service) cachedLoad(ctx context.Context, id string) (*model.StudyGuide, error) {
	if s.cache == nil {
		return s.load(ctx, id)
	}

	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		logger.Warn("[StudyGuide] 读取缓存失败", logger.String("id", id), logger.ErrorField(err))
	} else if cached != nil {
		return cached, nil
	}

	version, verErr := s.cache.Version(ctx, id)
	guide, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if verErr != nil {
		logger.Warn("[StudyGuide] 读取缓存版本失败", logger.String("id", id), logger.ErrorField(verErr))
		return guide, nil
	}
	if err := s.cache.SetIfVersion(ctx, guide, version); err != nil {
		logger.Warn("[StudyGuide] 写入缓存失败", logger.String("id", id), logger.ErrorField(err))
	}
	return guide, nil
}

// List 公开指南分页列表
func (s *Service) List(ctx context.Context, q ListQuery) (*model.StudyGuideList, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > maxPage {
		q.Page = maxPage
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	guides, total, err := s.guides.List(ctx, repository.StudyGuideFilter{
		Subject:    q.Subject,
		Search:     q.Search,
		Sort:       q.Sort,
		Page:       q.Page,
		Limit:      q.Limit,
		PublicOnly: true,
	})
	if err != nil {
		return nil, err
	}
	views, err := s.expand(ctx, guides)
	if err != nil {
		return nil, err
	}
	return &model.StudyGuideList{
		StudyGuides: views,
		Page:        q.Page,
		Pages:       int(math.Ceil(float64(total) / float64(q.Limit))),
		Total:       total,
	}, nil
}

// ListByCreator 当前用户创建的指南，按更新时间倒序
func (s *Service) ListByCreator(ctx context.Context, userID int64) ([]model.StudyGuideView, error) {
	guides, err := s.guides.ListByCreator(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, guides)
}

func (s *Service) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		logger.Warn("[StudyGuide] 清除缓存失败", logger.Strings("ids", ids), logger.ErrorField(err))
	}
}

// InvalidateCache 供账号级联流程清理缓存
func (s *Service) InvalidateCache(ctx context.Context, ids ...string) {
	s.invalidate(ctx, ids...)
}
