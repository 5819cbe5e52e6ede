package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"StudySync/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 排序方式
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// StudyGuideFilter 列表查询条件，Page 从 1 开始
type StudyGuideFilter struct {
	Subject    string
	Search     string
	Sort       string
	Page       int
	Limit      int
	PublicOnly bool
}

// StudyGuideRepository 学习指南数据访问接口
type StudyGuideRepository interface {
	FindByID(ctx context.Context, id string) (*model.StudyGuide, error)
	Save(ctx context.Context, guide *model.StudyGuide) error
	DeleteByID(ctx context.Context, id string) error
	List(ctx context.Context, filter StudyGuideFilter) ([]*model.StudyGuide, int64, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]*model.StudyGuide, error)

	// 账号级联
	DeleteByCreator(ctx context.Context, creatorID int64) ([]string, error)
	RemoveContributor(ctx context.Context, userID int64) ([]string, error)
	RemoveUpvoter(ctx context.Context, userID int64) ([]string, error)

	DeleteAll(ctx context.Context) (int64, error)
}

type gormStudyGuideRepository struct {
	db *gorm.DB
}

// NewGormStudyGuideRepository 创建 GORM 学习指南仓库
func NewGormStudyGuideRepository(db *gorm.DB) StudyGuideRepository {
	return &gormStudyGuideRepository{db: db}
}

// FindByID 不存在时返回 nil, nil
func (r *gormStudyGuideRepository) FindByID(ctx context.Context, id string) (*model.StudyGuide, error) {
	var guide model.StudyGuide
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&guide).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query study guide: %w", err)
	}
	if err := r.loadRelations(ctx, []*model.StudyGuide{&guide}); err != nil {
		return nil, err
	}
	return &guide, nil
}

// Save 整体写入（存在则覆盖），子表整体替换，最后写入者生效
func (r *gormStudyGuideRepository) Save(ctx context.Context, guide *model.StudyGuide) error {
	now := time.Now()
	if guide.CreatedAt.IsZero() {
		guide.CreatedAt = now
	}
	guide.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(guide).Error; err != nil {
			return fmt.Errorf("failed to save study guide: %w", err)
		}
		if err := deleteRelations(tx, []string{guide.ID}); err != nil {
			return err
		}

		if len(guide.Subjects) > 0 {
			rows := make([]model.StudyGuideSubject, len(guide.Subjects))
			for i, s := range guide.Subjects {
				rows[i] = model.StudyGuideSubject{StudyGuideID: guide.ID, Subject: s, Position: i}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save subjects: %w", err)
			}
		}
		if len(guide.Contributors) > 0 {
			rows := make([]model.StudyGuideContributor, len(guide.Contributors))
			for i, id := range guide.Contributors {
				rows[i] = model.StudyGuideContributor{StudyGuideID: guide.ID, UserID: id, Position: i}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save contributors: %w", err)
			}
		}
		if len(guide.UpvotedBy) > 0 {
			rows := make([]model.StudyGuideUpvote, len(guide.UpvotedBy))
			for i, id := range guide.UpvotedBy {
				rows[i] = model.StudyGuideUpvote{StudyGuideID: guide.ID, UserID: id, Position: i}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save upvotes: %w", err)
			}
		}
		return nil
	})
}

func deleteRelations(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, m := range []interface{}{&model.StudyGuideSubject{}, &model.StudyGuideContributor{}, &model.StudyGuideUpvote{}} {
		if err := tx.Where("study_guide_id IN ?", ids).Delete(m).Error; err != nil {
			return fmt.Errorf("failed to delete study guide relations: %w", err)
		}
	}
	return nil
}

func (r *gormStudyGuideRepository) DeleteByID(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteRelations(tx, []string{id}); err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&model.StudyGuide{}).Error; err != nil {
			return fmt.Errorf("failed to delete study guide: %w", err)
		}
		return nil
	})
}

// List 分页查询，返回当前页与总数
func (r *gormStudyGuideRepository) List(ctx context.Context, filter StudyGuideFilter) ([]*model.StudyGuide, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	query := r.db.WithContext(ctx).Model(&model.StudyGuide{})
	if filter.PublicOnly {
		query = query.Where("is_public = ?", true)
	}
	if subject := strings.TrimSpace(filter.Subject); subject != "" {
		query = query.Where("id IN (?)",
			r.db.Model(&model.StudyGuideSubject{}).Select("study_guide_id").Where("subject = ?", subject))
	}

	phrase := strings.TrimSpace(filter.Search)
	if phrase != "" {
		terms := strings.Fields(phrase)
		cond := r.db.Where("1 = 0")
		for _, term := range terms {
			like := "%" + escapeLike(term) + "%"
			cond = cond.
				Or("title LIKE ? ESCAPE '!'", like).
				Or("content LIKE ? ESCAPE '!'", like).
				Or("id IN (?)", r.db.Model(&model.StudyGuideSubject{}).
					Select("study_guide_id").Where("subject LIKE ? ESCAPE '!'", like))
		}
		query = query.Where(cond)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count study guides: %w", err)
	}

	orderBy := "created_at DESC"
	switch filter.Sort {
	case SortOldest:
		orderBy = "created_at ASC"
	case SortPopular:
		orderBy = "upvotes DESC, created_at DESC"
	}
	if phrase != "" {
		// 相关度优先：标题完全匹配 > 标题包含 > 正文或科目包含 > 其余
		like := "%" + escapeLike(phrase) + "%"
		query = query.Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL: "CASE WHEN LOWER(title) = LOWER(?) THEN 0 WHEN title LIKE ? ESCAPE '!' THEN 1 " +
				"WHEN content LIKE ? ESCAPE '!' OR id IN (SELECT study_guide_id FROM study_guide_subjects " +
				"WHERE subject LIKE ? ESCAPE '!') THEN 2 ELSE 3 END, " + orderBy,
			Vars:               []interface{}{phrase, like, like, like},
			WithoutParentheses: true,
		}})
	} else {
		query = query.Order(orderBy)
	}

	var guides []*model.StudyGuide
	err := query.Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit).Find(&guides).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list study guides: %w", err)
	}
	if err := r.loadRelations(ctx, guides); err != nil {
		return nil, 0, err
	}
	return guides, total, nil
}

// ListByCreator 按更新时间倒序
func (r *gormStudyGuideRepository) ListByCreator(ctx context.Context, creatorID int64) ([]*model.StudyGuide, error) {
	var guides []*model.StudyGuide
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("updated_at DESC").
		Find(&guides).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list study guides by creator: %w", err)
	}
	if err := r.loadRelations(ctx, guides); err != nil {
		return nil, err
	}
	return guides, nil
}

// DeleteByCreator 删除用户创建的全部指南，返回被删除的 ID
func (r *gormStudyGuideRepository) DeleteByCreator(ctx context.Context, creatorID int64) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.StudyGuide{}).Where("creator_id = ?", creatorID).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to query study guides by creator: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := deleteRelations(tx, ids); err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&model.StudyGuide{}).Error; err != nil {
			return fmt.Errorf("failed to delete study guides: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveContributor 从所有指南的贡献者中移除用户，返回受影响的 ID
func (r *gormStudyGuideRepository) RemoveContributor(ctx context.Context, userID int64) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.StudyGuideContributor{}).Where("user_id = ?", userID).
			Distinct().Pluck("study_guide_id", &ids).Error; err != nil {
			return fmt.Errorf("failed to query contributions: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.StudyGuideContributor{}).Error; err != nil {
			return fmt.Errorf("failed to remove contributor: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveUpvoter 撤销用户的全部点赞，并按剩余点赞记录重算 upvotes
func (r *gormStudyGuideRepository) RemoveUpvoter(ctx context.Context, userID int64) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.StudyGuideUpvote{}).Where("user_id = ?", userID).
			Distinct().Pluck("study_guide_id", &ids).Error; err != nil {
			return fmt.Errorf("failed to query upvotes: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.StudyGuideUpvote{}).Error; err != nil {
			return fmt.Errorf("failed to remove upvotes: %w", err)
		}
		err := tx.Model(&model.StudyGuide{}).Where("id IN ?", ids).
			UpdateColumn("upvotes", gorm.Expr(
				"(SELECT COUNT(*) FROM study_guide_upvotes WHERE study_guide_upvotes.study_guide_id = study_guides.id)")).Error
		if err != nil {
			return fmt.Errorf("failed to recount upvotes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteAll 清空全部指南，仅供 reset-db 命令使用
func (r *gormStudyGuideRepository) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range []interface{}{&model.StudyGuideSubject{}, &model.StudyGuideContributor{}, &model.StudyGuideUpvote{}} {
			if err := global.Delete(m).Error; err != nil {
				return fmt.Errorf("failed to delete study guide relations: %w", err)
			}
		}
		res := global.Delete(&model.StudyGuide{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete study guides: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

// loadRelations 批量加载子表数据
func (r *gormStudyGuideRepository) loadRelations(ctx context.Context, guides []*model.StudyGuide) error {
	if len(guides) == 0 {
		return nil
	}
	byID := make(map[string]*model.StudyGuide, len(guides))
	ids := make([]string, 0, len(guides))
	for _, g := range guides {
		g.Subjects = []string{}
		g.Contributors = []int64{}
		g.UpvotedBy = []int64{}
		byID[g.ID] = g
		ids = append(ids, g.ID)
	}

	db := r.db.WithContext(ctx)

	var subjects []model.StudyGuideSubject
	if err := db.Where("study_guide_id IN ?", ids).Order("position ASC").Find(&subjects).Error; err != nil {
		return fmt.Errorf("failed to load subjects: %w", err)
	}
	for _, s := range subjects {
		byID[s.StudyGuideID].Subjects = append(byID[s.StudyGuideID].Subjects, s.Subject)
	}

	var contributors []model.StudyGuideContributor
	if err := db.Where("study_guide_id IN ?", ids).Order("position ASC").Find(&contributors).Error; err != nil {
		return fmt.Errorf("failed to load contributors: %w", err)
	}
	for _, c := range contributors {
		byID[c.StudyGuideID].Contributors = append(byID[c.StudyGuideID].Contributors, c.UserID)
	}

	var upvotes []model.StudyGuideUpvote
	if err := db.Where("study_guide_id IN ?", ids).Order("position ASC").Find(&upvotes).Error; err != nil {
		return fmt.Errorf("failed to load upvotes: %w", err)
	}
	for _, u := range upvotes {
		byID[u.StudyGuideID].UpvotedBy = append(byID[u.StudyGuideID].UpvotedBy, u.UserID)
	}
	return nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike 转义 LIKE 通配符，配合 ESCAPE '!' 使用
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
