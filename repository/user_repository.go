package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"StudySync/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrDuplicateUser 用户名或邮箱已存在
var ErrDuplicateUser = errors.New("user already exists")

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Update(ctx context.Context, user *model.User) error
	ResetSettings(ctx context.Context, id int64, settings model.UserSettings) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GORM 用户仓库
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// isDuplicateKey 识别唯一索引冲突（MySQL 1062 / SQLite UNIQUE constraint）
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *gormUserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *gormUserRepository) first(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// GetByID 用户不存在时返回 nil, nil
func (r *gormUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByIDs 批量查询，结果按 ID 索引；不存在的 ID 不出现在结果中
func (r *gormUserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	out := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []*model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *gormUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

func (r *gormUserRepository) Update(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *gormUserRepository) ResetSettings(ctx context.Context, id int64, settings model.UserSettings) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("settings", datatypes.NewJSONType(settings)).Error
	if err != nil {
		return fmt.Errorf("failed to reset user settings: %w", err)
	}
	return nil
}

func (r *gormUserRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&model.User{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// DeleteAll 清空用户表，仅供 reset-db 命令使用
func (r *gormUserRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.User{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete users: %w", res.Error)
	}
	return res.RowsAffected, nil
}
