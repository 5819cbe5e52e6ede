// Package account 实现注册、登录、资料维护以及账号删除的级联清理。
package account

import (
	"context"
	"errors"
	"io"
	"strings"

	"StudySync/core/auth"
	"StudySync/core/errs"
	"StudySync/core/notify"
	"StudySync/core/validation"
	"StudySync/logger"
	"StudySync/model"
	"StudySync/repository"

	"gorm.io/datatypes"
)

// AvatarStore 头像对象存储
type AvatarStore interface {
	UploadAvatar(ctx context.Context, userID int64, filename, contentType string, r io.Reader, size int64) (string, error)
}

// CacheInvalidator 清理学习指南缓存
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, ids ...string)
}

// Service 账号业务流程
type Service struct {
	users     repository.UserRepository
	guides    repository.StudyGuideRepository
	tokens    *auth.TokenManager
	validator *validation.Validator
	notifier  notify.Notifier
	avatars   AvatarStore
	cache     CacheInvalidator
}

// Options 可选依赖
type Options struct {
	Notifier notify.Notifier
	Avatars  AvatarStore
	Cache    CacheInvalidator
}

func NewService(users repository.UserRepository, guides repository.StudyGuideRepository,
	tokens *auth.TokenManager, opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = notify.NopNotifier{}
	}
	return &Service{
		users:     users,
		guides:    guides,
		tokens:    tokens,
		validator: validation.New(),
		notifier:  opts.Notifier,
		avatars:   opts.Avatars,
		cache:     opts.Cache,
	}
}

// RegisterInput 注册参数
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginInput 登录参数，email 与 username 二选一
type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput 资料更新，空值表示不修改
type ProfileInput struct {
	Username       string              `json:"username" validate:"omitempty,min=3,max=30"`
	Email          string              `json:"email" validate:"omitempty,email"`
	Password       string              `json:"password" validate:"omitempty,min=6"`
	ProfilePicture string              `json:"profilePicture" validate:"omitempty,max=512"`
	Bio            *string             `json:"bio" validate:"omitempty,max=500"`
	Settings       *model.UserSettings `json:"settings"`
}

// AuthResult 注册、登录与资料更新的返回
type AuthResult struct {
	User  *model.User
	Token string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 创建账号并签发令牌
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.Conflict("User already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, errs.Validation("Password must be at least 6 characters long")
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Settings:     datatypes.NewJSONType(model.DefaultUserSettings()),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, errs.Conflict("User already exists")
		}
		return nil, err
	}

	logger.Info("[Register] 注册成功", logger.Int64("userId", user.ID), logger.String("username", user.Username))
	return s.withToken(user)
}

// Login 邮箱或用户名 + 密码登录
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	var user *model.User
	var err error
	switch {
	case strings.TrimSpace(in.Email) != "":
		user, err = s.users.GetByEmail(ctx, normalizeEmail(in.Email))
	case strings.TrimSpace(in.Username) != "":
		user, err = s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	default:
		return nil, errs.Validation("Email is required")
	}
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPasswordHash(in.Password, user.PasswordHash) {
		logger.Warn("[Login] 登录失败", logger.String("email", in.Email), logger.String("username", in.Username))
		return nil, errs.Unauthorized("Invalid email or password")
	}

	logger.Info("[Login] 登录成功", logger.Int64("userId", user.ID))
	return s.withToken(user)
}

func (s *Service) withToken(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate 校验令牌并加载用户
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, errs.Unauthorized("Not authorized, token failed")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errs.Unauthorized("User not found")
	}
	return user, nil
}

// Profile 返回用户资料
func (s *Service) Profile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errs.NotFound("User not found")
	}
	return user, nil
}

// UpdateProfile 更新资料并重新签发令牌
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != "" && in.Username != user.Username {
		existing, err := s.users.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errs.Conflict("Username is already taken")
		}
		user.Username = in.Username
	}
	if in.Email != "" && in.Email != user.Email {
		existing, err := s.users.GetByEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errs.Conflict("Email is already registered")
		}
		user.Email = in.Email
	}
	if in.ProfilePicture != "" {
		user.ProfilePicture = in.ProfilePicture
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	if in.Settings != nil {
		user.Settings = datatypes.NewJSONType(*in.Settings)
	}
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, errs.Validation("Password must be at least 6 characters long")
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, errs.Conflict("Username or email is already taken")
		}
		return nil, err
	}
	return s.withToken(user)
}

// UploadAvatar 上传头像并更新 profilePicture
func (s *Service) UploadAvatar(ctx context.Context, userID int64, filename, contentType string, r io.Reader, size int64) (*model.User, error) {
	if s.avatars == nil {
		return nil, errors.New("avatar storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errs.Validation("Profile picture must be an image")
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	url, err := s.avatars.UploadAvatar(ctx, userID, filename, contentType, r, size)
	if err != nil {
		return nil, err
	}
	user.ProfilePicture = url
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount 级联清理后删除用户
func (s *Service) DeleteAccount(ctx context.Context, userID int64) error {
	if _, err := s.Profile(ctx, userID); err != nil {
		return err
	}
	if err := s.cascade(ctx, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	logger.Info("[Account] 账号已删除", logger.Int64("userId", userID))
	return nil
}

// ResetData 与删除相同的级联清理，但保留账号并恢复默认设置
func (s *Service) ResetData(ctx context.Context, userID int64) error {
	if _, err := s.Profile(ctx, userID); err != nil {
		return err
	}
	if err := s.cascade(ctx, userID); err != nil {
		return err
	}
	if err := s.users.ResetSettings(ctx, userID, model.DefaultUserSettings()); err != nil {
		return err
	}
	logger.Info("[Account] 用户数据已重置", logger.Int64("userId", userID))
	return nil
}

// cascade 依次执行三个独立的批量操作，中途失败不会回滚已完成的步骤
func (s *Service) cascade(ctx context.Context, userID int64) error {
	deleted, err := s.guides.DeleteByCreator(ctx, userID)
	if err != nil {
		return err
	}
	contributed, err := s.guides.RemoveContributor(ctx, userID)
	if err != nil {
		return err
	}
	upvoted, err := s.guides.RemoveUpvoter(ctx, userID)
	if err != nil {
		return err
	}

	if s.cache != nil {
		touched := append(append(append([]string{}, deleted...), contributed...), upvoted...)
		s.cache.InvalidateCache(ctx, touched...)
	}
	for _, id := range deleted {
		s.notifier.Publish(notify.Deleted(id))
	}

	logger.Info("[Account] 级联清理完成",
		logger.Int64("userId", userID),
		logger.Int("deleted", len(deleted)),
		logger.Int("contributions", len(contributed)),
		logger.Int("upvotes", len(upvoted)))
	return nil
}
