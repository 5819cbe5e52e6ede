package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"StudySync/config"
	"StudySync/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AvatarPrefix 头像对象的统一前缀
const AvatarPrefix = "avatars/"

// MinioStore 封装 MinIO 客户端和目标存储桶
type MinioStore struct {
	client    *minio.Client
	bucket    string
	endpoint  string
	useSSL    bool
	publicURL string
}

// NewMinioStore 创建 MinIO 存储并确认存储桶存在
func NewMinioStore(ctx context.Context, cfg *config.Config) (*MinioStore, error) {
	logger.Info("正在连接 MinIO 服务器",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket),
		logger.String("region", cfg.MinioRegion))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	store := &MinioStore{
		client:    client,
		bucket:    cfg.MinioBucket,
		endpoint:  cfg.MinioEndpoint,
		useSSL:    cfg.MinioUseSSL,
		publicURL: strings.TrimRight(cfg.MinioPublicURL, "/"),
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.ensureBucket(ctx, cfg.MinioRegion); err != nil {
		return nil, err
	}

	logger.Info("MinIO 连接成功", logger.String("bucket", cfg.MinioBucket))
	return store, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("已创建存储桶", logger.String("bucket", s.bucket))
	return nil
}

// AvatarKey 生成 avatars/<userID>/<uuid><ext>
func AvatarKey(userID int64, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s%d/%s%s", AvatarPrefix, userID, uuid.NewString(), ext)
}

// UploadAvatar 上传头像并返回可访问的 URL
func (s *MinioStore) UploadAvatar(ctx context.Context, userID int64, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := AvatarKey(userID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传头像失败: %w", err)
	}
	logger.Debug("头像已上传", logger.Int64("userId", userID), logger.String("key", key))
	return s.ObjectURL(key), nil
}

// ObjectURL 拼接对象的公开地址
func (s *MinioStore) ObjectURL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}

// Bucket 当前存储桶名
func (s *MinioStore) Bucket() string {
	return s.bucket
}
