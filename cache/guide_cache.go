package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"StudySync/model"

	"github.com/redis/go-redis/v9"
)

const (
	guideDataKey    = "studyguide:%s:data" // String: 未展开用户信息的 StudyGuide JSON
	guideVersionKey = "studyguide:%s:ver"  // String: 版本号，每次 Invalidate 递增
	defaultGuideTTL = 5 * time.Minute
	versionTTL      = 24 * time.Hour
)

// GuideCache 学习指南缓存
//
// 只缓存指南本身，创建者、贡献者等用户信息由调用方在读取后展开。
// 回填使用 SetIfVersion，读取数据库之后发生的 Invalidate 会使回填作废。
type GuideCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGuideCache 创建缓存，ttl 为 0 时使用默认值
func NewGuideCache(client *redis.Client, ttl time.Duration) *GuideCache {
	if ttl <= 0 {
		ttl = defaultGuideTTL
	}
	return &GuideCache{client: client, ttl: ttl}
}

func dataKey(id string) string {
	return fmt.Sprintf(guideDataKey, id)
}

func versionKey(id string) string {
	return fmt.Sprintf(guideVersionKey, id)
}

// Get 未命中时返回 nil, nil
func (c *GuideCache) Get(ctx context.Context, id string) (*model.StudyGuide, error) {
	data, err := c.client.Get(ctx, dataKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached study guide: %w", err)
	}
	var guide model.StudyGuide
	if err := json.Unmarshal(data, &guide); err != nil {
		// 缓存内容损坏时当作未命中
		c.client.Del(ctx, dataKey(id))
		return nil, nil
	}
	return &guide, nil
}

// Version 当前版本号，不存在时为 0
func (c *GuideCache) Version(ctx context.Context, id string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cache version: %w", err)
	}
	return v, nil
}

// SetIfVersion 版本号仍等于 version 时写入，否则静默放弃
func (c *GuideCache) SetIfVersion(ctx context.Context, guide *model.StudyGuide, version int64) error {
	data, err := json.Marshal(guide)
	if err != nil {
		return fmt.Errorf("failed to marshal study guide: %w", err)
	}

	vKey := versionKey(guide.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dataKey(guide.ID), data, c.ttl)
			return nil
		})
		return err
	}, vKey)
	if errors.Is(err, redis.TxFailedErr) {
		// 版本号在 WATCH 期间被修改
		return nil
	}
	return err
}

// Invalidate 删除缓存并递增版本号
func (c *GuideCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, dataKey(id))
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), versionTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}
