// Package testcache 提供内存版学习指南缓存，行为与 Redis 实现一致。
package testcache

import (
	"context"
	"encoding/json"
	"sync"

	"StudySync/model"
)

// Guides 以 JSON 保存指南，版本号语义与 cache.GuideCache 相同
type Guides struct {
	mu       sync.Mutex
	data     map[string][]byte
	versions map[string]int64

	// BeforeSet 在下一次 SetIfVersion 比较版本号之前执行一次
	BeforeSet func()
}

func NewGuides() *Guides {
	return &Guides{
		data:     make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func (c *Guides) Get(ctx context.Context, id string) (*model.StudyGuide, error) {
	c.mu.Lock()
	b, ok := c.data[id]
	c.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var guide model.StudyGuide
	if err := json.Unmarshal(b, &guide); err != nil {
		return nil, err
	}
	return &guide, nil
}

func (c *Guides) Version(ctx context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[id], nil
}

func (c *Guides) SetIfVersion(ctx context.Context, guide *model.StudyGuide, version int64) error {
	c.mu.Lock()
	hook := c.BeforeSet
	c.BeforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	b, err := json.Marshal(guide)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[guide.ID] != version {
		return nil
	}
	c.data[guide.ID] = b
	return nil
}

func (c *Guides) Invalidate(ctx context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.data, id)
		c.versions[id]++
	}
	return nil
}

// Cached 是否存在缓存条目
func (c *Guides) Cached(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[id]
	return ok
}
