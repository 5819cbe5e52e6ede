package notify

import (
	"context"
	"encoding/json"
	"time"

	"StudySync/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBridge 通过 Redis Pub/Sub 在多个实例之间转发事件。
// 本地订阅者由本实例 Hub 直接投递，收到自己发出的消息时跳过。
type RedisBridge struct {
	client  *redis.Client
	channel string
	local   Notifier
	origin  string
}

type envelope struct {
	Origin       string          `json:"origin"`
	Kind         Kind            `json:"kind"`
	StudyGuideID string          `json:"studyGuideId"`
	Payload      json.RawMessage `json:"payload"`
}

// NewRedisBridge 创建桥接器，local 通常是本实例的 Hub
func NewRedisBridge(client *redis.Client, channel string, local Notifier) *RedisBridge {
	return &RedisBridge{
		client:  client,
		channel: channel,
		local:   local,
		origin:  uuid.NewString(),
	}
}

// Publish 先本地投递，再异步发布到 Redis
func (b *RedisBridge) Publish(evt Event) {
	b.local.Publish(evt)

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		logger.Error("[RedisBridge] 事件序列化失败", logger.ErrorField(err))
		return
	}
	data, err := json.Marshal(envelope{
		Origin:       b.origin,
		Kind:         evt.Kind,
		StudyGuideID: evt.StudyGuideID,
		Payload:      payload,
	})
	if err != nil {
		logger.Error("[RedisBridge] 事件序列化失败", logger.ErrorField(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
			logger.Warn("[RedisBridge] 发布失败",
				logger.String("channel", b.channel),
				logger.ErrorField(err))
		}
	}()
}

// Run 订阅频道并把其他实例的事件投递到本地，ctx 取消后返回
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	logger.Info("[RedisBridge] 已订阅事件频道", logger.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			evt, origin, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				logger.Warn("[RedisBridge] 无效消息", logger.ErrorField(err))
				continue
			}
			if origin == b.origin {
				continue
			}
			b.local.Publish(evt)
		}
	}
}

func decodeEnvelope(data []byte) (Event, string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, "", err
	}
	return Event{Kind: env.Kind, StudyGuideID: env.StudyGuideID, Payload: env.Payload}, env.Origin, nil
}
