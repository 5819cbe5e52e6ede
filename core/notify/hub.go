package notify

import (
	"encoding/json"
	"sync"
	"time"

	"StudySync/logger"
)

// GlobalChannel 订阅该频道的客户端会收到所有指南的事件
const GlobalChannel = "*"

// ChannelName 指南频道名
func ChannelName(studyGuideID string) string {
	if studyGuideID == GlobalChannel {
		return GlobalChannel
	}
	return "studyGuide:" + studyGuideID
}

// Message 推送给客户端的消息
type Message struct {
	Type         string      `json:"type"`
	StudyGuideID string      `json:"studyGuideId,omitempty"`
	Data         interface{} `json:"data,omitempty"`
	Timestamp    int64       `json:"timestamp"`
}

type subscription struct {
	client  *Client
	channel string
	join    bool
	// Run 应用后关闭
	done chan struct{}
}

type registration struct {
	client *Client
	done   chan struct{}
}

// Hub WebSocket 事件分发中心
//
// created 事件推送给所有连接；其余事件推送给对应指南频道和全局频道的订阅者。
type Hub struct {
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}

	register   chan registration
	unregister chan registration
	subscribe  chan subscription
	broadcast  chan Event

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub 创建 Hub，需要调用 Run 启动
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		channels:   make(map[string]map[*Client]struct{}),
		register:   make(chan registration),
		unregister: make(chan registration),
		subscribe:  make(chan subscription),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case reg := <-h.register:
			h.mu.Lock()
			h.clients[reg.client] = struct{}{}
			h.mu.Unlock()
			close(reg.done)

		case reg := <-h.unregister:
			h.removeClient(reg.client)
			close(reg.done)

		case sub := <-h.subscribe:
			h.applySubscription(sub)
			close(sub.done)

		case evt := <-h.broadcast:
			h.dispatch(evt)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub 并关闭所有客户端发送通道
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Register 注册连接，返回时连接已生效
func (h *Hub) Register(c *Client) {
	h.send(h.register, registration{client: c, done: make(chan struct{})})
}

// Unregister 注销连接，同时退出所有频道
func (h *Hub) Unregister(c *Client) {
	h.send(h.unregister, registration{client: c, done: make(chan struct{})})
}

func (h *Hub) send(ch chan registration, reg registration) {
	select {
	case ch <- reg:
	case <-h.done:
		return
	}
	select {
	case <-reg.done:
	case <-h.done:
	}
}

// Join 订阅指南频道，不做权限校验；返回后订阅已生效
func (h *Hub) Join(c *Client, studyGuideID string) {
	h.applyAndWait(subscription{client: c, channel: ChannelName(studyGuideID), join: true, done: make(chan struct{})})
}

// Leave 退订指南频道
func (h *Hub) Leave(c *Client, studyGuideID string) {
	h.applyAndWait(subscription{client: c, channel: ChannelName(studyGuideID), done: make(chan struct{})})
}

func (h *Hub) applyAndWait(sub subscription) {
	select {
	case h.subscribe <- sub:
	case <-h.done:
		return
	}
	select {
	case <-sub.done:
	case <-h.done:
	}
}

// Publish 实现 Notifier，缓冲区满时丢弃事件
func (h *Hub) Publish(evt Event) {
	select {
	case h.broadcast <- evt:
	default:
		logger.Warn("[Hub] 广播队列已满，丢弃事件",
			logger.String("kind", string(evt.Kind)),
			logger.String("studyGuideId", evt.StudyGuideID))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount 指南频道的订阅数
func (h *Hub) SubscriberCount(studyGuideID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[ChannelName(studyGuideID)])
}

func (h *Hub) applySubscription(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[sub.client]; !ok {
		return
	}
	if sub.join {
		if h.channels[sub.channel] == nil {
			h.channels[sub.channel] = make(map[*Client]struct{})
		}
		h.channels[sub.channel][sub.client] = struct{}{}
		sub.client.channels[sub.channel] = struct{}{}
		return
	}
	h.leaveLocked(sub.client, sub.channel)
}

func (h *Hub) leaveLocked(c *Client, channel string) {
	if members, ok := h.channels[channel]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(c.channels, channel)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	for channel := range c.channels {
		h.leaveLocked(c, channel)
	}
	delete(h.clients, c)
	close(c.Send)
}

// dispatch 序列化一次，按事件类型选择接收者
func (h *Hub) dispatch(evt Event) {
	data, err := json.Marshal(Message{
		Type:         evt.Kind.MessageType(),
		StudyGuideID: evt.StudyGuideID,
		Data:         evt.Payload,
		Timestamp:    time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Error("[Hub] 事件序列化失败", logger.ErrorField(err))
		return
	}

	h.mu.RLock()
	targets := make(map[*Client]struct{})
	if evt.Kind == KindCreated {
		for c := range h.clients {
			targets[c] = struct{}{}
		}
	} else {
		for c := range h.channels[ChannelName(evt.StudyGuideID)] {
			targets[c] = struct{}{}
		}
		for c := range h.channels[GlobalChannel] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for c := range targets {
		select {
		case c.Send <- data:
		default:
			// 慢客户端直接丢弃
			logger.Debug("[Hub] 客户端发送缓冲区已满", logger.String("client", c.ID))
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.channels = make(map[string]map[*Client]struct{})
}
