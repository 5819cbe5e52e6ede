package notify

import (
	"context"
	"encoding/json"
	"time"

	"StudySync/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// 客户端发来的消息类型
const (
	ClientJoin  = "joinStudyGuide"
	ClientLeave = "leaveStudyGuide"
	ClientPing  = "ping"
)

// ClientMessage 客户端请求
type ClientMessage struct {
	Type         string `json:"type"`
	StudyGuideID string `json:"studyGuideId"`
}

// Client 一个 WebSocket 连接
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	// 只在 Hub 主循环中访问
	channels map[string]struct{}
}

// NewClient 创建客户端，conn 为 nil 时只能通过 Send 读取消息
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
		channels: make(map[string]struct{}),
	}
}

// ServeConn 注册连接并阻塞读取，连接断开后返回
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn) {
	client := NewClient(h, conn)
	h.Register(client)
	logger.Debug("[WS] 客户端已连接", logger.String("client", client.ID))

	go client.WritePump()
	client.ReadPump(ctx)
}

// ReadPump 读取客户端消息，处理订阅请求
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		logger.Debug("[WS] 客户端已断开", logger.String("client", c.ID))
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("[WS] 读取失败", logger.ErrorField(err), logger.String("client", c.ID))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("[WS] 无效消息", logger.ErrorField(err))
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg ClientMessage) {
	switch msg.Type {
	case ClientJoin:
		if msg.StudyGuideID != "" {
			c.Hub.Join(c, msg.StudyGuideID)
		}
	case ClientLeave:
		if msg.StudyGuideID != "" {
			c.Hub.Leave(c, msg.StudyGuideID)
		}
	case ClientPing:
		// 应用层心跳只续期读超时
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// WritePump 把 Send 中的消息写回连接，并定时发送 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
