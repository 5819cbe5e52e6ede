package notify

import (
	"time"

	"StudySync/model"
)

// Kind 事件类型
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
	KindUpvoted Kind = "upvoted"
)

// MessageType 返回推送给客户端的消息类型，如 studyGuide:updated
func (k Kind) MessageType() string {
	return "studyGuide:" + string(k)
}

// Event 学习指南变更事件
type Event struct {
	Kind         Kind        `json:"kind"`
	StudyGuideID string      `json:"studyGuideId"`
	Payload      interface{} `json:"payload"`
}

// Notifier 事件发布者，发布是即发即弃的，不返回错误
type Notifier interface {
	Publish(evt Event)
}

// NopNotifier 丢弃所有事件
type NopNotifier struct{}

func (NopNotifier) Publish(Event) {}

// CreatedPayload created 事件内容
type CreatedPayload struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Subjects  []string  `json:"subjects"`
	Creator   int64     `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
}

type UpdatedPayload struct {
	StudyGuideID string    `json:"studyGuideId"`
	UpdatedBy    int64     `json:"updatedBy"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type DeletedPayload struct {
	StudyGuideID string `json:"studyGuideId"`
}

type UpvotedPayload struct {
	StudyGuideID string  `json:"studyGuideId"`
	Upvotes      int     `json:"upvotes"`
	UpvotedBy    []int64 `json:"upvotedBy"`
}

func Created(g *model.StudyGuide) Event {
	return Event{Kind: KindCreated, StudyGuideID: g.ID, Payload: CreatedPayload{
		ID:        g.ID,
		Title:     g.Title,
		Subjects:  append([]string(nil), g.Subjects...),
		Creator:   g.CreatorID,
		CreatedAt: g.CreatedAt,
	}}
}

func Updated(id string, updatedBy int64, at time.Time) Event {
	return Event{Kind: KindUpdated, StudyGuideID: id, Payload: UpdatedPayload{
		StudyGuideID: id,
		UpdatedBy:    updatedBy,
		UpdatedAt:    at,
	}}
}

func Deleted(id string) Event {
	return Event{Kind: KindDeleted, StudyGuideID: id, Payload: DeletedPayload{StudyGuideID: id}}
}

func Upvoted(g *model.StudyGuide) Event {
	return Event{Kind: KindUpvoted, StudyGuideID: g.ID, Payload: UpvotedPayload{
		StudyGuideID: g.ID,
		Upvotes:      g.Upvotes,
		UpvotedBy:    append([]int64{}, g.UpvotedBy...),
	}}
}
