// Package events 定义视频聚合的领域事件及其编码方式，统一事件命名与消息属性。
package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
)

// Kind 标识领域事件类型。
type Kind string

const (
	KindVideoCreated         Kind = "video.created"
	KindVideoWorkflowChanged Kind = "video.workflow_changed"
	KindVideoAssigned        Kind = "video.assigned"
	KindVideoUnassigned      Kind = "video.unassigned"
	KindVideoDeleted         Kind = "video.deleted"
)

const (
	// AggregateTypeVideo 标识视频聚合类型。
	AggregateTypeVideo = "video"
	// SchemaVersionV1 描述事件载荷的当前 schema 版本。
	SchemaVersionV1 = "v1"
)

var (
	// ErrNilVideo 在构建事件时视频实体为空。
	ErrNilVideo = errors.New("event builder: video is nil")
	// ErrInvalidEventID 表示未提供合法的事件 ID。
	ErrInvalidEventID = errors.New("event builder: event id is required")
)

// DomainEvent 是发布到消息总线的事件信封。
type DomainEvent struct {
	EventID       uuid.UUID `json:"event_id"`
	Kind          Kind      `json:"event_type"`
	AggregateID   uuid.UUID `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
	Version       int64     `json:"version"`
	OccurredAt    time.Time `json:"occurred_at"`
	Payload       any       `json:"payload"`
}

// VideoCreated 在上传完成或外部视频登记后产生。
type VideoCreated struct {
	VideoID         uuid.UUID  `json:"video_id"`
	UploadedBy      uuid.UUID  `json:"uploaded_by"`
	Title           string     `json:"title"`
	MimeType        string     `json:"mime_type"`
	FileSizeBytes   int64      `json:"file_size_bytes"`
	WorkflowStatus  string     `json:"workflow_status"`
	UploadSessionID *uuid.UUID `json:"upload_session_id,omitempty"`
	ExternalURL     *string    `json:"external_url,omitempty"`
	LessonID        *uuid.UUID `json:"lesson_id,omitempty"`
}

// VideoWorkflowChanged 在工作流状态迁移后产生。
type VideoWorkflowChanged struct {
	VideoID   uuid.UUID `json:"video_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   uuid.UUID `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
}

// VideoAssignment 描述课时关联的变更（assigned / unassigned 共用）。
type VideoAssignment struct {
	VideoID  uuid.UUID  `json:"video_id"`
	CourseID *uuid.UUID `json:"course_id,omitempty"`
	ModuleID *uuid.UUID `json:"module_id,omitempty"`
	LessonID *uuid.UUID `json:"lesson_id,omitempty"`
}

// VideoDeleted 在视频被管理员删除后产生。
type VideoDeleted struct {
	VideoID    uuid.UUID `json:"video_id"`
	DeletedBy  uuid.UUID `json:"deleted_by"`
	StorageKey string    `json:"storage_key,omitempty"`
}

// NewVideoCreatedEvent 基于持久化实体构建 VideoCreated 事件。
func NewVideoCreatedEvent(video *po.Video, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if video == nil {
		return nil, ErrNilVideo
	}
	payload := &VideoCreated{
		VideoID:         video.VideoID,
		UploadedBy:      video.UploadedBy,
		Title:           video.Title,
		MimeType:        video.MimeType,
		FileSizeBytes:   video.FileSizeBytes,
		WorkflowStatus:  string(video.WorkflowStatus),
		UploadSessionID: video.UploadSessionID,
		ExternalURL:     video.ExternalURL,
		LessonID:        video.LessonID,
	}
	return newEvent(KindVideoCreated, video.VideoID, eventID, occurredAt, payload)
}

// NewVideoWorkflowChangedEvent 构建工作流迁移事件。
func NewVideoWorkflowChangedEvent(video *po.Video, from po.WorkflowStatus, actorID uuid.UUID, actorRole string, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if video == nil {
		return nil, ErrNilVideo
	}
	payload := &VideoWorkflowChanged{
		VideoID:   video.VideoID,
		From:      string(from),
		To:        string(video.WorkflowStatus),
		ActorID:   actorID,
		ActorRole: actorRole,
	}
	return newEvent(KindVideoWorkflowChanged, video.VideoID, eventID, occurredAt, payload)
}

// NewVideoAssignmentEvent 构建课时关联事件；视频无 lesson 时视为 unassigned。
func NewVideoAssignmentEvent(video *po.Video, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if video == nil {
		return nil, ErrNilVideo
	}
	kind := KindVideoAssigned
	if video.LessonID == nil {
		kind = KindVideoUnassigned
	}
	payload := &VideoAssignment{
		VideoID:  video.VideoID,
		CourseID: video.CourseID,
		ModuleID: video.ModuleID,
		LessonID: video.LessonID,
	}
	return newEvent(kind, video.VideoID, eventID, occurredAt, payload)
}

// NewVideoDeletedEvent 构建删除事件。
func NewVideoDeletedEvent(video *po.Video, deletedBy uuid.UUID, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if video == nil {
		return nil, ErrNilVideo
	}
	payload := &VideoDeleted{
		VideoID:    video.VideoID,
		DeletedBy:  deletedBy,
		StorageKey: video.StorageKey,
	}
	return newEvent(KindVideoDeleted, video.VideoID, eventID, occurredAt, payload)
}

func newEvent(kind Kind, aggregateID, eventID uuid.UUID, occurredAt time.Time, payload any) (*DomainEvent, error) {
	if eventID == uuid.Nil {
		return nil, ErrInvalidEventID
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	occurredAt = occurredAt.UTC()
	return &DomainEvent{
		EventID:       eventID,
		Kind:          kind,
		AggregateID:   aggregateID,
		AggregateType: AggregateTypeVideo,
		Version:       VersionFromTime(occurredAt),
		OccurredAt:    occurredAt,
		Payload:       payload,
	}, nil
}

// Encode 将事件编码为 JSON 消息体。
func Encode(evt *DomainEvent) ([]byte, error) {
	if evt == nil {
		return nil, errors.New("event encode: event is nil")
	}
	return json.Marshal(evt)
}
