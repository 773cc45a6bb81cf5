// Package views 负责将 Service 层返回的 PO/VO 渲染为 HTTP JSON 响应结构，保持 Controller 层的精简。
package views

import (
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
)

// UploadSession 是上传会话的 JSON 视图。
type UploadSession struct {
	SessionID      string     `json:"session_id"`
	UserID         string     `json:"user_id"`
	Filename       string     `json:"filename"`
	FileSizeBytes  int64      `json:"file_size_bytes"`
	MimeType       string     `json:"mime_type"`
	PartSizeBytes  int64      `json:"part_size_bytes"`
	Status         string     `json:"status"`
	PartsTotal     int32      `json:"parts_total"`
	PartsCompleted int32      `json:"parts_completed"`
	BytesUploaded  int64      `json:"bytes_uploaded"`
	StorageBucket  string     `json:"storage_bucket"`
	StorageKey     string     `json:"storage_key"`
	Title          string     `json:"title,omitempty"`
	CourseID       *string    `json:"course_id,omitempty"`
	ModuleID       *string    `json:"module_id,omitempty"`
	LessonID       *string    `json:"lesson_id,omitempty"`
	VideoID        *string    `json:"video_id,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	URLsExpireAt   *time.Time `json:"urls_expire_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
}

// PresignedPart 是单个分片的上传地址。
type PresignedPart struct {
	PartNumber int32  `json:"part_number"`
	URL        string `json:"url"`
}

// UploadTicket 是初始化或刷新上传地址后的响应。
type UploadTicket struct {
	SessionID  string          `json:"session_id"`
	UploadID   string          `json:"upload_id"`
	Status     string          `json:"status"`
	PartSize   int64           `json:"part_size_bytes"`
	PartsTotal int32           `json:"parts_total"`
	Parts      []PresignedPart `json:"parts"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
}

// CompletedUpload 是 CompleteUpload 的响应。
type CompletedUpload struct {
	Session UploadSession `json:"session"`
	Video   Video         `json:"video"`
}

// NewUploadSession 渲染上传会话。
func NewUploadSession(session *po.UploadSession) UploadSession {
	if session == nil {
		return UploadSession{}
	}
	return UploadSession{
		SessionID:      session.SessionID.String(),
		UserID:         session.UserID.String(),
		Filename:       session.Filename,
		FileSizeBytes:  session.FileSizeBytes,
		MimeType:       session.MimeType,
		PartSizeBytes:  session.PartSizeBytes,
		Status:         string(session.Status),
		PartsTotal:     session.PartsTotal,
		PartsCompleted: session.PartsCompleted,
		BytesUploaded:  session.BytesUploaded,
		StorageBucket:  session.StorageBucket,
		StorageKey:     session.StorageKey,
		Title:          session.Title,
		CourseID:       uuidString(session.CourseID),
		ModuleID:       uuidString(session.ModuleID),
		LessonID:       uuidString(session.LessonID),
		VideoID:        uuidString(session.VideoID),
		ErrorMessage:   session.ErrorMessage,
		URLsExpireAt:   utcPtr(session.URLsExpireAt),
		CreatedAt:      session.CreatedAt.UTC(),
		UpdatedAt:      session.UpdatedAt.UTC(),
		FinalizedAt:    utcPtr(session.FinalizedAt),
	}
}

// NewUploadTicket 渲染预签名分片地址集合。Parts 总是输出数组，便于客户端遍历。
func NewUploadTicket(ticket *vo.UploadTicket) UploadTicket {
	if ticket == nil || ticket.Session == nil {
		return UploadTicket{Parts: []PresignedPart{}}
	}
	parts := make([]PresignedPart, 0, len(ticket.Parts))
	for _, p := range ticket.Parts {
		parts = append(parts, PresignedPart{PartNumber: p.PartNumber, URL: p.URL})
	}
	return UploadTicket{
		SessionID:  ticket.Session.SessionID.String(),
		UploadID:   ticket.Session.StorageUploadID,
		Status:     string(ticket.Session.Status),
		PartSize:   ticket.Session.PartSizeBytes,
		PartsTotal: ticket.Session.PartsTotal,
		Parts:      parts,
		ExpiresAt:  utcPtrIfSet(ticket.ExpiresAt),
	}
}

func utcPtrIfSet(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// NewCompletedUpload 渲染完成上传后的会话与视频。
func NewCompletedUpload(result *vo.CompletedUpload) CompletedUpload {
	if result == nil {
		return CompletedUpload{}
	}
	return CompletedUpload{
		Session: NewUploadSession(result.Session),
		Video:   NewVideo(result.Video),
	}
}
