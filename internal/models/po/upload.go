package po

import (
	"time"

	"github.com/google/uuid"
)

// UploadStatus 表示上传会话的当前状态。
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "pending"
	UploadStatusUploading  UploadStatus = "uploading"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusAborted    UploadStatus = "aborted"
	UploadStatusFailed     UploadStatus = "failed"
)

// IsTerminal 判断状态是否为终态（完成、取消或失败后不可再变更）。
func (s UploadStatus) IsTerminal() bool {
	switch s {
	case UploadStatusCompleted, UploadStatusAborted, UploadStatusFailed:
		return true
	default:
		return false
	}
}

// IsOpen 判断会话是否仍接受分片上传（pending/uploading）。
func (s UploadStatus) IsOpen() bool {
	return s == UploadStatusPending || s == UploadStatusUploading
}

// UploadSession 描述 coursevideo.upload_sessions 表中的一条分片上传会话记录。
type UploadSession struct {
	SessionID       uuid.UUID
	UserID          uuid.UUID
	Filename        string
	FileSizeBytes   int64
	MimeType        string
	PartSizeBytes   int64
	Status          UploadStatus
	PartsTotal      int32
	PartsCompleted  int32
	BytesUploaded   int64
	StorageBucket   string
	StorageKey      string
	StorageUploadID string
	CourseID        *uuid.UUID
	ModuleID        *uuid.UUID
	LessonID        *uuid.UUID
	Title           string
	VideoID         *uuid.UUID
	ErrorMessage    *string
	URLsExpireAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FinalizedAt     *time.Time
}

// OwnedBy 判断会话是否属于指定用户。
func (s *UploadSession) OwnedBy(userID uuid.UUID) bool {
	return s != nil && s.UserID == userID
}
