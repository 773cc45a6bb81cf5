// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 层使用。
// PO 对象映射数据库表结构，不直接暴露给传输层。
package po

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus 表示视频的编辑审核状态，与底层文件的上传状态相互独立。
type WorkflowStatus string

// 工作流状态常量定义
const (
	WorkflowDraft     WorkflowStatus = "draft"     // 草稿，上传完成后的初始状态
	WorkflowReview    WorkflowStatus = "review"    // 待审核
	WorkflowApproved  WorkflowStatus = "approved"  // 审核通过（仅管理员）
	WorkflowPublished WorkflowStatus = "published" // 已发布（仅管理员）
)

// WorkflowStatuses 按生命周期顺序列出全部工作流状态。
var WorkflowStatuses = []WorkflowStatus{WorkflowDraft, WorkflowReview, WorkflowApproved, WorkflowPublished}

// Valid 判断状态值是否合法。
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowDraft, WorkflowReview, WorkflowApproved, WorkflowPublished:
		return true
	default:
		return false
	}
}

// Video 表示 coursevideo.videos 表的数据库实体。
type Video struct {
	// ============================================
	// 基础字段
	// ============================================
	VideoID          uuid.UUID  `db:"video_id"`          // 主键（UUID v4）
	Title            string     `db:"title"`             // 视频标题
	Description      *string    `db:"description"`       // 视频描述（可选）
	Tags             []string   `db:"tags"`              // 标签（PostgreSQL text[]）
	OriginalFilename string     `db:"original_filename"` // 上传时的原始文件名
	FileSizeBytes    int64      `db:"file_size_bytes"`   // 文件大小（字节）
	MimeType         string     `db:"mime_type"`         // MIME 类型
	StorageBucket    string     `db:"storage_bucket"`    // 对象存储桶，外部托管视频为空
	StorageKey       string     `db:"storage_key"`       // 对象 Key
	ExternalURL      *string    `db:"external_url"`      // 外部托管视频地址
	UploadedBy       uuid.UUID  `db:"uploaded_by"`       // 上传者（所有者）
	UploadSessionID  *uuid.UUID `db:"upload_session_id"` // 来源上传会话（唯一）

	// ============================================
	// 工作流与审计
	// ============================================
	WorkflowStatus    WorkflowStatus `db:"workflow_status"`
	WorkflowUpdatedBy *uuid.UUID     `db:"workflow_updated_by"`
	WorkflowUpdatedAt *time.Time     `db:"workflow_updated_at"`

	// ============================================
	// 课程关联
	// ============================================
	CourseID *uuid.UUID `db:"course_id"`
	ModuleID *uuid.UUID `db:"module_id"`
	LessonID *uuid.UUID `db:"lesson_id"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// StoredInBucket 判断视频文件是否托管在平台自有的对象存储中。
func (v *Video) StoredInBucket() bool {
	return v != nil && v.StorageBucket != "" && v.StorageKey != ""
}

// WorkflowEvent 对应 coursevideo.video_workflow_events 的一条审计记录。
type WorkflowEvent struct {
	EventID    int64
	VideoID    uuid.UUID
	FromStatus WorkflowStatus
	ToStatus   WorkflowStatus
	ActorID    uuid.UUID
	ActorRole  string
	OccurredAt time.Time
}
