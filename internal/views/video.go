package views

import (
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"

	"github.com/google/uuid"
)

// Video 是视频目录条目的 JSON 视图。
type Video struct {
	VideoID           string     `json:"video_id"`
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	Tags              []string   `json:"tags"`
	OriginalFilename  string     `json:"original_filename"`
	FileSizeBytes     int64      `json:"file_size_bytes"`
	MimeType          string     `json:"mime_type"`
	StorageBucket     string     `json:"storage_bucket,omitempty"`
	StorageKey        string     `json:"storage_key,omitempty"`
	ExternalURL       *string    `json:"external_url,omitempty"`
	UploadedBy        string     `json:"uploaded_by"`
	UploadSessionID   *string    `json:"upload_session_id,omitempty"`
	WorkflowStatus    string     `json:"workflow_status"`
	WorkflowUpdatedBy *string    `json:"workflow_updated_by,omitempty"`
	WorkflowUpdatedAt *time.Time `json:"workflow_updated_at,omitempty"`
	CourseID          *string    `json:"course_id,omitempty"`
	ModuleID          *string    `json:"module_id,omitempty"`
	LessonID          *string    `json:"lesson_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// VideoDetail 在 Video 基础上附带播放地址与可迁移状态。
type VideoDetail struct {
	Video
	PlaybackURL        *string    `json:"playback_url,omitempty"`
	PlaybackExpiresAt  *time.Time `json:"playback_expires_at,omitempty"`
	AllowedTransitions []string   `json:"allowed_transitions"`
}

// VideoList 是 ListVideos 的响应。
type VideoList struct {
	Videos []Video `json:"videos"`
}

// WorkflowEvent 是一条工作流审计记录。
type WorkflowEvent struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WorkflowHistory 是 ListWorkflowHistory 的响应。
type WorkflowHistory struct {
	VideoID string          `json:"video_id"`
	Events  []WorkflowEvent `json:"events"`
}

// NewVideo 渲染单个视频。
func NewVideo(video *po.Video) Video {
	if video == nil {
		return Video{Tags: []string{}}
	}
	tags := video.Tags
	if tags == nil {
		tags = []string{}
	}
	return Video{
		VideoID:           video.VideoID.String(),
		Title:             video.Title,
		Description:       video.Description,
		Tags:              tags,
		OriginalFilename:  video.OriginalFilename,
		FileSizeBytes:     video.FileSizeBytes,
		MimeType:          video.MimeType,
		StorageBucket:     video.StorageBucket,
		StorageKey:        video.StorageKey,
		ExternalURL:       video.ExternalURL,
		UploadedBy:        video.UploadedBy.String(),
		UploadSessionID:   uuidString(video.UploadSessionID),
		WorkflowStatus:    string(video.WorkflowStatus),
		WorkflowUpdatedBy: uuidString(video.WorkflowUpdatedBy),
		WorkflowUpdatedAt: utcPtr(video.WorkflowUpdatedAt),
		CourseID:          uuidString(video.CourseID),
		ModuleID:          uuidString(video.ModuleID),
		LessonID:          uuidString(video.LessonID),
		CreatedAt:         video.CreatedAt.UTC(),
		UpdatedAt:         video.UpdatedAt.UTC(),
	}
}

// NewVideoDetail 渲染视频详情。
func NewVideoDetail(detail *vo.VideoDetail) VideoDetail {
	if detail == nil {
		return VideoDetail{Video: NewVideo(nil), AllowedTransitions: []string{}}
	}
	transitions := make([]string, 0, len(detail.AllowedTransitions))
	for _, s := range detail.AllowedTransitions {
		transitions = append(transitions, string(s))
	}
	return VideoDetail{
		Video:              NewVideo(detail.Video),
		PlaybackURL:        detail.PlaybackURL,
		PlaybackExpiresAt:  utcPtr(detail.PlaybackExpiresAt),
		AllowedTransitions: transitions,
	}
}

// NewVideoList 渲染视频列表，空结果输出空数组。
func NewVideoList(videos []*po.Video) VideoList {
	out := make([]Video, 0, len(videos))
	for _, v := range videos {
		out = append(out, NewVideo(v))
	}
	return VideoList{Videos: out}
}

// NewWorkflowHistory 渲染工作流审计记录。
func NewWorkflowHistory(videoID uuid.UUID, items []*po.WorkflowEvent) WorkflowHistory {
	out := make([]WorkflowEvent, 0, len(items))
	for _, e := range items {
		if e == nil {
			continue
		}
		out = append(out, WorkflowEvent{
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			ActorID:    e.ActorID.String(),
			ActorRole:  e.ActorRole,
			OccurredAt: e.OccurredAt.UTC(),
		})
	}
	return WorkflowHistory{VideoID: videoID.String(), Events: out}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
