// Package vo 定义视图对象（View Objects），用于向上层传递业务数据。
// VO 对象由 Service 层返回，经 Views 层转换为 API 响应，隔离内部数据结构。
package vo

import (
	"time"

	"github.com/google/uuid"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
)

// VideoDetail 封装单个视频的读取视图，附带限时播放地址。
type VideoDetail struct {
	Video *po.Video

	// PlaybackURL 为签名 GET 地址或外部托管地址，无可用地址时为空。
	PlaybackURL       *string
	PlaybackExpiresAt *time.Time

	// AllowedTransitions 列出当前工作流状态可迁移的目标。
	AllowedTransitions []po.WorkflowStatus
}

// VideoFilter 描述 ListVideos 的过滤条件。
type VideoFilter struct {
	WorkflowStatus *po.WorkflowStatus
	LessonID       *uuid.UUID
	UploadedBy     *uuid.UUID
	Limit          int32
}
