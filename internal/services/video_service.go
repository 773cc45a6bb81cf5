package services

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/events"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// PlaybackPolicy 控制播放地址的签发方式。
type PlaybackPolicy struct {
	TTL time.Duration
	// UseGCSSigner 为 true 且注入了 PlaybackSigner 时使用 GCS V4 签名，否则回退到 S3 预签名 GET。
	UseGCSSigner bool
}

// AssignmentTarget 是关联课时时附带的模块与课程。
type AssignmentTarget struct {
	CourseID uuid.UUID
	ModuleID uuid.UUID
}

// RegisterExternalVideoInput 描述管理员登记的外部托管视频。
type RegisterExternalVideoInput struct {
	Title            string
	ExternalURL      string
	MimeType         string
	FileSizeBytes    int64
	OriginalFilename string
	Description      *string
	Tags             []string
}

// VideoService 实现视频目录的读取、课时关联与管理操作。
type VideoService struct {
	videos    VideoRepositoryContract
	store     MultipartStore
	signer    PlaybackSigner
	publisher EventPublisher
	playback  PlaybackPolicy
	log       *log.Helper
	now       func() time.Time
}

// NewVideoService 构造 VideoService。store 与 signer 均可为 nil，此时不签发播放地址。
func NewVideoService(videos VideoRepositoryContract, store MultipartStore, signer PlaybackSigner, publisher EventPublisher, playback PlaybackPolicy, logger log.Logger) *VideoService {
	return &VideoService{
		videos:    videos,
		store:     store,
		signer:    signer,
		publisher: publisher,
		playback:  playback,
		log:       log.NewHelper(logger),
		now:       time.Now,
	}
}

// AssignVideoToLesson 记录视频所属的 lesson/module/course，不改变工作流状态。
// 调用方需先通过 LessonChainVerifier 校验链路与课程所有权。
func (s *VideoService) AssignVideoToLesson(ctx context.Context, actor Actor, videoID, lessonID uuid.UUID, target AssignmentTarget) (*po.Video, error) {
	if lessonID == uuid.Nil || target.ModuleID == uuid.Nil || target.CourseID == uuid.Nil {
		return nil, ErrValidation("course_id, module_id and lesson_id are required")
	}
	return s.updateAssignment(ctx, actor, videoID, &target.CourseID, &target.ModuleID, &lessonID)
}

// RemoveVideoFromLesson 清除课时关联，不删除视频也不改变工作流状态。
func (s *VideoService) RemoveVideoFromLesson(ctx context.Context, actor Actor, videoID uuid.UUID) (*po.Video, error) {
	return s.updateAssignment(ctx, actor, videoID, nil, nil, nil)
}

func (s *VideoService) updateAssignment(ctx context.Context, actor Actor, videoID uuid.UUID, courseID, moduleID, lessonID *uuid.UUID) (*po.Video, error) {
	video, err := s.loadVideo(ctx, actor, videoID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(video.UploadedBy) {
		return nil, ErrForbidden("only the uploader or an administrator may change lesson assignment")
	}
	updated, err := s.videos.UpdateAssignment(ctx, nil, videoID, courseID, moduleID, lessonID)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return nil, errVideoNotFound()
		}
		return nil, ErrInternal("update lesson assignment", err)
	}
	publishAfterCommit(ctx, s.publisher, s.log, updated.UpdatedAt, func(eventID uuid.UUID, at time.Time) (*events.DomainEvent, error) {
		return events.NewVideoAssignmentEvent(updated, eventID, at)
	})
	return updated, nil
}

// GetVideo 读取视频详情。学生只能读取已发布视频；所有者与管理员可读取任意状态。
func (s *VideoService) GetVideo(ctx context.Context, actor Actor, videoID uuid.UUID) (*vo.VideoDetail, error) {
	video, err := s.loadVideo(ctx, actor, videoID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(video.UploadedBy) && video.WorkflowStatus != po.WorkflowPublished {
		return nil, ErrForbidden("video is not published")
	}

	detail := &vo.VideoDetail{Video: video, AllowedTransitions: s.transitionsFor(actor, video)}
	switch {
	case video.StoredInBucket():
		playbackURL, expiresAt, ok := s.signPlayback(ctx, video)
		if ok {
			detail.PlaybackURL = &playbackURL
			detail.PlaybackExpiresAt = &expiresAt
		}
	case video.ExternalURL != nil:
		external := *video.ExternalURL
		detail.PlaybackURL = &external
	}
	return detail, nil
}

// transitionsFor 返回调用方当前可触发的迁移目标，非所有者为空。
func (s *VideoService) transitionsFor(actor Actor, video *po.Video) []po.WorkflowStatus {
	if !actor.CanManage(video.UploadedBy) {
		return []po.WorkflowStatus{}
	}
	targets := AllowedTransitions(video.WorkflowStatus)
	if actor.IsAdmin() {
		return targets
	}
	out := targets[:0]
	for _, t := range targets {
		if !RequiresAdmin(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *VideoService) signPlayback(ctx context.Context, video *po.Video) (string, time.Time, bool) {
	ttl := s.playback.TTL
	if s.playback.UseGCSSigner && s.signer != nil {
		signed, expiresAt, err := s.signer.SignedGetURL(ctx, video.StorageBucket, video.StorageKey, ttl)
		if err != nil {
			s.log.WithContext(ctx).Warnf("sign gcs playback url failed: video_id=%s err=%v", video.VideoID, err)
			return "", time.Time{}, false
		}
		return signed, expiresAt, true
	}
	if s.store == nil || s.store.Bucket() != video.StorageBucket {
		return "", time.Time{}, false
	}
	signed, err := s.store.PresignGetObject(ctx, video.StorageKey, ttl)
	if err != nil {
		s.log.WithContext(ctx).Warnf("presign playback url failed: video_id=%s err=%v", video.VideoID, err)
		return "", time.Time{}, false
	}
	return signed, s.now().Add(ttl).UTC(), true
}

// ListVideos 列出视频。管理员可见全部；其他角色只能看到自己的上传，或按 published 状态浏览。
func (s *VideoService) ListVideos(ctx context.Context, actor Actor, filter vo.VideoFilter) ([]*po.Video, error) {
	if !actor.valid() {
		return nil, ErrUnauthenticated("caller identity is required")
	}
	if filter.WorkflowStatus != nil && !filter.WorkflowStatus.Valid() {
		return nil, ErrValidation("unknown workflow status %q", *filter.WorkflowStatus)
	}
	if filter.Limit < 0 {
		return nil, ErrValidation("limit must not be negative")
	}

	params := repositories.ListVideosParams{
		WorkflowStatus: filter.WorkflowStatus,
		LessonID:       filter.LessonID,
		UploadedBy:     filter.UploadedBy,
		Limit:          filter.Limit,
	}
	browsingPublished := filter.WorkflowStatus != nil && *filter.WorkflowStatus == po.WorkflowPublished
	if !actor.IsAdmin() && !browsingPublished {
		if filter.UploadedBy != nil && *filter.UploadedBy != actor.ID {
			return nil, ErrForbidden("only administrators may list other users' unpublished videos")
		}
		self := actor.ID
		params.UploadedBy = &self
	}

	items, err := s.videos.List(ctx, nil, params)
	if err != nil {
		return nil, ErrInternal("list videos", err)
	}
	return items, nil
}

// RegisterExternalVideo 由管理员登记外部托管的视频，初始状态为 draft。
func (s *VideoService) RegisterExternalVideo(ctx context.Context, actor Actor, input RegisterExternalVideoInput) (*po.Video, error) {
	if !actor.valid() {
		return nil, ErrUnauthenticated("caller identity is required")
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden("only administrators may register external videos")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrValidation("title is required")
	}
	rawURL := strings.TrimSpace(input.ExternalURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, ErrValidation("external_url must be an absolute http(s) URL")
	}
	mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
	if mimeType == "" {
		return nil, ErrValidation("mime_type is required")
	}
	if input.FileSizeBytes < 0 {
		return nil, ErrValidation("file_size_bytes must not be negative")
	}
	filename := strings.TrimSpace(input.OriginalFilename)
	if filename == "" {
		if base := path.Base(parsed.Path); base != "/" && base != "." {
			filename = base
		} else {
			filename = title
		}
	}
	var description *string
	if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
		d := strings.TrimSpace(*input.Description)
		description = &d
	}

	created, err := s.videos.Create(ctx, nil, &po.Video{
		VideoID:          uuid.New(),
		Title:            title,
		Description:      description,
		Tags:             normalizeTags(input.Tags),
		OriginalFilename: filename,
		FileSizeBytes:    input.FileSizeBytes,
		MimeType:         mimeType,
		ExternalURL:      &rawURL,
		UploadedBy:       actor.ID,
		WorkflowStatus:   po.WorkflowDraft,
	})
	if err != nil {
		return nil, ErrInternal("register external video", err)
	}
	s.log.WithContext(ctx).Infof("external video registered: video_id=%s actor=%s", created.VideoID, actor.ID)
	publishAfterCommit(ctx, s.publisher, s.log, created.CreatedAt, func(eventID uuid.UUID, at time.Time) (*events.DomainEvent, error) {
		return events.NewVideoCreatedEvent(created, eventID, at)
	})
	return created, nil
}

// DeleteVideo 由管理员不可逆地删除视频。存储对象尽力删除，失败仅记录日志。
func (s *VideoService) DeleteVideo(ctx context.Context, actor Actor, videoID uuid.UUID) error {
	if !actor.valid() {
		return ErrUnauthenticated("caller identity is required")
	}
	if !actor.IsAdmin() {
		return ErrForbidden("only administrators may delete videos")
	}
	deleted, err := s.videos.Delete(ctx, nil, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return errVideoNotFound()
		}
		return ErrInternal("delete video", err)
	}

	if deleted.StoredInBucket() && s.store != nil && s.store.Bucket() == deleted.StorageBucket {
		if err := s.store.DeleteObject(ctx, deleted.StorageKey); err != nil {
			s.log.WithContext(ctx).Warnf("delete video object failed: video_id=%s key=%s err=%v", videoID, deleted.StorageKey, err)
		}
	}
	s.log.WithContext(ctx).Infof("video deleted: video_id=%s actor=%s", videoID, actor.ID)
	publishAfterCommit(ctx, s.publisher, s.log, s.now().UTC(), func(eventID uuid.UUID, at time.Time) (*events.DomainEvent, error) {
		return events.NewVideoDeletedEvent(deleted, actor.ID, eventID, at)
	})
	return nil
}

func (s *VideoService) loadVideo(ctx context.Context, actor Actor, videoID uuid.UUID) (*po.Video, error) {
	if !actor.valid() {
		return nil, ErrUnauthenticated("caller identity is required")
	}
	video, err := s.videos.Get(ctx, nil, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return nil, errVideoNotFound()
		}
		return nil, ErrInternal("load video", err)
	}
	return video, nil
}
