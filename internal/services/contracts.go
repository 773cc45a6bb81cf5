package services

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/events"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/uuid"
)

// MultipartStore 抽象对象存储的分片上传能力，由 objectstore.S3Store 实现。
type MultipartStore interface {
	Bucket() string
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)
	PresignUploadParts(ctx context.Context, key, uploadID string, partNumbers []int32, ttl time.Duration) ([]vo.PresignedPart, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []vo.CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	ListParts(ctx context.Context, key, uploadID string) ([]vo.StoredPart, error)
	DeleteObject(ctx context.Context, key string) error
	PresignGetObject(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// PlaybackSigner 生成 GCS V4 签名播放地址。
type PlaybackSigner interface {
	SignedGetURL(ctx context.Context, bucket, objectName string, ttl time.Duration) (string, time.Time, error)
}

// EventPublisher 在事务提交后发布领域事件。
type EventPublisher interface {
	Publish(ctx context.Context, evt *events.DomainEvent) error
}

// UploadRepositoryContract 抽象上传会话持久化操作，便于测试。
type UploadRepositoryContract interface {
	Create(ctx context.Context, sess txmanager.Session, s *po.UploadSession) (*po.UploadSession, error)
	Get(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID) (*po.UploadSession, error)
	UpdateProgress(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID, partsCompleted int32, bytesUploaded int64) (*po.UploadSession, error)
	UpdateURLsExpiry(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID, expiresAt time.Time) (*po.UploadSession, error)
	ClaimForCompletion(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID) (*po.UploadSession, error)
	MarkCompleted(ctx context.Context, sess txmanager.Session, sessionID, videoID uuid.UUID, finalizedAt time.Time) (*po.UploadSession, error)
	MarkFailed(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID, message string, finalizedAt time.Time) (*po.UploadSession, error)
	MarkAborted(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID, finalizedAt time.Time) (*po.UploadSession, error)
}

// VideoRepositoryContract 抽象视频目录的持久化操作。
type VideoRepositoryContract interface {
	Create(ctx context.Context, sess txmanager.Session, v *po.Video) (*po.Video, error)
	Get(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) (*po.Video, error)
	List(ctx context.Context, sess txmanager.Session, params repositories.ListVideosParams) ([]*po.Video, error)
	UpdateWorkflowStatus(ctx context.Context, sess txmanager.Session, videoID uuid.UUID, from, to po.WorkflowStatus, actorID uuid.UUID, at time.Time) (*po.Video, error)
	UpdateAssignment(ctx context.Context, sess txmanager.Session, videoID uuid.UUID, courseID, moduleID, lessonID *uuid.UUID) (*po.Video, error)
	Delete(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) (*po.Video, error)
}

// WorkflowEventRepositoryContract 抽象工作流审计日志。
type WorkflowEventRepositoryContract interface {
	Append(ctx context.Context, sess txmanager.Session, evt *po.WorkflowEvent) (*po.WorkflowEvent, error)
	ListByVideo(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) ([]*po.WorkflowEvent, error)
}

// LessonRepositoryContract 读取课程归属链路。
type LessonRepositoryContract interface {
	GetChain(ctx context.Context, sess txmanager.Session, lessonID uuid.UUID) (*po.LessonChain, error)
}
