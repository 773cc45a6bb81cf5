package services

import (
	"context"
	"errors"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/events"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// WorkflowService 驱动视频编辑工作流状态机，并记录审计轨迹。
type WorkflowService struct {
	videos    VideoRepositoryContract
	history   WorkflowEventRepositoryContract
	txManager txmanager.Manager
	publisher EventPublisher
	log       *log.Helper
	now       func() time.Time
}

// NewWorkflowService 构造 WorkflowService。
func NewWorkflowService(videos VideoRepositoryContract, history WorkflowEventRepositoryContract, tx txmanager.Manager, publisher EventPublisher, logger log.Logger) *WorkflowService {
	return &WorkflowService{
		videos:    videos,
		history:   history,
		txManager: tx,
		publisher: publisher,
		log:       log.NewHelper(logger),
		now:       time.Now,
	}
}

// UpdateWorkflowStatus 将视频迁移到 target 状态。
//
// 检查顺序固定：状态合法 → 视频存在 → 所有者或管理员 → approved/published 仅管理员 → 迁移表。
// 角色检查先于迁移表检查，因此 instructor 发起 review → published 必然得到 Forbidden。
func (s *WorkflowService) UpdateWorkflowStatus(ctx context.Context, actor Actor, videoID uuid.UUID, target po.WorkflowStatus) (*po.Video, error) {
	if !target.Valid() {
		return nil, ErrValidation("unknown workflow status %q", target)
	}
	if !actor.valid() {
		return nil, ErrUnauthenticated("caller identity is required")
	}

	var (
		updated *po.Video
		from    po.WorkflowStatus
	)
	occurredAt := s.now().UTC()
	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		video, err := s.videos.Get(txCtx, sess, videoID)
		if err != nil {
			if errors.Is(err, repositories.ErrVideoNotFound) {
				return errVideoNotFound()
			}
			return err
		}
		if !actor.CanManage(video.UploadedBy) {
			return ErrForbidden("only the uploader or an administrator may change this video")
		}
		if RequiresAdmin(target) && !actor.IsAdmin() {
			return ErrForbidden("only administrators may move a video to " + string(target))
		}
		if !CanTransition(video.WorkflowStatus, target) {
			return ErrInvalidTransition(video.WorkflowStatus, target)
		}

		from = video.WorkflowStatus
		next, err := s.videos.UpdateWorkflowStatus(txCtx, sess, videoID, from, target, actor.ID, occurredAt)
		if err != nil {
			if errors.Is(err, repositories.ErrVideoStateConflict) {
				return errWorkflowConflict()
			}
			return err
		}
		if _, err := s.history.Append(txCtx, sess, &po.WorkflowEvent{
			VideoID:    videoID,
			FromStatus: from,
			ToStatus:   target,
			ActorID:    actor.ID,
			ActorRole:  string(actor.Role),
			OccurredAt: occurredAt,
		}); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		var se *kerrors.Error
		if errors.As(err, &se) {
			return nil, se
		}
		s.log.WithContext(ctx).Errorf("update workflow status failed: video_id=%s target=%s err=%v", videoID, target, err)
		return nil, ErrInternal("update workflow status", err)
	}

	s.log.WithContext(ctx).Infof("workflow changed: video_id=%s %s -> %s actor=%s", videoID, from, target, actor.ID)
	publishAfterCommit(ctx, s.publisher, s.log, occurredAt, func(eventID uuid.UUID, at time.Time) (*events.DomainEvent, error) {
		return events.NewVideoWorkflowChangedEvent(updated, from, actor.ID, string(actor.Role), eventID, at)
	})
	return updated, nil
}

// ListWorkflowHistory 返回视频的工作流审计记录（按时间升序），仅所有者或管理员可读。
func (s *WorkflowService) ListWorkflowHistory(ctx context.Context, actor Actor, videoID uuid.UUID) ([]*po.WorkflowEvent, error) {
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
	if !actor.CanManage(video.UploadedBy) {
		return nil, ErrForbidden("only the uploader or an administrator may read the workflow history")
	}
	items, err := s.history.ListByVideo(ctx, nil, videoID)
	if err != nil {
		return nil, ErrInternal("list workflow history", err)
	}
	return items, nil
}
