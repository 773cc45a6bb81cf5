package repositories

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
)

// WorkflowEventRepository 维护 coursevideo.video_workflow_events 审计轨迹（只追加）。
type WorkflowEventRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewWorkflowEventRepository 构造 WorkflowEventRepository。
func NewWorkflowEventRepository(db *pgxpool.Pool, logger log.Logger) *WorkflowEventRepository {
	return &WorkflowEventRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// Append 追加一条迁移记录，回填 event_id。
func (r *WorkflowEventRepository) Append(ctx context.Context, sess txmanager.Session, evt *po.WorkflowEvent) (*po.WorkflowEvent, error) {
	err := conn(r.db, sess).QueryRow(ctx, `
		INSERT INTO coursevideo.video_workflow_events (video_id, from_status, to_status, actor_id, actor_role, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING event_id`,
		evt.VideoID, evt.FromStatus, evt.ToStatus, evt.ActorID, evt.ActorRole, evt.OccurredAt.UTC(),
	).Scan(&evt.EventID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("append workflow event failed: video_id=%s err=%v", evt.VideoID, err)
		return nil, fmt.Errorf("append workflow event: %w", err)
	}
	return evt, nil
}

// ListByVideo 按发生顺序返回视频的迁移记录。
func (r *WorkflowEventRepository) ListByVideo(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) ([]*po.WorkflowEvent, error) {
	rows, err := conn(r.db, sess).Query(ctx, `
		SELECT event_id, video_id, from_status, to_status, actor_id, actor_role, occurred_at
		FROM coursevideo.video_workflow_events
		WHERE video_id = $1
		ORDER BY event_id`, videoID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("list workflow events failed: video_id=%s err=%v", videoID, err)
		return nil, fmt.Errorf("list workflow events: %w", err)
	}
	defer rows.Close()

	var out []*po.WorkflowEvent
	for rows.Next() {
		var e po.WorkflowEvent
		if err := rows.Scan(&e.EventID, &e.VideoID, &e.FromStatus, &e.ToStatus, &e.ActorID, &e.ActorRole, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan workflow event: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow events: %w", err)
	}
	return out, nil
}
