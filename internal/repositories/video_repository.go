// Package repositories 提供数据访问层实现，负责与 PostgreSQL 交互。
// 所有方法接受可选的 txmanager.Session：为 nil 时直接使用连接池。
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
)

const videoColumns = `
	video_id, title, description, tags, original_filename, file_size_bytes, mime_type,
	storage_bucket, storage_key, external_url, uploaded_by, upload_session_id,
	workflow_status, workflow_updated_by, workflow_updated_at,
	course_id, module_id, lesson_id, created_at, updated_at`

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// VideoRepository 封装 coursevideo.videos 表的访问逻辑。
type VideoRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewVideoRepository 构造 VideoRepository。
func NewVideoRepository(db *pgxpool.Pool, logger log.Logger) *VideoRepository {
	return &VideoRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// ListVideosParams 描述列表查询条件，空指针表示不过滤。
type ListVideosParams struct {
	UploadedBy     *uuid.UUID
	WorkflowStatus *po.WorkflowStatus
	LessonID       *uuid.UUID
	Limit          int32
}

// Create 插入视频记录。upload_session_id 冲突时返回 ErrVideoAlreadyExists。
func (r *VideoRepository) Create(ctx context.Context, sess txmanager.Session, v *po.Video) (*po.Video, error) {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	row := conn(r.db, sess).QueryRow(ctx, `
		INSERT INTO coursevideo.videos (
			video_id, title, description, tags, original_filename, file_size_bytes, mime_type,
			storage_bucket, storage_key, external_url, uploaded_by, upload_session_id,
			workflow_status, course_id, module_id, lesson_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+videoColumns,
		v.VideoID, v.Title, v.Description, tags, v.OriginalFilename, v.FileSizeBytes, v.MimeType,
		v.StorageBucket, v.StorageKey, v.ExternalURL, v.UploadedBy, v.UploadSessionID,
		v.WorkflowStatus, v.CourseID, v.ModuleID, v.LessonID,
	)
	created, err := scanVideo(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrVideoAlreadyExists
		}
		r.log.WithContext(ctx).Errorf("create video failed: video_id=%s err=%v", v.VideoID, err)
		return nil, fmt.Errorf("insert video: %w", err)
	}
	r.log.WithContext(ctx).Infof("created video: video_id=%s uploaded_by=%s", created.VideoID, created.UploadedBy)
	return created, nil
}

// Get 按 video_id 查询视频。
func (r *VideoRepository) Get(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) (*po.Video, error) {
	row := conn(r.db, sess).QueryRow(ctx, `SELECT `+videoColumns+` FROM coursevideo.videos WHERE video_id = $1`, videoID)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		r.log.WithContext(ctx).Errorf("get video failed: video_id=%s err=%v", videoID, err)
		return nil, fmt.Errorf("get video: %w", err)
	}
	return v, nil
}

// List 按创建时间倒序列出视频。
func (r *VideoRepository) List(ctx context.Context, sess txmanager.Session, params ListVideosParams) ([]*po.Video, error) {
	var (
		where []string
		args  []any
	)
	if params.UploadedBy != nil {
		args = append(args, *params.UploadedBy)
		where = append(where, fmt.Sprintf("uploaded_by = $%d", len(args)))
	}
	if params.WorkflowStatus != nil {
		args = append(args, *params.WorkflowStatus)
		where = append(where, fmt.Sprintf("workflow_status = $%d", len(args)))
	}
	if params.LessonID != nil {
		args = append(args, *params.LessonID)
		where = append(where, fmt.Sprintf("lesson_id = $%d", len(args)))
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)

	query := `SELECT ` + videoColumns + ` FROM coursevideo.videos`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, video_id LIMIT $%d`, len(args))

	rows, err := conn(r.db, sess).Query(ctx, query, args...)
	if err != nil {
		r.log.WithContext(ctx).Errorf("list videos failed: err=%v", err)
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*po.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// UpdateWorkflowStatus 以 from 作为前置条件覆盖工作流状态并记录审计字段。
// 读取后状态已被并发修改时返回 ErrVideoStateConflict。
func (r *VideoRepository) UpdateWorkflowStatus(ctx context.Context, sess txmanager.Session, videoID uuid.UUID, from, to po.WorkflowStatus, actorID uuid.UUID, at time.Time) (*po.Video, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		UPDATE coursevideo.videos
		SET workflow_status = $3,
		    workflow_updated_by = $4,
		    workflow_updated_at = $5,
		    updated_at = now()
		WHERE video_id = $1 AND workflow_status = $2
		RETURNING `+videoColumns,
		videoID, from, to, actorID, at.UTC(),
	)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoStateConflict
		}
		r.log.WithContext(ctx).Errorf("update workflow status failed: video_id=%s to=%s err=%v", videoID, to, err)
		return nil, fmt.Errorf("update workflow status: %w", err)
	}
	return v, nil
}

// UpdateAssignment 覆盖课程关联；三者均为 nil 时表示解除关联。
func (r *VideoRepository) UpdateAssignment(ctx context.Context, sess txmanager.Session, videoID uuid.UUID, courseID, moduleID, lessonID *uuid.UUID) (*po.Video, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		UPDATE coursevideo.videos
		SET course_id = $2, module_id = $3, lesson_id = $4, updated_at = now()
		WHERE video_id = $1
		RETURNING `+videoColumns,
		videoID, courseID, moduleID, lessonID,
	)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		r.log.WithContext(ctx).Errorf("update assignment failed: video_id=%s err=%v", videoID, err)
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return v, nil
}

// Delete 删除视频并返回被删除的行。
func (r *VideoRepository) Delete(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) (*po.Video, error) {
	row := conn(r.db, sess).QueryRow(ctx, `DELETE FROM coursevideo.videos WHERE video_id = $1 RETURNING `+videoColumns, videoID)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		r.log.WithContext(ctx).Errorf("delete video failed: video_id=%s err=%v", videoID, err)
		return nil, fmt.Errorf("delete video: %w", err)
	}
	r.log.WithContext(ctx).Infof("deleted video: video_id=%s", videoID)
	return v, nil
}

func scanVideo(row pgx.Row) (*po.Video, error) {
	var v po.Video
	err := row.Scan(
		&v.VideoID, &v.Title, &v.Description, &v.Tags, &v.OriginalFilename, &v.FileSizeBytes, &v.MimeType,
		&v.StorageBucket, &v.StorageKey, &v.ExternalURL, &v.UploadedBy, &v.UploadSessionID,
		&v.WorkflowStatus, &v.WorkflowUpdatedBy, &v.WorkflowUpdatedAt,
		&v.CourseID, &v.ModuleID, &v.LessonID, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
