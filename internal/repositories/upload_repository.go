package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
)

const uploadColumns = `
	session_id, user_id, filename, file_size_bytes, mime_type, part_size_bytes,
	status, parts_total, parts_completed, bytes_uploaded,
	storage_bucket, storage_key, storage_upload_id,
	course_id, module_id, lesson_id, title, video_id, error_message,
	urls_expire_at, created_at, updated_at, finalized_at`

// UploadRepository 封装 coursevideo.upload_sessions 表的访问逻辑。
type UploadRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewUploadRepository 构造 UploadRepository。
func NewUploadRepository(db *pgxpool.Pool, logger log.Logger) *UploadRepository {
	return &UploadRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// Create 插入新的上传会话，status 由调用方给定（通常为 pending）。
func (r *UploadRepository) Create(ctx context.Context, sess txmanager.Session, s *po.UploadSession) (*po.UploadSession, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		INSERT INTO coursevideo.upload_sessions (
			session_id, user_id, filename, file_size_bytes, mime_type, part_size_bytes,
			status, parts_total, parts_completed, bytes_uploaded,
			storage_bucket, storage_key, storage_upload_id,
			course_id, module_id, lesson_id, title, urls_expire_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+uploadColumns,
		s.SessionID, s.UserID, s.Filename, s.FileSizeBytes, s.MimeType, s.PartSizeBytes,
		s.Status, s.PartsTotal,
		s.StorageBucket, s.StorageKey, s.StorageUploadID,
		s.CourseID, s.ModuleID, s.LessonID, s.Title, s.URLsExpireAt,
	)
	created, err := scanUpload(row)
	if err != nil {
		r.log.WithContext(ctx).Errorf("create upload session failed: session_id=%s user_id=%s err=%v", s.SessionID, s.UserID, err)
		return nil, fmt.Errorf("insert upload session: %w", err)
	}
	return created, nil
}

// Get 按 session_id 查询会话。
func (r *UploadRepository) Get(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID) (*po.UploadSession, error) {
	row := conn(r.db, sess).QueryRow(ctx, `SELECT `+uploadColumns+` FROM coursevideo.upload_sessions WHERE session_id = $1`, sessionID)
	found, err := scanUpload(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		r.log.WithContext(ctx).Errorf("get upload session failed: session_id=%s err=%v", sessionID, err)
		return nil, fmt.Errorf("get upload session: %w", err)
	}
	return found, nil
}

// UpdateProgress 覆盖进度计数（last-write-wins），并把 pending 推进为 uploading。
// 仅对 pending/uploading 会话生效，否则返回 ErrUploadStateConflict。
func (r *UploadRepository) UpdateProgress(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID, partsCompleted int32, bytesUploaded int64) (*po.UploadSession, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		UPDATE coursevideo.upload_sessions
		SET parts_completed = $2,
		    bytes_uploaded = $3,
		    status = 'uploading',
		    updated_at = now()
		WHERE session_id = $1 AND status IN ('pending', 'uploading')
		RETURNING `+uploadColumns,
		sessionID, partsCompleted, bytesUploaded,
	)
	return r.scanConditional(ctx, row, sessionID, "update progress")
}

// UpdateURLsExpiry 记录最近一批预签名地址的过期时间。
func (r *UploadRepository) UpdateURLsExpiry(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID, expiresAt time.Time) (*po.UploadSession, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		UPDATE coursevideo.upload_sessions
		SET urls_expire_at = $2, updated_at = now()
		WHERE session_id = $1 AND status IN ('pending', 'uploading')
		RETURNING `+uploadColumns,
		sessionID, expiresAt.UTC(),
	)
	return r.scanConditional(ctx, row, sessionID, "update urls expiry")
}

// ClaimForCompletion 以单行条件更新把 pending|uploading 推进到 processing。
// 并发的第二次调用拿不到行，返回 ErrUploadStateConflict。
func (r *UploadRepository) ClaimForCompletion(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID) (*po.UploadSession, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		UPDATE coursevideo.upload_sessions
		SET status = 'processing', updated_at = now()
		WHERE session_id = $1 AND status IN ('pending', 'uploading')
		RETURNING `+uploadColumns,
		sessionID,
	)
	return r.scanConditional(ctx, row, sessionID, "claim for completion")
}

// MarkCompleted 将 processing 会话置为 completed，并记录产出的视频。
func (r *UploadRepository) MarkCompleted(ctx context.Context, sess txmanager.Session, sessionID, videoID uuid.UUID, finalizedAt time.Time) (*po.UploadSession, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		UPDATE coursevideo.upload_sessions
		SET status = 'completed',
		    video_id = $2,
		    parts_completed = parts_total,
		    bytes_uploaded = file_size_bytes,
		    finalized_at = $3,
		    updated_at = now()
		WHERE session_id = $1 AND status = 'processing' AND finalized_at IS NULL
		RETURNING `+uploadColumns,
		sessionID, videoID, finalizedAt.UTC(),
	)
	return r.scanConditional(ctx, row, sessionID, "mark completed")
}

// MarkFailed 将 processing 会话置为 failed 并记录原因。
func (r *UploadRepository) MarkFailed(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID, message string, finalizedAt time.Time) (*po.UploadSession, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		UPDATE coursevideo.upload_sessions
		SET status = 'failed',
		    error_message = $2,
		    finalized_at = $3,
		    updated_at = now()
		WHERE session_id = $1 AND status = 'processing' AND finalized_at IS NULL
		RETURNING `+uploadColumns,
		sessionID, message, finalizedAt.UTC(),
	)
	return r.scanConditional(ctx, row, sessionID, "mark failed")
}

// MarkAborted 将 pending|uploading 会话置为 aborted。
func (r *UploadRepository) MarkAborted(ctx context.Context, sess txmanager.Session, sessionID uuid.UUID, finalizedAt time.Time) (*po.UploadSession, error) {
	row := conn(r.db, sess).QueryRow(ctx, `
		UPDATE coursevideo.upload_sessions
		SET status = 'aborted',
		    finalized_at = $2,
		    updated_at = now()
		WHERE session_id = $1 AND status IN ('pending', 'uploading')
		RETURNING `+uploadColumns,
		sessionID, finalizedAt.UTC(),
	)
	return r.scanConditional(ctx, row, sessionID, "mark aborted")
}

func (r *UploadRepository) scanConditional(ctx context.Context, row pgx.Row, sessionID uuid.UUID, op string) (*po.UploadSession, error) {
	updated, err := scanUpload(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUploadStateConflict
		}
		r.log.WithContext(ctx).Errorf("%s failed: session_id=%s err=%v", op, sessionID, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func scanUpload(row pgx.Row) (*po.UploadSession, error) {
	var s po.UploadSession
	err := row.Scan(
		&s.SessionID, &s.UserID, &s.Filename, &s.FileSizeBytes, &s.MimeType, &s.PartSizeBytes,
		&s.Status, &s.PartsTotal, &s.PartsCompleted, &s.BytesUploaded,
		&s.StorageBucket, &s.StorageKey, &s.StorageUploadID,
		&s.CourseID, &s.ModuleID, &s.LessonID, &s.Title, &s.VideoID, &s.ErrorMessage,
		&s.URLsExpireAt, &s.CreatedAt, &s.UpdatedAt, &s.FinalizedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
