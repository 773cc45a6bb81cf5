package repositories

import (
	"context"
	"errors"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUploadNotFound 表示上传会话不存在。
	ErrUploadNotFound = errors.New("upload session not found")
	// ErrUploadStateConflict 表示条件更新未命中（会话状态已被其他请求改变）。
	ErrUploadStateConflict = errors.New("upload session state conflict")
	// ErrVideoNotFound 表示视频不存在。
	ErrVideoNotFound = errors.New("video not found")
	// ErrVideoStateConflict 表示工作流状态在读取后已被并发修改。
	ErrVideoStateConflict = errors.New("video workflow state conflict")
	// ErrVideoAlreadyExists 表示同一上传会话已产出过视频（upload_session_id 唯一约束）。
	ErrVideoAlreadyExists = errors.New("video already exists for upload session")
	// ErrLessonNotFound 表示课时不存在。
	ErrLessonNotFound = errors.New("lesson not found")
)

const uniqueViolation = "23505"

// dbtx 抽象连接池与事务共同的查询能力。
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn 在事务内使用 sess.Tx()，否则回退到连接池。
func conn(db *pgxpool.Pool, sess txmanager.Session) dbtx {
	if sess != nil {
		if tx := sess.Tx(); tx != nil {
			return tx
		}
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
