package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
)

// LessonRepository 只读访问课程服务维护的 courses / course_modules / lessons。
type LessonRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewLessonRepository 构造 LessonRepository。
func NewLessonRepository(db *pgxpool.Pool, logger log.Logger) *LessonRepository {
	return &LessonRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// GetChain 解析 lesson 所属的 module、course 及讲师。
func (r *LessonRepository) GetChain(ctx context.Context, sess txmanager.Session, lessonID uuid.UUID) (*po.LessonChain, error) {
	var chain po.LessonChain
	err := conn(r.db, sess).QueryRow(ctx, `
		SELECT l.lesson_id, m.module_id, c.course_id, c.instructor_id
		FROM coursevideo.lessons l
		JOIN coursevideo.course_modules m ON m.module_id = l.module_id
		JOIN coursevideo.courses c ON c.course_id = m.course_id
		WHERE l.lesson_id = $1`, lessonID,
	).Scan(&chain.LessonID, &chain.ModuleID, &chain.CourseID, &chain.InstructorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLessonNotFound
		}
		r.log.WithContext(ctx).Errorf("get lesson chain failed: lesson_id=%s err=%v", lessonID, err)
		return nil, fmt.Errorf("get lesson chain: %w", err)
	}
	return &chain, nil
}
