package services

import (
	"context"
	"errors"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// LessonChainVerifier 校验 lesson → module → course 归属链路以及讲师对课程的所有权。
// 由 HTTP 层在关联视频或携带关联提示发起上传之前调用。
type LessonChainVerifier struct {
	lessons LessonRepositoryContract
	log     *log.Helper
}

// NewLessonChainVerifier 构造 LessonChainVerifier。
func NewLessonChainVerifier(lessons LessonRepositoryContract, logger log.Logger) *LessonChainVerifier {
	return &LessonChainVerifier{lessons: lessons, log: log.NewHelper(logger)}
}

// VerifyLessonChain 校验链路。学生一律拒绝；讲师必须拥有该课程；管理员只校验链路。
func (v *LessonChainVerifier) VerifyLessonChain(ctx context.Context, actor Actor, courseID, moduleID, lessonID uuid.UUID) error {
	if !actor.valid() {
		return ErrUnauthenticated("caller identity is required")
	}
	if actor.Role == RoleStudent {
		return ErrForbidden("students may not attach videos to lessons")
	}
	if courseID == uuid.Nil || moduleID == uuid.Nil || lessonID == uuid.Nil {
		return ErrValidation("course_id, module_id and lesson_id are required")
	}

	chain, err := v.lessons.GetChain(ctx, nil, lessonID)
	if err != nil {
		if errors.Is(err, repositories.ErrLessonNotFound) {
			return errLessonNotFound()
		}
		return ErrInternal("load lesson chain", err)
	}
	if chain.ModuleID != moduleID {
		return ErrValidation("lesson %s does not belong to module %s", lessonID, moduleID)
	}
	if chain.CourseID != courseID {
		return ErrValidation("module %s does not belong to course %s", moduleID, courseID)
	}
	if !actor.IsAdmin() && chain.InstructorID != actor.ID {
		v.log.WithContext(ctx).Debugf("lesson chain ownership mismatch: course_id=%s actor=%s", courseID, actor.ID)
		return ErrForbidden("only the course instructor or an administrator may attach videos to this lesson")
	}
	return nil
}
