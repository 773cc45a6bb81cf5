package services

import (
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 错误原因码，随 kratos Error 一起透传到 HTTP 响应体的 reason 字段。
const (
	ReasonValidationFailed      = "VALIDATION_FAILED"
	ReasonUploadNotCompletable  = "UPLOAD_NOT_COMPLETABLE"
	ReasonUploadNotOpen         = "UPLOAD_NOT_OPEN"
	ReasonInvalidTransition     = "INVALID_TRANSITION"
	ReasonUnauthenticated       = "UNAUTHENTICATED"
	ReasonForbidden             = "FORBIDDEN"
	ReasonUploadNotFound        = "UPLOAD_NOT_FOUND"
	ReasonVideoNotFound         = "VIDEO_NOT_FOUND"
	ReasonLessonNotFound        = "LESSON_NOT_FOUND"
	ReasonWorkflowConflict      = "WORKFLOW_CONFLICT"
	ReasonStorageFailed         = "STORAGE_FAILED"
	ReasonStorageNotConfigured  = "STORAGE_NOT_CONFIGURED"
	ReasonInternal              = "INTERNAL"
	MetadataKeyAllowedTargets   = "allowed"
	MetadataKeyTransitionFrom   = "from"
	MetadataKeyTransitionTarget = "to"
)

// ErrValidation 构造 400 输入校验错误。
func ErrValidation(format string, args ...any) *kerrors.Error {
	return kerrors.BadRequest(ReasonValidationFailed, fmt.Sprintf(format, args...))
}

// ErrForbidden 构造 403 错误，消息只说明所需角色或归属，不泄露更多细节。
func ErrForbidden(msg string) *kerrors.Error {
	return kerrors.Forbidden(ReasonForbidden, msg)
}

// ErrUnauthenticated 构造 401 错误。
func ErrUnauthenticated(msg string) *kerrors.Error {
	return kerrors.Unauthorized(ReasonUnauthenticated, msg)
}

// ErrStorageNotConfigured 对应对象存储缺失（503）。
func ErrStorageNotConfigured() *kerrors.Error {
	return kerrors.ServiceUnavailable(ReasonStorageNotConfigured, "object storage is not configured")
}

// ErrStorage 包装对象存储拒绝的操作（500）。
func ErrStorage(op string, cause error) *kerrors.Error {
	return kerrors.InternalServer(ReasonStorageFailed, fmt.Sprintf("object storage rejected %s", op)).WithCause(cause)
}

// ErrInternal 包装不可预期的错误（500）。
func ErrInternal(op string, cause error) *kerrors.Error {
	return kerrors.InternalServer(ReasonInternal, op+" failed").WithCause(cause)
}

// ErrInvalidTransition 返回包含合法目标列表的 400 错误。
func ErrInvalidTransition(from, to po.WorkflowStatus) *kerrors.Error {
	allowed := AllowedTransitions(from)
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	msg := fmt.Sprintf("workflow transition %s -> %s is not allowed", from, to)
	if len(names) > 0 {
		msg += "; allowed targets: " + strings.Join(names, ", ")
	}
	return kerrors.BadRequest(ReasonInvalidTransition, msg).WithMetadata(map[string]string{
		MetadataKeyTransitionFrom:   string(from),
		MetadataKeyTransitionTarget: string(to),
		MetadataKeyAllowedTargets:   strings.Join(names, ","),
	})
}

func errUploadNotFound() *kerrors.Error {
	return kerrors.NotFound(ReasonUploadNotFound, "upload session not found")
}

func errVideoNotFound() *kerrors.Error {
	return kerrors.NotFound(ReasonVideoNotFound, "video not found")
}

func errLessonNotFound() *kerrors.Error {
	return kerrors.NotFound(ReasonLessonNotFound, "lesson not found")
}

func errNotCompletable(status po.UploadStatus) *kerrors.Error {
	return kerrors.BadRequest(ReasonUploadNotCompletable, fmt.Sprintf("upload session is not completable (status %s)", status))
}

func errNotOpen(status po.UploadStatus) *kerrors.Error {
	return kerrors.BadRequest(ReasonUploadNotOpen, fmt.Sprintf("upload session is no longer open (status %s)", status))
}

func errWorkflowConflict() *kerrors.Error {
	return kerrors.Conflict(ReasonWorkflowConflict, "video workflow status changed concurrently, reload and retry")
}
