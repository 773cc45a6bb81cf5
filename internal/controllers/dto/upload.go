package dto

import (
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	"github.com/google/uuid"
)

// InitiateUploadRequest 对应 POST /v1/uploads。
type InitiateUploadRequest struct {
	Filename      string  `json:"filename"`
	FileSizeBytes *int64  `json:"file_size_bytes"`
	MimeType      string  `json:"mime_type"`
	Title         string  `json:"title"`
	CourseID      *string `json:"course_id"`
	ModuleID      *string `json:"module_id"`
	LessonID      *string `json:"lesson_id"`
}

// ToInitiateUploadInput 转换为 Service 输入。关联字段的组合校验由 Service 完成。
func ToInitiateUploadInput(req *InitiateUploadRequest) (services.InitiateUploadInput, error) {
	if req == nil {
		return services.InitiateUploadInput{}, services.ErrValidation("request body is required")
	}
	if req.FileSizeBytes == nil {
		return services.InitiateUploadInput{}, services.ErrValidation("file_size_bytes is required")
	}
	input := services.InitiateUploadInput{
		Filename:      req.Filename,
		FileSizeBytes: *req.FileSizeBytes,
		MimeType:      req.MimeType,
		Title:         req.Title,
	}
	var err error
	if input.CourseID, err = parseOptionalUUID("course_id", req.CourseID); err != nil {
		return services.InitiateUploadInput{}, err
	}
	if input.ModuleID, err = parseOptionalUUID("module_id", req.ModuleID); err != nil {
		return services.InitiateUploadInput{}, err
	}
	if input.LessonID, err = parseOptionalUUID("lesson_id", req.LessonID); err != nil {
		return services.InitiateUploadInput{}, err
	}
	return input, nil
}

// UpdateProgressRequest 对应 PATCH /v1/uploads/{session_id}，两个字段均必填。
type UpdateProgressRequest struct {
	PartsCompleted *int32 `json:"parts_completed"`
	BytesUploaded  *int64 `json:"bytes_uploaded"`
}

// Values 返回校验后的进度值。
func (r *UpdateProgressRequest) Values() (int32, int64, error) {
	if r == nil || r.PartsCompleted == nil || r.BytesUploaded == nil {
		return 0, 0, services.ErrValidation("parts_completed and bytes_uploaded are required")
	}
	return *r.PartsCompleted, *r.BytesUploaded, nil
}

// CompletedPartRequest 沿用 S3 CompleteMultipartUpload 的字段命名。
type CompletedPartRequest struct {
	PartNumber int32  `json:"PartNumber"`
	ETag       string `json:"ETag"`
}

// CompleteUploadRequest 对应 POST /v1/uploads/{session_id}/complete。
type CompleteUploadRequest struct {
	Parts       []CompletedPartRequest `json:"parts"`
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Tags        []string               `json:"tags"`
}

// ToCompleteUploadInput 转换为 Service 输入，清单内容的校验由 Service 完成。
func ToCompleteUploadInput(sessionID uuid.UUID, req *CompleteUploadRequest) (services.CompleteUploadInput, error) {
	if req == nil {
		return services.CompleteUploadInput{}, services.ErrValidation("request body is required")
	}
	parts := make([]vo.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, vo.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	return services.CompleteUploadInput{
		SessionID:   sessionID,
		Parts:       parts,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	}, nil
}
