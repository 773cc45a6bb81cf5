package dto

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	"github.com/google/uuid"
)

// UpdateWorkflowStatusRequest 对应 PATCH /v1/videos/{video_id}/status。
type UpdateWorkflowStatusRequest struct {
	Status string `json:"status"`
}

// Target 返回目标状态，合法性由 Service 校验。
func (r *UpdateWorkflowStatusRequest) Target() (po.WorkflowStatus, error) {
	if r == nil || strings.TrimSpace(r.Status) == "" {
		return "", services.ErrValidation("status is required")
	}
	return po.WorkflowStatus(strings.ToLower(strings.TrimSpace(r.Status))), nil
}

// AssignVideoRequest 对应 POST /v1/videos/{video_id}/assign。
type AssignVideoRequest struct {
	CourseID string `json:"course_id"`
	ModuleID string `json:"module_id"`
	LessonID string `json:"lesson_id"`
}

// Assignment 是解析后的课时链路。
type Assignment struct {
	CourseID uuid.UUID
	ModuleID uuid.UUID
	LessonID uuid.UUID
}

// ToAssignment 解析三个 ID，任一缺失即失败。
func ToAssignment(req *AssignVideoRequest) (Assignment, error) {
	if req == nil {
		return Assignment{}, services.ErrValidation("request body is required")
	}
	var (
		out Assignment
		err error
	)
	if out.CourseID, err = ParseUUID("course_id", req.CourseID); err != nil {
		return Assignment{}, err
	}
	if out.ModuleID, err = ParseUUID("module_id", req.ModuleID); err != nil {
		return Assignment{}, err
	}
	if out.LessonID, err = ParseUUID("lesson_id", req.LessonID); err != nil {
		return Assignment{}, err
	}
	return out, nil
}

// Target 返回 Service 所需的 AssignmentTarget。
func (a Assignment) Target() services.AssignmentTarget {
	return services.AssignmentTarget{CourseID: a.CourseID, ModuleID: a.ModuleID}
}

// RegisterExternalVideoRequest 对应 POST /v1/videos。
type RegisterExternalVideoRequest struct {
	Title            string   `json:"title"`
	ExternalURL      string   `json:"external_url"`
	MimeType         string   `json:"mime_type"`
	FileSizeBytes    int64    `json:"file_size_bytes"`
	OriginalFilename string   `json:"original_filename"`
	Description      *string  `json:"description"`
	Tags             []string `json:"tags"`
}

// ToRegisterExternalVideoInput 转换为 Service 输入。
func ToRegisterExternalVideoInput(req *RegisterExternalVideoRequest) (services.RegisterExternalVideoInput, error) {
	if req == nil {
		return services.RegisterExternalVideoInput{}, services.ErrValidation("request body is required")
	}
	return services.RegisterExternalVideoInput{
		Title:            req.Title,
		ExternalURL:      req.ExternalURL,
		MimeType:         req.MimeType,
		FileSizeBytes:    req.FileSizeBytes,
		OriginalFilename: req.OriginalFilename,
		Description:      req.Description,
		Tags:             req.Tags,
	}, nil
}

// ToVideoFilter 解析 GET /v1/videos 的查询参数：status、lesson_id、uploaded_by、limit。
func ToVideoFilter(query url.Values) (vo.VideoFilter, error) {
	var filter vo.VideoFilter
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := po.WorkflowStatus(strings.ToLower(raw))
		filter.WorkflowStatus = &status
	}
	if raw := query.Get("lesson_id"); raw != "" {
		id, err := ParseUUID("lesson_id", raw)
		if err != nil {
			return vo.VideoFilter{}, err
		}
		filter.LessonID = &id
	}
	if raw := query.Get("uploaded_by"); raw != "" {
		id, err := ParseUUID("uploaded_by", raw)
		if err != nil {
			return vo.VideoFilter{}, err
		}
		filter.UploadedBy = &id
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return vo.VideoFilter{}, services.ErrValidation("invalid limit")
		}
		filter.Limit = int32(limit)
	}
	return filter, nil
}
