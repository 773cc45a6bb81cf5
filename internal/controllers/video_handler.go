package controllers

import (
	"context"
	"net/http"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/views"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// 视频相关 HTTP 操作名。
const (
	OperationListVideos            = "/coursevideo.v1.VideoService/ListVideos"
	OperationRegisterExternalVideo = "/coursevideo.v1.VideoService/RegisterExternalVideo"
	OperationGetVideo              = "/coursevideo.v1.VideoService/GetVideo"
	OperationDeleteVideo           = "/coursevideo.v1.VideoService/DeleteVideo"
	OperationUpdateWorkflowStatus  = "/coursevideo.v1.VideoService/UpdateWorkflowStatus"
	OperationListWorkflowHistory   = "/coursevideo.v1.VideoService/ListWorkflowHistory"
	OperationAssignVideoToLesson   = "/coursevideo.v1.VideoService/AssignVideoToLesson"
	OperationRemoveVideoFromLesson = "/coursevideo.v1.VideoService/RemoveVideoFromLesson"
)

// VideoHandler 暴露视频目录、工作流与课时关联的 HTTP 接口。
type VideoHandler struct {
	*BaseHandler
	videos   *services.VideoService
	workflow *services.WorkflowService
	chain    *services.LessonChainVerifier
}

// NewVideoHandler 构造 VideoHandler。
func NewVideoHandler(base *BaseHandler, videos *services.VideoService, workflow *services.WorkflowService, chain *services.LessonChainVerifier) *VideoHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &VideoHandler{BaseHandler: base, videos: videos, workflow: workflow, chain: chain}
}

// RegisterRoutes 在 kratos HTTP Server 上注册 /v1/videos 路由。
func (h *VideoHandler) RegisterRoutes(srv *khttp.Server) {
	r := srv.Route("/")
	r.GET("/v1/videos", h.list)
	r.POST("/v1/videos", h.register)
	r.GET("/v1/videos/{video_id}", h.get)
	r.DELETE("/v1/videos/{video_id}", h.delete)
	r.PATCH("/v1/videos/{video_id}/status", h.updateStatus)
	r.GET("/v1/videos/{video_id}/history", h.history)
	r.POST("/v1/videos/{video_id}/assign", h.assign)
	r.DELETE("/v1/videos/{video_id}/assign", h.unassign)
}

func (h *VideoHandler) list(ctx khttp.Context) error {
	filter, err := dto.ToVideoFilter(ctx.Query())
	if err != nil {
		return err
	}
	return h.invoke(ctx, OperationListVideos, HandlerTypeQuery, http.StatusOK, &filter, func(c context.Context, actor services.Actor) (any, error) {
		items, err := h.videos.ListVideos(c, actor, filter)
		if err != nil {
			return nil, err
		}
		return views.NewVideoList(items), nil
	})
}

func (h *VideoHandler) register(ctx khttp.Context) error {
	var req dto.RegisterExternalVideoRequest
	if err := dto.DecodeStrict(ctx.Request().Body, &req); err != nil {
		return err
	}
	return h.invoke(ctx, OperationRegisterExternalVideo, HandlerTypeCommand, http.StatusCreated, &req, func(c context.Context, actor services.Actor) (any, error) {
		input, err := dto.ToRegisterExternalVideoInput(&req)
		if err != nil {
			return nil, err
		}
		video, err := h.videos.RegisterExternalVideo(c, actor, input)
		if err != nil {
			return nil, err
		}
		return views.NewVideo(video), nil
	})
}

func (h *VideoHandler) get(ctx khttp.Context) error {
	videoID, err := dto.ParseUUID("video_id", ctx.Vars().Get("video_id"))
	if err != nil {
		return err
	}
	return h.invoke(ctx, OperationGetVideo, HandlerTypeQuery, http.StatusOK, nil, func(c context.Context, actor services.Actor) (any, error) {
		detail, err := h.videos.GetVideo(c, actor, videoID)
		if err != nil {
			return nil, err
		}
		return views.NewVideoDetail(detail), nil
	})
}

func (h *VideoHandler) delete(ctx khttp.Context) error {
	videoID, err := dto.ParseUUID("video_id", ctx.Vars().Get("video_id"))
	if err != nil {
		return err
	}
	return h.invoke(ctx, OperationDeleteVideo, HandlerTypeCommand, http.StatusOK, nil, func(c context.Context, actor services.Actor) (any, error) {
		if err := h.videos.DeleteVideo(c, actor, videoID); err != nil {
			return nil, err
		}
		return map[string]string{"video_id": videoID.String(), "status": "deleted"}, nil
	})
}

func (h *VideoHandler) updateStatus(ctx khttp.Context) error {
	videoID, err := dto.ParseUUID("video_id", ctx.Vars().Get("video_id"))
	if err != nil {
		return err
	}
	var req dto.UpdateWorkflowStatusRequest
	if err := dto.DecodeStrict(ctx.Request().Body, &req); err != nil {
		return err
	}
	return h.invoke(ctx, OperationUpdateWorkflowStatus, HandlerTypeCommand, http.StatusOK, &req, func(c context.Context, actor services.Actor) (any, error) {
		target, err := req.Target()
		if err != nil {
			return nil, err
		}
		video, err := h.workflow.UpdateWorkflowStatus(c, actor, videoID, target)
		if err != nil {
			return nil, err
		}
		return views.NewVideo(video), nil
	})
}

func (h *VideoHandler) history(ctx khttp.Context) error {
	videoID, err := dto.ParseUUID("video_id", ctx.Vars().Get("video_id"))
	if err != nil {
		return err
	}
	return h.invoke(ctx, OperationListWorkflowHistory, HandlerTypeQuery, http.StatusOK, nil, func(c context.Context, actor services.Actor) (any, error) {
		items, err := h.workflow.ListWorkflowHistory(c, actor, videoID)
		if err != nil {
			return nil, err
		}
		return views.NewWorkflowHistory(videoID, items), nil
	})
}

func (h *VideoHandler) assign(ctx khttp.Context) error {
	videoID, err := dto.ParseUUID("video_id", ctx.Vars().Get("video_id"))
	if err != nil {
		return err
	}
	var req dto.AssignVideoRequest
	if err := dto.DecodeStrict(ctx.Request().Body, &req); err != nil {
		return err
	}
	return h.invoke(ctx, OperationAssignVideoToLesson, HandlerTypeCommand, http.StatusOK, &req, func(c context.Context, actor services.Actor) (any, error) {
		assignment, err := dto.ToAssignment(&req)
		if err != nil {
			return nil, err
		}
		if h.chain != nil {
			if err := h.chain.VerifyLessonChain(c, actor, assignment.CourseID, assignment.ModuleID, assignment.LessonID); err != nil {
				return nil, err
			}
		}
		video, err := h.videos.AssignVideoToLesson(c, actor, videoID, assignment.LessonID, assignment.Target())
		if err != nil {
			return nil, err
		}
		return views.NewVideo(video), nil
	})
}

func (h *VideoHandler) unassign(ctx khttp.Context) error {
	videoID, err := dto.ParseUUID("video_id", ctx.Vars().Get("video_id"))
	if err != nil {
		return err
	}
	return h.invoke(ctx, OperationRemoveVideoFromLesson, HandlerTypeCommand, http.StatusOK, nil, func(c context.Context, actor services.Actor) (any, error) {
		video, err := h.videos.RemoveVideoFromLesson(c, actor, videoID)
		if err != nil {
			return nil, err
		}
		return views.NewVideo(video), nil
	})
}
