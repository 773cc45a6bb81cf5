package controllers

import (
	"context"
	"net/http"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/views"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// 上传相关 HTTP 操作名，用于中间件匹配与指标标签。
const (
	OperationInitiateUpload       = "/coursevideo.v1.UploadService/InitiateUpload"
	OperationGetUploadSession     = "/coursevideo.v1.UploadService/GetUploadSession"
	OperationUpdateUploadProgress = "/coursevideo.v1.UploadService/UpdateUploadProgress"
	OperationRefreshPresignedURLs = "/coursevideo.v1.UploadService/RefreshPresignedURLs"
	OperationCompleteUpload       = "/coursevideo.v1.UploadService/CompleteUpload"
	OperationCancelUpload         = "/coursevideo.v1.UploadService/CancelUpload"
)

// UploadHandler 暴露分片上传会话的 HTTP 接口。
type UploadHandler struct {
	*BaseHandler
	svc   *services.UploadService
	chain *services.LessonChainVerifier
}

// NewUploadHandler 构造 UploadHandler。
func NewUploadHandler(base *BaseHandler, svc *services.UploadService, chain *services.LessonChainVerifier) *UploadHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &UploadHandler{BaseHandler: base, svc: svc, chain: chain}
}

// RegisterRoutes 在 kratos HTTP Server 上注册 /v1/uploads 路由。
func (h *UploadHandler) RegisterRoutes(srv *khttp.Server) {
	r := srv.Route("/")
	r.POST("/v1/uploads", h.initiate)
	r.GET("/v1/uploads/{session_id}", h.get)
	r.PATCH("/v1/uploads/{session_id}", h.progress)
	r.POST("/v1/uploads/{session_id}/urls", h.refresh)
	r.POST("/v1/uploads/{session_id}/complete", h.complete)
	r.POST("/v1/uploads/{session_id}/abort", h.cancel)
}

func (h *UploadHandler) initiate(ctx khttp.Context) error {
	var req dto.InitiateUploadRequest
	if err := dto.DecodeStrict(ctx.Request().Body, &req); err != nil {
		return err
	}
	return h.invoke(ctx, OperationInitiateUpload, HandlerTypeCommand, http.StatusCreated, &req, func(c context.Context, actor services.Actor) (any, error) {
		input, err := dto.ToInitiateUploadInput(&req)
		if err != nil {
			return nil, err
		}
		if input.HasAssociation() && h.chain != nil {
			if err := h.chain.VerifyLessonChain(c, actor, derefUUID(input.CourseID), derefUUID(input.ModuleID), derefUUID(input.LessonID)); err != nil {
				return nil, err
			}
		}
		ticket, err := h.svc.InitiateUpload(c, actor, input)
		if err != nil {
			return nil, err
		}
		return views.NewUploadTicket(ticket), nil
	})
}

func (h *UploadHandler) get(ctx khttp.Context) error {
	sessionID, err := dto.ParseUUID("session_id", ctx.Vars().Get("session_id"))
	if err != nil {
		return err
	}
	return h.invoke(ctx, OperationGetUploadSession, HandlerTypeQuery, http.StatusOK, nil, func(c context.Context, actor services.Actor) (any, error) {
		session, err := h.svc.GetUploadSession(c, actor, sessionID)
		if err != nil {
			return nil, err
		}
		return views.NewUploadSession(session), nil
	})
}

func (h *UploadHandler) progress(ctx khttp.Context) error {
	sessionID, err := dto.ParseUUID("session_id", ctx.Vars().Get("session_id"))
	if err != nil {
		return err
	}
	var req dto.UpdateProgressRequest
	if err := dto.DecodeStrict(ctx.Request().Body, &req); err != nil {
		return err
	}
	return h.invoke(ctx, OperationUpdateUploadProgress, HandlerTypeCommand, http.StatusOK, &req, func(c context.Context, actor services.Actor) (any, error) {
		parts, bytes, err := req.Values()
		if err != nil {
			return nil, err
		}
		session, err := h.svc.UpdateUploadProgress(c, actor, sessionID, parts, bytes)
		if err != nil {
			return nil, err
		}
		return views.NewUploadSession(session), nil
	})
}

func (h *UploadHandler) refresh(ctx khttp.Context) error {
	sessionID, err := dto.ParseUUID("session_id", ctx.Vars().Get("session_id"))
	if err != nil {
		return err
	}
	return h.invoke(ctx, OperationRefreshPresignedURLs, HandlerTypeCommand, http.StatusOK, nil, func(c context.Context, actor services.Actor) (any, error) {
		ticket, err := h.svc.RefreshPresignedURLs(c, actor, sessionID)
		if err != nil {
			return nil, err
		}
		return views.NewUploadTicket(ticket), nil
	})
}

func (h *UploadHandler) complete(ctx khttp.Context) error {
	sessionID, err := dto.ParseUUID("session_id", ctx.Vars().Get("session_id"))
	if err != nil {
		return err
	}
	var req dto.CompleteUploadRequest
	if err := dto.DecodeStrict(ctx.Request().Body, &req); err != nil {
		return err
	}
	return h.invoke(ctx, OperationCompleteUpload, HandlerTypeCommand, http.StatusOK, &req, func(c context.Context, actor services.Actor) (any, error) {
		input, err := dto.ToCompleteUploadInput(sessionID, &req)
		if err != nil {
			return nil, err
		}
		result, err := h.svc.CompleteUpload(c, actor, input)
		if err != nil {
			return nil, err
		}
		return views.NewCompletedUpload(result), nil
	})
}

func (h *UploadHandler) cancel(ctx khttp.Context) error {
	sessionID, err := dto.ParseUUID("session_id", ctx.Vars().Get("session_id"))
	if err != nil {
		return err
	}
	return h.invoke(ctx, OperationCancelUpload, HandlerTypeCommand, http.StatusOK, nil, func(c context.Context, actor services.Actor) (any, error) {
		session, err := h.svc.CancelUpload(c, actor, sessionID)
		if err != nil {
			return nil, err
		}
		return views.NewUploadSession(session), nil
	})
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
