package controllers

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	"github.com/go-kratos/kratos/v2/middleware"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// HandlerType 表示 Handler 的语义类别，用于选择超时策略。
type HandlerType int

const (
	// HandlerTypeDefault 表示未显式区分的 Handler。
	HandlerTypeDefault HandlerType = iota
	// HandlerTypeCommand 表示写操作 Handler（初始化、完成上传、状态迁移等）。
	HandlerTypeCommand
	// HandlerTypeQuery 表示只读查询 Handler。
	HandlerTypeQuery
)

// HandlerTimeouts 聚合不同类型 Handler 的超时策略。
type HandlerTimeouts struct {
	Default time.Duration
	Command time.Duration
	Query   time.Duration
}

const (
	fallbackDefaultTimeout = 5 * time.Second
	fallbackQueryTimeout   = 3 * time.Second
)

// BaseHandler 提供公共的超时与身份解析能力，供具体 Handler 内嵌复用。
type BaseHandler struct {
	timeouts HandlerTimeouts
	issuer   string
}

// NewBaseHandler 构造基础 Handler，并为缺省值填充合理的回退策略。
func NewBaseHandler(timeouts HandlerTimeouts) *BaseHandler {
	if timeouts.Default <= 0 {
		switch {
		case timeouts.Command > 0:
			timeouts.Default = timeouts.Command
		case timeouts.Query > 0:
			timeouts.Default = timeouts.Query
		default:
			timeouts.Default = fallbackDefaultTimeout
		}
	}
	if timeouts.Command <= 0 {
		timeouts.Command = timeouts.Default
	}
	if timeouts.Query <= 0 {
		if timeouts.Default > 0 {
			timeouts.Query = timeouts.Default
		} else {
			timeouts.Query = fallbackQueryTimeout
		}
	}
	return &BaseHandler{timeouts: timeouts}
}

// WithIssuer 要求令牌的 iss 与给定值一致；空字符串表示不校验。
func (h *BaseHandler) WithIssuer(issuer string) *BaseHandler {
	h.issuer = issuer
	return h
}

// Timeouts 返回填充回退值后的超时策略。
func (h *BaseHandler) Timeouts() HandlerTimeouts {
	if h == nil {
		return HandlerTimeouts{Default: fallbackDefaultTimeout, Command: fallbackDefaultTimeout, Query: fallbackQueryTimeout}
	}
	return h.timeouts
}

// WithTimeout 根据 Handler 类型包装上下文，返回绑定超时的新 Context 与取消函数。
func (h *BaseHandler) WithTimeout(ctx context.Context, kind HandlerType) (context.Context, context.CancelFunc) {
	if h == nil {
		return context.WithTimeout(ctx, fallbackDefaultTimeout)
	}
	var timeout time.Duration
	switch kind {
	case HandlerTypeCommand:
		timeout = h.timeouts.Command
	case HandlerTypeQuery:
		timeout = h.timeouts.Query
	default:
		timeout = h.timeouts.Default
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Actor 从已通过 JWT 校验的上下文中解析调用者身份。
func (h *BaseHandler) Actor(ctx context.Context) (services.Actor, error) {
	issuer := ""
	if h != nil {
		issuer = h.issuer
	}
	return ActorFromContext(ctx, issuer)
}

// invoke 在 kratos 中间件链内执行一次调用：设置 operation、解析身份、套用超时，最后写出 JSON。
func (h *BaseHandler) invoke(ctx khttp.Context, operation string, kind HandlerType, status int, req any, call func(context.Context, services.Actor) (any, error)) error {
	khttp.SetOperation(ctx, operation)
	var handler middleware.Handler = func(c context.Context, _ any) (any, error) {
		actor, err := h.Actor(c)
		if err != nil {
			return nil, err
		}
		c, cancel := h.WithTimeout(c, kind)
		defer cancel()
		return call(c, actor)
	}
	out, err := ctx.Middleware(handler)(ctx, req)
	if err != nil {
		return err
	}
	return ctx.Result(status, out)
}
