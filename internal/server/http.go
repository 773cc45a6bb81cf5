// Package server 组装入站 HTTP Server 及其中间件栈、探针与指标端点。
package server

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/controllers"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"

	obsTrace "github.com/bionicotaku/lingo-utils/observability/tracing"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/metadata"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/go-kratos/kratos/v2/middleware/ratelimit"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

const readinessTimeout = 2 * time.Second

// Pinger 是 /readyz 依赖的最小探活能力，由 *pgxpool.Pool 实现。
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHTTPServer 构造 HTTP Server：业务路由走 kratos 中间件链，探针与 /metrics 直接挂载在 mux 上。
func NewHTTPServer(
	c configloader.ServerConfig,
	auth configloader.AuthConfig,
	tel *Telemetry,
	uploads *controllers.UploadHandler,
	videos *controllers.VideoHandler,
	ready Pinger,
	logger log.Logger,
) *http.Server {
	chain := []middleware.Middleware{
		recovery.Recovery(),
		obsTrace.Server(),
		metadata.Server(
			metadata.WithPropagatedPrefix("x-md-"),
		),
		logging.Server(logger),
	}
	if tel != nil {
		chain = append(chain, kmetrics.Server(tel.serverMiddlewareOptions()...))
	}
	chain = append(chain,
		ratelimit.Server(),
		controllers.Authenticate(auth.JWTSecret),
	)

	opts := []http.ServerOption{
		http.Middleware(chain...),
		http.ErrorEncoder(controllers.EncodeError),
	}
	if c.HTTP.Network != "" {
		opts = append(opts, http.Network(c.HTTP.Network))
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, http.Address(c.HTTP.Addr))
	}
	if c.HTTP.Timeout > 0 {
		opts = append(opts, http.Timeout(c.HTTP.Timeout.Std()))
	}

	srv := http.NewServer(opts...)

	srv.Handle("/healthz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	}))
	srv.Handle("/readyz", readinessHandler(ready, logger))
	if tel != nil {
		srv.Handle("/metrics", tel.Handler())
	}

	if uploads != nil {
		uploads.RegisterRoutes(srv)
	}
	if videos != nil {
		videos.RegisterRoutes(srv)
	}
	return srv
}

// readinessHandler 在数据库不可达时返回 503。
func readinessHandler(ready Pinger, logger log.Logger) stdhttp.Handler {
	helper := log.NewHelper(logger)
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if ready == nil {
			w.WriteHeader(stdhttp.StatusOK)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := ready.Ping(ctx); err != nil {
			helper.WithContext(ctx).Warnf("readiness check failed: %v", err)
			w.WriteHeader(stdhttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(stdhttp.StatusOK)
	})
}
