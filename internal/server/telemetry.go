package server

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexp "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "lingo-services-coursevideo/http"

// Telemetry 持有 HTTP 请求指标以及 /metrics 暴露的 Registry。
// MeterProvider 为本地实例，不注册为全局 Provider。
type Telemetry struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	requests metric.Int64Counter
	seconds  metric.Float64Histogram
}

// NewTelemetry 构造 Telemetry，cleanup 负责关闭 MeterProvider。
func NewTelemetry(logger log.Logger) (*Telemetry, func(), error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	exporter, err := promexp.New(promexp.WithRegisterer(registry), promexp.WithoutUnits())
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(kmetrics.DefaultSecondsHistogramView(kmetrics.DefaultServerSecondsHistogramName)),
	)

	tel := &Telemetry{registry: registry, provider: provider}
	meter := provider.Meter(meterName)
	if tel.requests, err = kmetrics.DefaultRequestsCounter(meter, kmetrics.DefaultServerRequestsCounterName); err != nil {
		return nil, nil, fmt.Errorf("requests counter: %w", err)
	}
	if tel.seconds, err = kmetrics.DefaultSecondsHistogram(meter, kmetrics.DefaultServerSecondsHistogramName); err != nil {
		return nil, nil, fmt.Errorf("seconds histogram: %w", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.NewHelper(logger).Warnf("shutdown meter provider: %v", err)
		}
	}
	return tel, cleanup, nil
}

// serverMiddlewareOptions 返回 kratos metrics 中间件使用的计量器。
func (t *Telemetry) serverMiddlewareOptions() []kmetrics.Option {
	return []kmetrics.Option{
		kmetrics.WithRequests(t.requests),
		kmetrics.WithSeconds(t.seconds),
	}
}

// Handler 返回 Prometheus 抓取端点。
func (t *Telemetry) Handler() stdhttp.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}
