// Package eventbus 将视频领域事件发布到 Google Cloud Pub/Sub。
// 发布为尽力而为：失败只记录日志，由调用方决定是否忽略，不做重试与持久化。
package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/events"
)

// Publisher 封装 gcpubsub.Publisher；底层为空时所有发布都是 no-op。
type Publisher struct {
	pub     gcpubsub.Publisher
	timeout time.Duration
	log     *log.Helper
}

// NewPublisher 构造 Publisher。pub 为 nil 表示未配置消息总线。
func NewPublisher(pub gcpubsub.Publisher, timeout time.Duration, logger log.Logger) *Publisher {
	return &Publisher{
		pub:     pub,
		timeout: timeout,
		log:     log.NewHelper(logger),
	}
}

// Enabled 判断是否连接了真实的 Topic。
func (p *Publisher) Enabled() bool {
	return p != nil && p.pub != nil
}

// Publish 编码并发布事件，以聚合 ID 作为 ordering key。
func (p *Publisher) Publish(ctx context.Context, evt *events.DomainEvent) error {
	if !p.Enabled() || evt == nil {
		return nil
	}
	data, err := events.Encode(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := gcpubsub.Message{
		Data:        data,
		Attributes:  events.BuildAttributes(evt, events.SchemaVersionV1, events.TraceIDFromContext(ctx)),
		OrderingKey: evt.AggregateID.String(),
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if _, err := p.pub.Publish(ctx, msg); err != nil {
		p.log.WithContext(ctx).Warnf("publish event failed: type=%s aggregate=%s err=%v", evt.Kind, evt.AggregateID, err)
		return fmt.Errorf("publish %s: %w", evt.Kind, err)
	}
	return nil
}

// ProvidePublisher 按 messaging.pubsub 配置创建发布器；未配置 Topic 时返回 no-op 发布器。
func ProvidePublisher(ctx context.Context, cfg configloader.MessagingConfig, logger log.Logger) (*Publisher, func(), error) {
	ps := cfg.PubSub
	timeout := ps.PublishTimeout.Std()
	if !ps.Enabled() {
		log.NewHelper(logger).Info("pubsub topic not configured; domain events are dropped")
		return NewPublisher(nil, timeout, logger), func() {}, nil
	}

	ordering := true
	component, cleanup, err := gcpubsub.NewComponent(ctx, gcpubsub.Config{
		ProjectID:          ps.ProjectID,
		TopicID:            ps.TopicID,
		OrderingKeyEnabled: &ordering,
		EmulatorEndpoint:   ps.EmulatorEndpoint,
	}, gcpubsub.Dependencies{Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	return NewPublisher(gcpubsub.ProvidePublisher(component), timeout, logger), cleanup, nil
}
