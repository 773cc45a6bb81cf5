package services

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/events"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

type eventBuilder func(eventID uuid.UUID, occurredAt time.Time) (*events.DomainEvent, error)

// publishAfterCommit 在事务提交后尽力发布领域事件，失败只记录日志，不影响业务结果。
func publishAfterCommit(ctx context.Context, pub EventPublisher, logger *log.Helper, occurredAt time.Time, build eventBuilder) {
	if pub == nil {
		return
	}
	evt, err := build(uuid.New(), occurredAt)
	if err != nil {
		logger.WithContext(ctx).Warnf("build domain event failed: err=%v", err)
		return
	}
	if err := pub.Publish(ctx, evt); err != nil {
		logger.WithContext(ctx).Debugf("domain event dropped: type=%s aggregate=%s", evt.Kind, evt.AggregateID)
	}
}
