package main

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/eventbus"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/gcs"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/objectstore"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

// provideMultipartStore 未配置 bucket 时返回 nil 接口，上传接口将以 503 拒绝。
func provideMultipartStore(ctx context.Context, cfg configloader.StorageConfig, logger log.Logger) (services.MultipartStore, error) {
	if !cfg.Configured() {
		log.NewHelper(logger).Warn("storage bucket not configured; upload endpoints will return 503")
		return nil, nil
	}
	store, err := objectstore.NewS3Store(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	return store, nil
}

// providePlaybackSigner 仅在 provider 为 gcs 且配置了签名账号时启用 V4 签名；初始化失败时回退到 S3 预签名。
func providePlaybackSigner(ctx context.Context, storage configloader.StorageConfig, cfg configloader.GCSConfig, logger log.Logger) services.PlaybackSigner {
	if storage.Provider != "gcs" || cfg.SignerServiceAccount == "" {
		return nil
	}
	signer, err := gcs.ProvidePlaybackSigner(ctx, cfg, logger)
	if err != nil {
		log.NewHelper(logger).Warnf("gcs playback signer unavailable, falling back to s3 presign: %v", err)
		return nil
	}
	return signer
}

func provideEventPublisher(p *eventbus.Publisher) services.EventPublisher {
	return p
}

func provideTxManager(cfg txmanager.Config, pool *pgxpool.Pool, logger log.Logger) (txmanager.Manager, func(), error) {
	component, cleanup, err := txmanager.NewComponent(cfg, pool, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init tx manager: %w", err)
	}
	return txmanager.ProvideManager(component), cleanup, nil
}
