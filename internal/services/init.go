// Package services 承载业务用例编排：分片上传会话、视频工作流状态机与课时关联。
package services

import (
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"

	"github.com/google/wire"
)

// ProviderSet 暴露服务层构造器。
var ProviderSet = wire.NewSet(
	ProvideUploadPolicy,
	ProvidePlaybackPolicy,
	NewUploadService,
	NewWorkflowService,
	NewVideoService,
	NewLessonChainVerifier,
)

// ProvideUploadPolicy 将 upload 配置节点转换为 UploadPolicy。
func ProvideUploadPolicy(cfg configloader.UploadConfig) UploadPolicy {
	return UploadPolicy{
		PartSizeBytes:     cfg.PartSizeBytes,
		MaxFileSizeBytes:  cfg.MaxFileSizeBytes,
		PresignTTL:        cfg.PresignTTL.Std(),
		AllowedMimeTypes:  append([]string(nil), cfg.AllowedMimeTypes...),
		ReconcileProgress: cfg.ReconcileProgress,
	}
}

// ProvidePlaybackPolicy 根据存储提供方决定播放地址的签名方式。
func ProvidePlaybackPolicy(upload configloader.UploadConfig, storage configloader.StorageConfig) PlaybackPolicy {
	return PlaybackPolicy{
		TTL:          upload.PlaybackURLTTL.Std(),
		UseGCSSigner: storage.Provider == "gcs",
	}
}
