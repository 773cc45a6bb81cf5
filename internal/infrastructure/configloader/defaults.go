package configloader

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// defaultConfPath is the fallback configuration directory when no overrides are provided.
	defaultConfPath = "configs"
	// defaultEnvironment is used when APP_ENV is missing.
	defaultEnvironment    = "development"
	defaultServiceName    = "coursevideo"
	defaultServiceVersion = "dev"

	defaultHTTPAddr    = "0.0.0.0:8080"
	defaultHTTPTimeout = 30 * time.Second
	defaultSchema      = "coursevideo"

	defaultRegion = "us-east-1"

	// DefaultPartSizeBytes 是 S3 multipart 允许的最小分片（最后一片除外）。
	DefaultPartSizeBytes int64 = 5 * 1024 * 1024
	// MaxPartsPerUpload 是 S3 multipart 的分片数量上限。
	MaxPartsPerUpload = 10000

	defaultPresignTTL     = time.Hour
	defaultPlaybackURLTTL = 15 * time.Minute
	defaultPublishTimeout = 5 * time.Second
)

var storageProviders = map[string]struct{}{
	"s3":    {},
	"minio": {},
	"gcs":   {},
}

// fillDefaults 为缺省字段填充默认值。
func fillDefaults(cfg *RuntimeConfig) {
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = defaultHTTPAddr
	}
	if cfg.Server.HTTP.Timeout <= 0 {
		cfg.Server.HTTP.Timeout = Duration(defaultHTTPTimeout)
	}
	if cfg.Database.Schema == "" {
		cfg.Database.Schema = defaultSchema
	}

	cfg.Storage.Provider = strings.ToLower(strings.TrimSpace(cfg.Storage.Provider))
	if cfg.Storage.Provider == "" && cfg.Storage.Bucket != "" {
		cfg.Storage.Provider = "s3"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = defaultRegion
	}
	if cfg.Storage.Provider == "minio" || cfg.Storage.Provider == "gcs" {
		// 非 AWS 端点均要求 path-style 寻址
		cfg.Storage.UsePathStyle = true
	}
	if cfg.Storage.Provider == "gcs" && cfg.Storage.Endpoint == "" {
		cfg.Storage.Endpoint = "https://storage.googleapis.com"
	}

	if cfg.Upload.PartSizeBytes <= 0 {
		cfg.Upload.PartSizeBytes = DefaultPartSizeBytes
	}
	if cfg.Upload.PresignTTL <= 0 {
		cfg.Upload.PresignTTL = Duration(defaultPresignTTL)
	}
	if cfg.Upload.PlaybackURLTTL <= 0 {
		cfg.Upload.PlaybackURLTTL = Duration(defaultPlaybackURLTTL)
	}
	for i, mt := range cfg.Upload.AllowedMimeTypes {
		cfg.Upload.AllowedMimeTypes[i] = strings.ToLower(strings.TrimSpace(mt))
	}

	if cfg.Messaging.PubSub.PublishTimeout <= 0 {
		cfg.Messaging.PubSub.PublishTimeout = Duration(defaultPublishTimeout)
	}
}

// validate 校验填充默认值后的配置。
func validate(cfg RuntimeConfig) error {
	var errs []error
	if cfg.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required (set DATABASE_URL)"))
	}
	if cfg.Database.MaxOpenConns < 0 || cfg.Database.MinOpenConns < 0 {
		errs = append(errs, errors.New("database pool sizes must not be negative"))
	}
	if cfg.Storage.Provider != "" {
		if _, ok := storageProviders[cfg.Storage.Provider]; !ok {
			errs = append(errs, fmt.Errorf("storage.provider %q is not one of s3, minio, gcs", cfg.Storage.Provider))
		}
	}
	if cfg.Storage.Provider == "minio" && cfg.Storage.Endpoint == "" {
		errs = append(errs, errors.New("storage.endpoint is required for minio"))
	}
	if cfg.Upload.PartSizeBytes < DefaultPartSizeBytes {
		errs = append(errs, fmt.Errorf("upload.part_size_bytes must be at least %d", DefaultPartSizeBytes))
	}
	if cfg.Upload.MaxFileSizeBytes < 0 {
		errs = append(errs, errors.New("upload.max_file_size_bytes must not be negative"))
	}
	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required (set AUTH_JWT_SECRET)"))
	}
	if cfg.Messaging.PubSub.TopicID != "" && cfg.Messaging.PubSub.ProjectID == "" {
		errs = append(errs, errors.New("messaging.pubsub.project_id is required when topic_id is set"))
	}
	return errors.Join(errs...)
}
