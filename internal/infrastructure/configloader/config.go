// Package configloader 负责加载 YAML 配置、应用环境变量覆盖并产出强类型的 RuntimeConfig。
package configloader

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuntimeConfig 是服务运行所需的完整配置视图。
type RuntimeConfig struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Storage       StorageConfig       `json:"storage"`
	GCS           GCSConfig           `json:"gcs"`
	Upload        UploadConfig        `json:"upload"`
	Auth          AuthConfig          `json:"auth"`
	Messaging     MessagingConfig     `json:"messaging"`
	Observability ObservabilityConfig `json:"observability"`
}

// ServerConfig 描述入站传输配置。
type ServerConfig struct {
	HTTP HTTPServerConfig `json:"http"`
}

// HTTPServerConfig 对应 server.http 节点。
type HTTPServerConfig struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// DatabaseConfig 对应 database 节点。
type DatabaseConfig struct {
	DSN                      string            `json:"dsn"`
	Schema                   string            `json:"schema"`
	MaxOpenConns             int32             `json:"max_open_conns"`
	MinOpenConns             int32             `json:"min_open_conns"`
	MaxConnLifetime          Duration          `json:"max_conn_lifetime"`
	MaxConnIdleTime          Duration          `json:"max_conn_idle_time"`
	HealthCheckPeriod        Duration          `json:"health_check_period"`
	EnablePreparedStatements bool              `json:"enable_prepared_statements"`
	AutoMigrate              bool              `json:"auto_migrate"`
	Transaction              TransactionConfig `json:"transaction"`
}

// TransactionConfig 透传给 txmanager。
type TransactionConfig struct {
	DefaultIsolation string   `json:"default_isolation"`
	DefaultTimeout   Duration `json:"default_timeout"`
	LockTimeout      Duration `json:"lock_timeout"`
	MaxRetries       int      `json:"max_retries"`
	MetricsEnabled   *bool    `json:"metrics_enabled"`
}

// StorageConfig 描述 S3 兼容对象存储。Bucket 为空视为未配置。
type StorageConfig struct {
	Provider     string `json:"provider"` // s3 | minio | gcs
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	UsePathStyle bool   `json:"use_path_style"`
}

// Configured 判断对象存储是否具备最小可用配置。
func (s StorageConfig) Configured() bool {
	return s.Bucket != ""
}

// GCSConfig 描述 GCS V4 签名所用的服务账号。
type GCSConfig struct {
	SignerServiceAccount string `json:"signer_service_account"`
}

// UploadConfig 描述分片上传策略。
type UploadConfig struct {
	PartSizeBytes     int64    `json:"part_size_bytes"`
	MaxFileSizeBytes  int64    `json:"max_file_size_bytes"`
	PresignTTL        Duration `json:"presign_ttl"`
	AllowedMimeTypes  []string `json:"allowed_mime_types"`
	ReconcileProgress bool     `json:"reconcile_progress"`
	PlaybackURLTTL    Duration `json:"playback_url_ttl"`
}

// AuthConfig 描述 Bearer JWT 校验参数（HS256）。
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	Issuer    string `json:"issuer"`
}

// MessagingConfig 对应 messaging 节点。
type MessagingConfig struct {
	PubSub PubSubConfig `json:"pubsub"`
}

// PubSubConfig 描述领域事件发布目标。TopicID 为空时不发布。
type PubSubConfig struct {
	ProjectID        string   `json:"project_id"`
	TopicID          string   `json:"topic_id"`
	EmulatorEndpoint string   `json:"emulator_endpoint"`
	PublishTimeout   Duration `json:"publish_timeout"`
}

// Enabled 判断是否需要真实的 Pub/Sub 发布器。
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.TopicID != ""
}

// ObservabilityConfig 对应 observability 节点。
type ObservabilityConfig struct {
	GlobalAttributes map[string]string `json:"global_attributes"`
	Tracing          *TracingConfig    `json:"tracing"`
	Metrics          *MetricsConfig    `json:"metrics"`
}

// TracingConfig 描述追踪导出。
type TracingConfig struct {
	Enabled            bool              `json:"enabled"`
	Exporter           string            `json:"exporter"`
	Endpoint           string            `json:"endpoint"`
	Headers            map[string]string `json:"headers"`
	Insecure           bool              `json:"insecure"`
	SamplingRatio      float64           `json:"sampling_ratio"`
	BatchTimeout       Duration          `json:"batch_timeout"`
	ExportTimeout      Duration          `json:"export_timeout"`
	MaxQueueSize       int               `json:"max_queue_size"`
	MaxExportBatchSize int               `json:"max_export_batch_size"`
	Required           bool              `json:"required"`
	Attributes         map[string]string `json:"attributes"`
}

// MetricsConfig 描述指标导出。
type MetricsConfig struct {
	Enabled             bool              `json:"enabled"`
	Exporter            string            `json:"exporter"`
	Endpoint            string            `json:"endpoint"`
	Headers             map[string]string `json:"headers"`
	Insecure            bool              `json:"insecure"`
	Interval            Duration          `json:"interval"`
	DisableRuntimeStats bool              `json:"disable_runtime_stats"`
	Required            bool              `json:"required"`
	ResourceAttributes  map[string]string `json:"resource_attributes"`
}

// Duration 支持 "5s"/"1h30m" 字符串或纳秒整数两种写法。
type Duration time.Duration

// Std 返回 time.Duration。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalJSON 实现 json.Unmarshaler。
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		if v == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// MarshalJSON 实现 json.Marshaler。
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
