package configloader

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
)

const (
	envConfPath       = "CONF_PATH"
	envServiceName    = "SERVICE_NAME"
	envServiceVersion = "SERVICE_VERSION"
	envAppEnv         = "APP_ENV"
	envDatabaseURL    = "DATABASE_URL"
	envPort           = "PORT"
	envStorageBucket  = "STORAGE_BUCKET"
	envStorageAK      = "STORAGE_ACCESS_KEY"
	envStorageSK      = "STORAGE_SECRET_KEY"
	envJWTSecret      = "AUTH_JWT_SECRET"
)

var envFileNames = []string{".env.local", ".env"}

// Params 包含构造配置所需的运行时输入参数。
type Params struct {
	ConfPath string // 配置文件路径（可为空，使用默认值）
	Name     string // 编译期注入的服务名（可为空）
	Version  string // 编译期注入的版本号（可为空）
}

// ServiceMetadata 保存服务标识信息，供日志和可观测性组件使用。
type ServiceMetadata struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// Loader 聚合强类型的配置片段，供下游 Wire 注入使用。
type Loader struct {
	Runtime   RuntimeConfig
	Service   ServiceMetadata
	ObsConfig obswire.ObservabilityConfig
	TxConfig  txmanager.Config
}

// BuildError 捕获配置构建过程中的上下文错误信息。
type BuildError struct {
	Stage string
	Path  string
	Err   error
}

// Error 实现 error 接口，提供包含上下文的错误信息。
func (e BuildError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("config %s at %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

// Unwrap 暴露底层错误，支持 errors.Is/As 链式查询。
func (e BuildError) Unwrap() error {
	return e.Err
}

// ParseConfPath 解析命令行中的 -conf 参数。
func ParseConfPath(fs *flag.FlagSet, args []string) (string, error) {
	var confPath string
	fs.StringVar(&confPath, "conf", "", "config path, eg: -conf configs/config.yaml")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return ResolveConfPath(confPath), nil
}

// Build 从配置文件构建 Loader。
//
// 流程：
// 1. 解析配置路径并加载相邻的 .env 文件
// 2. 读取 YAML、应用环境变量覆盖、填充默认值并校验
// 3. 推导服务元信息与 observability / txmanager 配置
func Build(params Params) (*Loader, error) {
	confPath := ResolveConfPath(params.ConfPath)
	loadEnvFiles(confPath)

	rc, err := loadRuntime(confPath)
	if err != nil {
		return nil, err
	}

	return &Loader{
		Runtime:   rc,
		Service:   buildServiceMetadata(params.Name, params.Version),
		ObsConfig: toObservabilityConfig(rc.Observability),
		TxConfig:  toTxManagerConfig(rc.Database.Transaction),
	}, nil
}

// Load 仅返回 RuntimeConfig，供迁移等辅助命令使用。
func Load(params Params) (RuntimeConfig, error) {
	l, err := Build(params)
	if err != nil {
		return RuntimeConfig{}, err
	}
	return l.Runtime, nil
}

// ResolveConfPath 应用回退规则确定要加载的配置目录/文件路径。
// 优先级：显式传入路径 > CONF_PATH 环境变量 > 默认路径。
func ResolveConfPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	return defaultConfPath
}

// loadRuntime 读取配置并完成覆盖、默认值与校验。
//
// 错误阶段：
//   - "load": 文件读取失败
//   - "scan": YAML 解析失败或类型不匹配
//   - "validate": 必填字段缺失或约束不满足
func loadRuntime(confPath string) (RuntimeConfig, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return RuntimeConfig{}, BuildError{Stage: "load", Path: confPath, Err: err}
	}
	defer c.Close()

	var rc RuntimeConfig
	if err := c.Scan(&rc); err != nil {
		return RuntimeConfig{}, BuildError{Stage: "scan", Path: confPath, Err: err}
	}
	applyEnvOverrides(&rc)
	fillDefaults(&rc)
	if err := validate(rc); err != nil {
		return RuntimeConfig{}, BuildError{Stage: "validate", Path: confPath, Err: err}
	}
	return rc, nil
}

// applyEnvOverrides 应用环境变量覆盖配置文件中的特定字段，环境变量为空时保留原值。
//
//   - DATABASE_URL: 覆盖 database.dsn
//   - PORT: 覆盖 server.http.addr 的端口部分（Cloud Run 动态端口）
//   - STORAGE_BUCKET / STORAGE_ACCESS_KEY / STORAGE_SECRET_KEY: 覆盖 storage 凭据
//   - AUTH_JWT_SECRET: 覆盖 auth.jwt_secret
func applyEnvOverrides(rc *RuntimeConfig) {
	if rc == nil {
		return
	}
	if dsn := os.Getenv(envDatabaseURL); dsn != "" {
		rc.Database.DSN = dsn
	}
	if port := os.Getenv(envPort); port != "" {
		rc.Server.HTTP.Addr = replacePort(rc.Server.HTTP.Addr, port)
	}
	if bucket := os.Getenv(envStorageBucket); bucket != "" {
		rc.Storage.Bucket = bucket
	}
	if ak := os.Getenv(envStorageAK); ak != "" {
		rc.Storage.AccessKey = ak
	}
	if sk := os.Getenv(envStorageSK); sk != "" {
		rc.Storage.SecretKey = sk
	}
	if secret := os.Getenv(envJWTSecret); secret != "" {
		rc.Auth.JWTSecret = secret
	}
}

// buildServiceMetadata 构建服务元信息。优先级：环境变量 > 编译期注入 > 默认值。
func buildServiceMetadata(name, version string) ServiceMetadata {
	host, _ := os.Hostname()
	return ServiceMetadata{
		Name:        firstNonEmpty(os.Getenv(envServiceName), name, defaultServiceName),
		Version:     firstNonEmpty(os.Getenv(envServiceVersion), version, defaultServiceVersion),
		Environment: firstNonEmpty(os.Getenv(envAppEnv), defaultEnvironment),
		InstanceID:  host,
	}
}

// loadEnvFiles best-effort 加载配置相关的 .env 文件，失败时忽略以保持幂等。
func loadEnvFiles(confPath string) {
	files := envFileCandidates(confPath)
	if len(files) == 0 {
		return
	}
	_ = godotenv.Load(files...)
}

// envFileCandidates 按 confPath 目录、当前工作目录的顺序返回存在的 .env.local / .env 文件。
// godotenv 不覆盖已设置的变量，因此靠前的文件优先。
func envFileCandidates(confPath string) []string {
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range orderedDirs(confPath) {
		for _, name := range envFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			files = append(files, candidate)
			seen[candidate] = struct{}{}
		}
	}
	return files
}

func orderedDirs(confPath string) []string {
	var dirs []string
	appendUnique := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, existing := range dirs {
			if existing == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if confPath != "" {
		if info, err := os.Stat(confPath); err == nil {
			if info.IsDir() {
				appendUnique(confPath)
			} else {
				appendUnique(filepath.Dir(confPath))
			}
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		appendUnique(cwd)
	}
	return dirs
}

// toObservabilityConfig 将配置转换为 observability 包的规范化结构。
func toObservabilityConfig(src ObservabilityConfig) obswire.ObservabilityConfig {
	cfg := obswire.ObservabilityConfig{
		GlobalAttributes: cloneStringMap(src.GlobalAttributes),
	}
	if tr := src.Tracing; tr != nil {
		cfg.Tracing = &obswire.TracingConfig{
			Enabled:            tr.Enabled,
			Exporter:           tr.Exporter,
			Endpoint:           tr.Endpoint,
			Headers:            cloneStringMap(tr.Headers),
			Insecure:           tr.Insecure,
			SamplingRatio:      tr.SamplingRatio,
			BatchTimeout:       tr.BatchTimeout.Std(),
			ExportTimeout:      tr.ExportTimeout.Std(),
			MaxQueueSize:       tr.MaxQueueSize,
			MaxExportBatchSize: tr.MaxExportBatchSize,
			Required:           tr.Required,
			Attributes:         cloneStringMap(tr.Attributes),
		}
	}
	if mt := src.Metrics; mt != nil {
		cfg.Metrics = &obswire.MetricsConfig{
			Enabled:             mt.Enabled,
			Exporter:            mt.Exporter,
			Endpoint:            mt.Endpoint,
			Headers:             cloneStringMap(mt.Headers),
			Insecure:            mt.Insecure,
			Interval:            mt.Interval.Std(),
			DisableRuntimeStats: mt.DisableRuntimeStats,
			Required:            mt.Required,
			ResourceAttributes:  cloneStringMap(mt.ResourceAttributes),
		}
	}
	return cfg
}

func toTxManagerConfig(tx TransactionConfig) txmanager.Config {
	return txmanager.Config{
		DefaultIsolation: tx.DefaultIsolation,
		DefaultTimeout:   tx.DefaultTimeout.Std(),
		LockTimeout:      tx.LockTimeout.Std(),
		MaxRetries:       tx.MaxRetries,
		MetricsEnabled:   tx.MetricsEnabled,
	}
}

func cloneStringMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// replacePort 替换地址中的端口部分，保留 host。
//   - "0.0.0.0:8080" -> "0.0.0.0:9000"
//   - "[::1]:8080" -> "[::1]:9000"
func replacePort(addr, newPort string) string {
	if addr == "" {
		return "0.0.0.0:" + newPort
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "0.0.0.0:" + newPort
	}
	return net.JoinHostPort(host, newPort)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
