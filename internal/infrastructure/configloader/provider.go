package configloader

import (
	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/wire"
)

// ProviderSet exposes configuration-derived dependencies for Wire graphs.
var ProviderSet = wire.NewSet(
	ProvideServiceMetadata,
	ProvideRuntimeConfig,
	ProvideServerConfig,
	ProvideDatabaseConfig,
	ProvideStorageConfig,
	ProvideGCSConfig,
	ProvideUploadConfig,
	ProvideAuthConfig,
	ProvideMessagingConfig,
	ProvideObservabilityConfig,
	ProvideTxManagerConfig,
)

// ProvideServiceMetadata returns the resolved ServiceMetadata from the loader.
func ProvideServiceMetadata(l *Loader) ServiceMetadata {
	if l == nil {
		return ServiceMetadata{}
	}
	return l.Service
}

// ProvideRuntimeConfig exposes the strongly typed runtime configuration.
func ProvideRuntimeConfig(l *Loader) RuntimeConfig {
	if l == nil {
		return RuntimeConfig{}
	}
	return l.Runtime
}

// ProvideServerConfig returns the server section.
func ProvideServerConfig(rc RuntimeConfig) ServerConfig { return rc.Server }

// ProvideDatabaseConfig returns the database section.
func ProvideDatabaseConfig(rc RuntimeConfig) DatabaseConfig { return rc.Database }

// ProvideStorageConfig returns the storage section.
func ProvideStorageConfig(rc RuntimeConfig) StorageConfig { return rc.Storage }

// ProvideGCSConfig returns the gcs signer section.
func ProvideGCSConfig(rc RuntimeConfig) GCSConfig { return rc.GCS }

// ProvideUploadConfig returns the upload policy section.
func ProvideUploadConfig(rc RuntimeConfig) UploadConfig { return rc.Upload }

// ProvideAuthConfig returns the auth section.
func ProvideAuthConfig(rc RuntimeConfig) AuthConfig { return rc.Auth }

// ProvideMessagingConfig returns the messaging section.
func ProvideMessagingConfig(rc RuntimeConfig) MessagingConfig { return rc.Messaging }

// ProvideObservabilityConfig exposes the normalized observability configuration.
func ProvideObservabilityConfig(l *Loader) obswire.ObservabilityConfig {
	if l == nil {
		return obswire.ObservabilityConfig{}
	}
	return l.ObsConfig
}

// ProvideTxManagerConfig exposes the txmanager configuration.
func ProvideTxManagerConfig(l *Loader) txmanager.Config {
	if l == nil {
		return txmanager.Config{}
	}
	return l.TxConfig
}
