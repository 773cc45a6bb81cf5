// Package gcs 为托管在 GCS 上的课程视频生成 V4 签名播放地址。
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/oauth2/google"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
)

// PlaybackSigner 以 service account 私钥离线签名只读 GET 地址，签名过程不访问网络。
type PlaybackSigner struct {
	accessID string
	key      []byte
	clock    func() time.Time
	log      *log.Helper
}

// Option 调整 PlaybackSigner。
type Option func(*PlaybackSigner)

// WithClock 替换时钟。
func WithClock(clock func() time.Time) Option {
	return func(s *PlaybackSigner) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithServiceAccountKey 直接注入签名身份与 PEM 私钥，跳过默认凭据探测。
func WithServiceAccountKey(accessID string, privateKey []byte) Option {
	return func(s *PlaybackSigner) {
		if accessID != "" {
			s.accessID = accessID
		}
		if len(privateKey) > 0 {
			s.key = append([]byte(nil), privateKey...)
		}
	}
}

// NewPlaybackSigner 构造签名器。未注入私钥时从 Application Default Credentials 读取
// service account JSON；accessID 为空时采用凭据中的 client_email。
func NewPlaybackSigner(ctx context.Context, accessID string, logger log.Logger, opts ...Option) (*PlaybackSigner, error) {
	s := &PlaybackSigner{accessID: accessID, clock: time.Now, log: log.NewHelper(logger)}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.key) == 0 {
		key, email, err := defaultServiceAccount(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs signer: %w", err)
		}
		s.key = key
		switch {
		case s.accessID == "":
			s.accessID = email
		case email != "" && email != s.accessID:
			s.log.WithContext(ctx).Warnf("gcs signer identity differs from credentials: configured=%s credentials=%s", s.accessID, email)
		}
	}
	if s.accessID == "" {
		return nil, errors.New("gcs signer: signer service account is required")
	}
	return s, nil
}

// ProvidePlaybackSigner 使用 gcs.signer_service_account 构造签名器。
func ProvidePlaybackSigner(ctx context.Context, cfg configloader.GCSConfig, logger log.Logger) (*PlaybackSigner, error) {
	return NewPlaybackSigner(ctx, cfg.SignerServiceAccount, logger)
}

// SignedGetURL 返回 bucket/objectName 的限时播放地址及其过期时间。
func (s *PlaybackSigner) SignedGetURL(ctx context.Context, bucket, objectName string, ttl time.Duration) (string, time.Time, error) {
	switch {
	case bucket == "":
		return "", time.Time{}, errors.New("gcs signer: bucket is required")
	case objectName == "":
		return "", time.Time{}, errors.New("gcs signer: object name is required")
	case ttl <= 0:
		return "", time.Time{}, errors.New("gcs signer: ttl must be positive")
	}

	expiresAt := s.clock().Add(ttl).UTC()
	signed, err := storage.SignedURL(bucket, objectName, &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        expiresAt,
		GoogleAccessID: s.accessID,
		PrivateKey:     s.key,
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("sign playback url failed: bucket=%s object=%s err=%v", bucket, objectName, err)
		return "", time.Time{}, fmt.Errorf("gcs signer: %w", err)
	}
	return signed, expiresAt, nil
}

func defaultServiceAccount(ctx context.Context) ([]byte, string, error) {
	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeReadOnly)
	if err != nil {
		return nil, "", fmt.Errorf("find default credentials: %w", err)
	}
	if len(creds.JSON) == 0 {
		return nil, "", errors.New("default credentials carry no service account JSON")
	}
	var sa struct {
		PrivateKey  string `json:"private_key"`
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(creds.JSON, &sa); err != nil {
		return nil, "", fmt.Errorf("decode service account JSON: %w", err)
	}
	if sa.PrivateKey == "" {
		return nil, "", errors.New("credentials are not a service account key")
	}
	return []byte(sa.PrivateKey), sa.ClientEmail, nil
}
