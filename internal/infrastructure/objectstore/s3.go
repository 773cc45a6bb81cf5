// Package objectstore 封装 S3 兼容对象存储（AWS S3、MinIO、GCS XML 互操作端点）的分片上传能力。
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
)

// ErrNotConfigured 表示 storage.bucket 未配置。
var ErrNotConfigured = errors.New("objectstore: bucket is not configured")

// S3Store 基于 aws-sdk-go-v2 实现分片上传、预签名与对象删除。
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	log     *log.Helper
}

// NewS3Store 按 storage 配置创建客户端。AK/SK 为空时回退到默认凭据链。
func NewS3Store(ctx context.Context, cfg configloader.StorageConfig, logger log.Logger) (*S3Store, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		log:     log.NewHelper(logger),
	}, nil
}

// Bucket 返回目标桶名。
func (s *S3Store) Bucket() string {
	return s.bucket
}

// CreateMultipartUpload 创建分片上传并返回 upload id。
func (s *S3Store) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("create multipart upload failed: bucket=%s key=%s err=%v", s.bucket, key, err)
		return "", fmt.Errorf("create multipart upload: %w", err)
	}
	if out.UploadId == nil || *out.UploadId == "" {
		return "", errors.New("create multipart upload: empty upload id")
	}
	return *out.UploadId, nil
}

// PresignUploadParts 为给定分片号逐个生成预签名 PUT 地址。
func (s *S3Store) PresignUploadParts(ctx context.Context, key, uploadID string, partNumbers []int32, ttl time.Duration) ([]vo.PresignedPart, error) {
	parts := make([]vo.PresignedPart, 0, len(partNumbers))
	for _, n := range partNumbers {
		req, err := s.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(n),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			s.log.WithContext(ctx).Errorf("presign upload part failed: key=%s part=%d err=%v", key, n, err)
			return nil, fmt.Errorf("presign part %d: %w", n, err)
		}
		parts = append(parts, vo.PresignedPart{PartNumber: n, URL: req.URL})
	}
	return parts, nil
}

// CompleteMultipartUpload 以分片号升序提交清单，组装最终对象。
func (s *S3Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []vo.CompletedPart) error {
	sorted := append([]vo.CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	completed := make([]types.CompletedPart, 0, len(sorted))
	for _, p := range sorted {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("complete multipart upload failed: key=%s upload_id=%s err=%v", key, uploadID, err)
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}

// AbortMultipartUpload 放弃分片上传并释放已上传分片。
func (s *S3Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("abort multipart upload failed: key=%s upload_id=%s err=%v", key, uploadID, err)
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

// ListParts 分页列出已上传的分片。
func (s *S3Store) ListParts(ctx context.Context, key, uploadID string) ([]vo.StoredPart, error) {
	var (
		parts  []vo.StoredPart
		marker *string
	)
	for {
		out, err := s.client.ListParts(ctx, &s3.ListPartsInput{
			Bucket:           aws.String(s.bucket),
			Key:              aws.String(key),
			UploadId:         aws.String(uploadID),
			PartNumberMarker: marker,
		})
		if err != nil {
			s.log.WithContext(ctx).Errorf("list parts failed: key=%s upload_id=%s err=%v", key, uploadID, err)
			return nil, fmt.Errorf("list parts: %w", err)
		}
		for _, p := range out.Parts {
			parts = append(parts, vo.StoredPart{
				PartNumber: aws.ToInt32(p.PartNumber),
				ETag:       aws.ToString(p.ETag),
				Size:       aws.ToInt64(p.Size),
			})
		}
		if !aws.ToBool(out.IsTruncated) || out.NextPartNumberMarker == nil {
			break
		}
		marker = out.NextPartNumberMarker
	}
	return parts, nil
}

// DeleteObject 删除已组装完成的对象。
func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PresignGetObject 生成限时 GET 地址，用于播放。
func (s *S3Store) PresignGetObject(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return req.URL, nil
}
