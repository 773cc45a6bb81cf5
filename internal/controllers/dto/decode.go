// Package dto 定义 HTTP 请求体结构，并负责将其转换为 Service 层输入。
// 所有解析错误都以 VALIDATION_FAILED 返回。
package dto

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	"github.com/google/uuid"
)

// maxBodyBytes 限制请求体大小，分片清单最多 10000 项。
const maxBodyBytes = 1 << 20

// DecodeStrict 将 JSON 请求体解码到 dst，拒绝未知字段、空请求体与尾随数据。
func DecodeStrict(body io.Reader, dst any) error {
	if body == nil {
		return services.ErrValidation("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.ErrValidation("request body is required")
		}
		return services.ErrValidation("invalid request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return services.ErrValidation("invalid request body: unexpected trailing data")
	}
	return nil
}

// ParseUUID 解析路径或请求体中的 UUID 字段。
func ParseUUID(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, services.ErrValidation("%s is required", field)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, services.ErrValidation("invalid %s", field)
	}
	return id, nil
}

func parseOptionalUUID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := ParseUUID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
