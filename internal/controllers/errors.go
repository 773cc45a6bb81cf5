package controllers

import (
	"net/http"
	"strings"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// ErrorBody 是所有失败响应的 JSON 结构。Allowed 仅在非法状态迁移时出现。
type ErrorBody struct {
	Error   string   `json:"error"`
	Reason  string   `json:"reason"`
	Allowed []string `json:"allowed,omitempty"`
}

// NewErrorBody 将任意错误转换为响应体与 HTTP 状态码。未归类的错误不回显内部信息。
func NewErrorBody(err error) (int, ErrorBody) {
	se := kerrors.FromError(err)
	if se == nil {
		return http.StatusInternalServerError, ErrorBody{Error: "internal error", Reason: services.ReasonInternal}
	}
	code := int(se.Code)
	if se.Reason == "" || code < 400 || code > 599 {
		return http.StatusInternalServerError, ErrorBody{Error: "internal error", Reason: services.ReasonInternal}
	}
	body := ErrorBody{Error: se.Message, Reason: se.Reason}
	if se.Reason == services.ReasonInvalidTransition {
		body.Allowed = splitAllowed(se.Metadata[services.MetadataKeyAllowedTargets])
	}
	return code, body
}

// EncodeError 是 kratos HTTP ErrorEncoder，按请求协商的 codec 输出 ErrorBody。
func EncodeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := NewErrorBody(err)
	codec, _ := khttp.CodecForRequest(r, "Accept")
	payload, mErr := codec.Marshal(body)
	if mErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/"+codec.Name())
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}

func splitAllowed(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}
