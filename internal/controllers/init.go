// Package controllers 实现 HTTP 传输层：解析请求、解析调用者身份、调用 Service 并渲染响应。
package controllers

import (
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"

	"github.com/google/wire"
)

// ProviderSet exposes controller/handler constructors for DI.
var ProviderSet = wire.NewSet(
	ProvideBaseHandler,
	NewUploadHandler,
	NewVideoHandler,
)

// ProvideBaseHandler 以 server.http.timeout 作为命令与查询的统一超时，并绑定 JWT issuer。
func ProvideBaseHandler(server configloader.ServerConfig, auth configloader.AuthConfig) *BaseHandler {
	timeout := server.HTTP.Timeout.Std()
	return NewBaseHandler(HandlerTimeouts{Default: timeout, Command: timeout, Query: timeout}).WithIssuer(auth.Issuer)
}
