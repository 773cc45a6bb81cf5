package controllers

import (
	"context"
	"strings"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims 是访问令牌的声明：sub 为用户 UUID，role 为 admin/instructor/student。
type AccessClaims struct {
	jwtv5.RegisteredClaims
	Role string `json:"role"`
}

// Authenticate 返回 HS256 Bearer 令牌校验中间件。
// kratos jwt 中间件的 401 错误统一改写为 UNAUTHENTICATED。
func Authenticate(secret string) middleware.Middleware {
	key := []byte(secret)
	verify := jwt.Server(
		func(*jwtv5.Token) (any, error) { return key, nil },
		jwt.WithSigningMethod(jwtv5.SigningMethodHS256),
		jwt.WithClaims(func() jwtv5.Claims { return &AccessClaims{} }),
	)
	return func(next middleware.Handler) middleware.Handler {
		guarded := verify(next)
		return func(ctx context.Context, req any) (any, error) {
			reply, err := guarded(ctx, req)
			if err != nil {
				if se := kerrors.FromError(err); se != nil && se.Code == 401 && se.Reason != services.ReasonUnauthenticated {
					return nil, services.ErrUnauthenticated(se.Message)
				}
			}
			return reply, err
		}
	}
}

// ActorFromContext 读取 JWT 中间件注入的声明并转换为 services.Actor。
// issuer 非空时要求 iss 完全一致。
func ActorFromContext(ctx context.Context, issuer string) (services.Actor, error) {
	raw, ok := jwt.FromContext(ctx)
	if !ok {
		return services.Actor{}, services.ErrUnauthenticated("missing bearer token")
	}
	claims, ok := raw.(*AccessClaims)
	if !ok {
		return services.Actor{}, services.ErrUnauthenticated("unexpected token claims")
	}
	if issuer != "" && claims.Issuer != issuer {
		return services.Actor{}, services.ErrUnauthenticated("token issuer mismatch")
	}
	id, err := uuid.Parse(strings.TrimSpace(claims.Subject))
	if err != nil || id == uuid.Nil {
		return services.Actor{}, services.ErrUnauthenticated("token subject must be a user id")
	}
	role, ok := services.ParseRole(claims.Role)
	if !ok {
		return services.Actor{}, services.ErrUnauthenticated("token role is missing or unknown")
	}
	return services.Actor{ID: id, Role: role}, nil
}
