// Package database 负责 PostgreSQL 连接池的初始化、Schema 迁移与生命周期管理。
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
)

// requiredTables 是服务启动所依赖的表，缺失时说明迁移未执行。
var requiredTables = []string{
	"upload_sessions",
	"videos",
	"video_workflow_events",
	"lessons",
}

// NewPgxPool 创建连接池：可选地先执行内嵌迁移，再做连通性与 Schema 检查。
// 返回的 cleanup 关闭连接池。
func NewPgxPool(ctx context.Context, cfg configloader.DatabaseConfig, logger log.Logger) (*pgxpool.Pool, func(), error) {
	helper := log.NewHelper(logger)

	if cfg.DSN == "" {
		return nil, nil, errors.New("postgres DSN is required (set DATABASE_URL)")
	}
	poolConfig, err := poolConfigFrom(cfg, helper)
	if err != nil {
		return nil, nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(cfg.DSN, logger); err != nil {
			return nil, nil, err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create postgres pool: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "coursevideo"
	}
	if err := verifySchema(ctx, pool, schema); err != nil {
		pool.Close()
		return nil, nil, err
	}

	helper.Infof("postgres pool ready: dsn=%s max_conns=%d schema=%s auto_migrate=%v",
		sanitizeDSN(cfg.DSN), poolConfig.MaxConns, schema, cfg.AutoMigrate)

	return pool, func() {
		helper.Info("closing postgres pool")
		pool.Close()
	}, nil
}

func poolConfigFrom(cfg configloader.DatabaseConfig, helper *log.Helper) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MinOpenConns > 0 {
		poolConfig.MinConns = cfg.MinOpenConns
	}
	if d := cfg.MaxConnLifetime.Std(); d > 0 {
		poolConfig.MaxConnLifetime = d
	}
	if d := cfg.MaxConnIdleTime.Std(); d > 0 {
		poolConfig.MaxConnIdleTime = d
	}
	if d := cfg.HealthCheckPeriod.Std(); d > 0 {
		poolConfig.HealthCheckPeriod = d
	}
	if !cfg.EnablePreparedStatements {
		// pgbouncer 事务池模式下不能使用 prepared statements
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	poolConfig.ConnConfig.Tracer = &queryTracer{helper: helper}
	return poolConfig, nil
}

// verifySchema 在启动期 Ping 数据库，并确认业务表已存在。
func verifySchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	for _, table := range requiredTables {
		var found *string
		qualified := pgx.Identifier{schema, table}.Sanitize()
		if err := pool.QueryRow(checkCtx, `SELECT to_regclass($1)::text`, qualified).Scan(&found); err != nil {
			return fmt.Errorf("inspect table %s: %w", qualified, err)
		}
		if found == nil {
			return fmt.Errorf("table %s is missing; run cmd/migrate or set database.auto_migrate", qualified)
		}
	}
	return nil
}

// sanitizeDSN 隐藏 DSN 中的密码。
func sanitizeDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "<unparseable dsn>"
	}
	if parsed.User != nil {
		if _, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(parsed.User.Username(), "***")
		}
	}
	return parsed.String()
}

type queryStartKey struct{}

// queryTracer 把失败与慢查询转发到 Kratos Logger，不记录 SQL 参数。
type queryTracer struct {
	helper *log.Helper
}

const slowQueryThreshold = 500 * time.Millisecond

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	var elapsed time.Duration
	if started, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(started)
	}
	switch {
	case data.Err != nil && !errors.Is(data.Err, context.Canceled):
		t.helper.WithContext(ctx).Errorf("postgres query failed: err=%v command_tag=%s elapsed=%s", data.Err, data.CommandTag, elapsed)
	case elapsed > slowQueryThreshold:
		t.helper.WithContext(ctx).Warnf("postgres slow query: command_tag=%s elapsed=%s", data.CommandTag, elapsed)
	}
}
