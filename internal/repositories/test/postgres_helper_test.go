package repositories_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/database"
	"github.com/docker/go-connections/nat"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres 启动一次性 Postgres 容器；Docker 不可用时跳过测试。
func startPostgres(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "coursevideo",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://postgres:postgres@%s:%s/coursevideo?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skip integration: cannot start postgres container: %v", err)
		return "", func() {}
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/coursevideo?sslmode=disable", host, port.Port())
	cleanup := func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(termCtx)
	}
	return dsn, cleanup
}

// openMigratedPool 启动容器、执行内嵌迁移并返回连接池。
func openMigratedPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn, terminate := startPostgres(ctx, t)
	t.Cleanup(terminate)

	require.NoError(t, database.Migrate(dsn, log.NewStdLogger(io.Discard)))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// seedLesson 写入一条 course → module → lesson 链路，返回 (courseID, moduleID, lessonID)。
func seedLesson(ctx context.Context, t *testing.T, pool *pgxpool.Pool, instructorID uuid.UUID) (uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()

	courseID, moduleID, lessonID := uuid.New(), uuid.New(), uuid.New()
	_, err := pool.Exec(ctx, `INSERT INTO coursevideo.courses (course_id, instructor_id, title) VALUES ($1, $2, 'Go 101')`, courseID, instructorID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO coursevideo.course_modules (module_id, course_id, title) VALUES ($1, $2, 'Basics')`, moduleID, courseID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO coursevideo.lessons (lesson_id, module_id, title) VALUES ($1, $2, 'Intro')`, lessonID, moduleID)
	require.NoError(t, err)
	return courseID, moduleID, lessonID
}
