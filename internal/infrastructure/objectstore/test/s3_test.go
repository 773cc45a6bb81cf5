package objectstore_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/objectstore"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

// fakeS3 记录收到的请求，并按最小 XML 协议应答分片上传相关调用。
type fakeS3 struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/xml")
	switch {
	case r.Method == http.MethodPost && q.Has("uploads"):
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<InitiateMultipartUploadResult><Bucket>course-videos</Bucket><Key>videos/a.mp4</Key><UploadId>upload-123</UploadId></InitiateMultipartUploadResult>`)
	case r.Method == http.MethodPost && q.Get("uploadId") != "":
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<CompleteMultipartUploadResult><Bucket>course-videos</Bucket><Key>videos/a.mp4</Key><ETag>"final"</ETag></CompleteMultipartUploadResult>`)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) snapshot() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...), append([]string(nil), f.bodies...)
}

func newStore(t *testing.T, endpoint string) *objectstore.S3Store {
	t.Helper()
	store, err := objectstore.NewS3Store(context.Background(), configloader.StorageConfig{
		Provider:     "minio",
		Region:       "us-east-1",
		Endpoint:     endpoint,
		Bucket:       "course-videos",
		AccessKey:    "minio",
		SecretKey:    "minio-secret",
		UsePathStyle: true,
	}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	return store
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := objectstore.NewS3Store(context.Background(), configloader.StorageConfig{}, log.NewStdLogger(io.Discard))
	require.ErrorIs(t, err, objectstore.ErrNotConfigured)
}

func TestS3Store_PresignUploadParts(t *testing.T) {
	store := newStore(t, "http://minio.local:9000")
	require.Equal(t, "course-videos", store.Bucket())

	parts, err := store.PresignUploadParts(context.Background(), "videos/a.mp4", "upload-123", []int32{1, 2, 3}, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	for i, part := range parts {
		require.EqualValues(t, i+1, part.PartNumber)
		u, err := url.Parse(part.URL)
		require.NoError(t, err)
		require.Equal(t, "minio.local:9000", u.Host)
		require.Equal(t, "/course-videos/videos/a.mp4", u.Path)
		q := u.Query()
		require.Equal(t, "upload-123", q.Get("uploadId"))
		require.Equal(t, []string{"1", "2", "3"}[i], q.Get("partNumber"))
		require.Equal(t, "900", q.Get("X-Amz-Expires"))
		require.NotEmpty(t, q.Get("X-Amz-Signature"))
	}

	getURL, err := store.PresignGetObject(context.Background(), "videos/a.mp4", time.Minute)
	require.NoError(t, err)
	require.Contains(t, getURL, "X-Amz-Expires=60")
}

func TestS3Store_MultipartRoundTrip(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	store := newStore(t, srv.URL)
	ctx := context.Background()

	uploadID, err := store.CreateMultipartUpload(ctx, "videos/a.mp4", "video/mp4")
	require.NoError(t, err)
	require.Equal(t, "upload-123", uploadID)

	// 乱序提交的清单按分片号升序发送
	err = store.CompleteMultipartUpload(ctx, "videos/a.mp4", uploadID, []vo.CompletedPart{
		{PartNumber: 2, ETag: `"etag-2"`},
		{PartNumber: 1, ETag: `"etag-1"`},
	})
	require.NoError(t, err)

	require.NoError(t, store.AbortMultipartUpload(ctx, "videos/a.mp4", uploadID))

	requests, bodies := fake.snapshot()
	require.Len(t, requests, 3)
	require.True(t, strings.HasPrefix(requests[0], "POST /course-videos/videos/a.mp4?"))
	require.Contains(t, requests[0], "uploads")
	require.True(t, strings.HasPrefix(requests[1], "POST /course-videos/videos/a.mp4?"))
	require.Contains(t, requests[1], "uploadId=upload-123")
	require.True(t, strings.HasPrefix(requests[2], "DELETE /course-videos/videos/a.mp4?"))
	require.Contains(t, requests[2], "uploadId=upload-123")
	first := strings.Index(bodies[1], "<PartNumber>1</PartNumber>")
	second := strings.Index(bodies[1], "<PartNumber>2</PartNumber>")
	require.True(t, first >= 0 && second > first, "manifest must be sorted: %s", bodies[1])
}
