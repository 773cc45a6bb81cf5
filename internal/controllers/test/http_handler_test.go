package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/controllers"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/views"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "lingo-auth"
	mib        = int64(1024 * 1024)
)

type apiFixture struct {
	t       *testing.T
	srv     *khttp.Server
	videos  *videoRows
	lessons lessonRows
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	uploads := &uploadRows{rows: map[uuid.UUID]*po.UploadSession{}}
	videos := &videoRows{rows: map[uuid.UUID]*po.Video{}}
	history := &historyRows{}
	lessons := lessonRows{}
	store := &memStore{}

	uploadSvc, err := services.NewUploadService(uploads, videos, store, noopTxManager{}, nil, services.UploadPolicy{
		PartSizeBytes: 5 * mib,
		PresignTTL:    time.Hour,
	}, logger)
	require.NoError(t, err)
	workflowSvc := services.NewWorkflowService(videos, history, noopTxManager{}, nil, logger)
	videoSvc := services.NewVideoService(videos, store, nil, nil, services.PlaybackPolicy{TTL: time.Minute}, logger)
	chain := services.NewLessonChainVerifier(lessons, logger)

	base := controllers.NewBaseHandler(controllers.HandlerTimeouts{Default: 2 * time.Second}).WithIssuer(testIssuer)
	srv := khttp.NewServer(
		khttp.Middleware(controllers.Authenticate(testSecret)),
		khttp.ErrorEncoder(controllers.EncodeError),
	)
	controllers.NewUploadHandler(base, uploadSvc, chain).RegisterRoutes(srv)
	controllers.NewVideoHandler(base, videoSvc, workflowSvc, chain).RegisterRoutes(srv)

	return &apiFixture{t: t, srv: srv, videos: videos, lessons: lessons}
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	claims := controllers.AccessClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    testIssuer,
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *apiFixture) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, reason string) controllers.ErrorBody {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[controllers.ErrorBody](t, rec)
	require.Equal(t, reason, body.Reason)
	require.NotEmpty(t, body.Error)
	return body
}

func TestHTTP_UploadLifecycleAndWorkflow(t *testing.T) {
	f := newAPIFixture(t)
	instructorID := uuid.New()
	instructor := token(t, instructorID, "instructor")
	admin := token(t, uuid.New(), "admin")

	rec := f.do(http.MethodPost, "/v1/uploads", instructor, map[string]any{
		"filename":        "lecture 01.mp4",
		"file_size_bytes": 52428800,
		"mime_type":       "video/mp4",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decode[views.UploadTicket](t, rec)
	require.EqualValues(t, 10, ticket.PartsTotal)
	require.Len(t, ticket.Parts, 10)
	require.Equal(t, "pending", ticket.Status)

	sessionPath := "/v1/uploads/" + ticket.SessionID
	rec = f.do(http.MethodPatch, sessionPath, instructor, map[string]any{"parts_completed": 10, "bytes_uploaded": 52428800})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "uploading", decode[views.UploadSession](t, rec).Status)

	rec = f.do(http.MethodPatch, sessionPath, instructor, map[string]any{"parts_completed": 11, "bytes_uploaded": 1})
	requireError(t, rec, http.StatusBadRequest, services.ReasonValidationFailed)

	parts := make([]map[string]any, 0, 10)
	for i := 1; i <= 10; i++ {
		parts = append(parts, map[string]any{"PartNumber": i, "ETag": fmt.Sprintf("\"etag-%d\"", i)})
	}
	rec = f.do(http.MethodPost, sessionPath+"/complete", instructor, map[string]any{"parts": parts, "title": "Lecture 1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decode[views.CompletedUpload](t, rec)
	require.Equal(t, "completed", completed.Session.Status)
	require.Equal(t, "draft", completed.Video.WorkflowStatus)
	require.Equal(t, "Lecture 1", completed.Video.Title)

	rec = f.do(http.MethodPost, sessionPath+"/complete", instructor, map[string]any{"parts": parts})
	requireError(t, rec, http.StatusBadRequest, services.ReasonUploadNotCompletable)
	require.Len(t, f.videos.rows, 1)

	statusPath := "/v1/videos/" + completed.Video.VideoID + "/status"
	rec = f.do(http.MethodPatch, statusPath, instructor, map[string]any{"status": "review"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPatch, statusPath, instructor, map[string]any{"status": "published"})
	requireError(t, rec, http.StatusForbidden, services.ReasonForbidden)

	rec = f.do(http.MethodPatch, statusPath, admin, map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPatch, statusPath, admin, map[string]any{"status": "draft"})
	body := requireError(t, rec, http.StatusBadRequest, services.ReasonInvalidTransition)
	require.Equal(t, []string{"review", "published"}, body.Allowed)

	rec = f.do(http.MethodGet, "/v1/videos/"+completed.Video.VideoID+"/history", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[views.WorkflowHistory](t, rec)
	require.Len(t, history.Events, 2)
	require.Equal(t, "admin", history.Events[1].ActorRole)

	rec = f.do(http.MethodGet, "/v1/videos/"+completed.Video.VideoID, instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	detail := decode[views.VideoDetail](t, rec)
	require.NotNil(t, detail.PlaybackURL)
	require.Equal(t, []string{"review"}, detail.AllowedTransitions)
}

func TestHTTP_CancelUpload(t *testing.T) {
	f := newAPIFixture(t)
	instructor := token(t, uuid.New(), "instructor")

	rec := f.do(http.MethodPost, "/v1/uploads", instructor, map[string]any{
		"filename": "a.mp4", "file_size_bytes": 1024, "mime_type": "video/mp4",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decode[views.UploadTicket](t, rec)

	rec = f.do(http.MethodPost, "/v1/uploads/"+ticket.SessionID+"/abort", token(t, uuid.New(), "instructor"), nil)
	requireError(t, rec, http.StatusForbidden, services.ReasonForbidden)

	rec = f.do(http.MethodPost, "/v1/uploads/"+ticket.SessionID+"/abort", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "aborted", decode[views.UploadSession](t, rec).Status)

	rec = f.do(http.MethodGet, "/v1/uploads/"+ticket.SessionID, instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, f.videos.rows)
}

func TestHTTP_AuthenticationAndDecoding(t *testing.T) {
	f := newAPIFixture(t)
	instructor := token(t, uuid.New(), "instructor")
	valid := map[string]any{"filename": "a.mp4", "file_size_bytes": 1024, "mime_type": "video/mp4"}

	requireError(t, f.do(http.MethodPost, "/v1/uploads", "", valid), http.StatusUnauthorized, services.ReasonUnauthenticated)
	requireError(t, f.do(http.MethodPost, "/v1/uploads", "not-a-jwt", valid), http.StatusUnauthorized, services.ReasonUnauthenticated)

	forged, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, controllers.AccessClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{Subject: uuid.NewString(), Issuer: testIssuer},
		Role:             "admin",
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	requireError(t, f.do(http.MethodPost, "/v1/uploads", forged, valid), http.StatusUnauthorized, services.ReasonUnauthenticated)

	requireError(t, f.do(http.MethodPost, "/v1/uploads", instructor, `{"filename":"a.mp4","file_size_bytes":1,"mime_type":"video/mp4","extra":true}`), http.StatusBadRequest, services.ReasonValidationFailed)
	requireError(t, f.do(http.MethodPost, "/v1/uploads", instructor, `{"filename":"a.mp4","mime_type":"video/mp4"}`), http.StatusBadRequest, services.ReasonValidationFailed)
	requireError(t, f.do(http.MethodPost, "/v1/uploads", instructor, ""), http.StatusBadRequest, services.ReasonValidationFailed)
	requireError(t, f.do(http.MethodGet, "/v1/uploads/not-a-uuid", instructor, nil), http.StatusBadRequest, services.ReasonValidationFailed)
	requireError(t, f.do(http.MethodGet, "/v1/uploads/"+uuid.NewString(), instructor, nil), http.StatusNotFound, services.ReasonUploadNotFound)

	withHints := map[string]any{
		"filename": "a.mp4", "file_size_bytes": 1024, "mime_type": "video/mp4",
		"course_id": uuid.NewString(), "module_id": uuid.NewString(), "lesson_id": uuid.NewString(),
	}
	requireError(t, f.do(http.MethodPost, "/v1/uploads", token(t, uuid.New(), "student"), withHints), http.StatusForbidden, services.ReasonForbidden)
}

func TestHTTP_AssignVideoVerifiesLessonChain(t *testing.T) {
	f := newAPIFixture(t)
	ownerID := uuid.New()
	owner := token(t, ownerID, "instructor")
	video := &po.Video{VideoID: uuid.New(), Title: "Clip", UploadedBy: ownerID, WorkflowStatus: po.WorkflowReview}
	f.videos.rows[video.VideoID] = video
	chain := &po.LessonChain{LessonID: uuid.New(), ModuleID: uuid.New(), CourseID: uuid.New(), InstructorID: ownerID}
	f.lessons[chain.LessonID] = chain

	path := "/v1/videos/" + video.VideoID.String() + "/assign"
	payload := map[string]any{
		"course_id": chain.CourseID.String(),
		"module_id": chain.ModuleID.String(),
		"lesson_id": chain.LessonID.String(),
	}

	wrongModule := map[string]any{
		"course_id": chain.CourseID.String(),
		"module_id": uuid.NewString(),
		"lesson_id": chain.LessonID.String(),
	}
	requireError(t, f.do(http.MethodPost, path, owner, wrongModule), http.StatusBadRequest, services.ReasonValidationFailed)

	unknown := map[string]any{
		"course_id": chain.CourseID.String(),
		"module_id": chain.ModuleID.String(),
		"lesson_id": uuid.NewString(),
	}
	requireError(t, f.do(http.MethodPost, path, owner, unknown), http.StatusNotFound, services.ReasonLessonNotFound)

	rec := f.do(http.MethodPost, path, owner, payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assigned := decode[views.Video](t, rec)
	require.Equal(t, chain.LessonID.String(), *assigned.LessonID)
	require.Equal(t, "review", assigned.WorkflowStatus)

	rec = f.do(http.MethodDelete, path, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Nil(t, decode[views.Video](t, rec).LessonID)
}

func TestHTTP_ListRegisterAndDeleteVideos(t *testing.T) {
	f := newAPIFixture(t)
	adminID := uuid.New()
	admin := token(t, adminID, "admin")
	student := token(t, uuid.New(), "student")

	rec := f.do(http.MethodPost, "/v1/videos", student, map[string]any{
		"title": "Guest", "external_url": "https://cdn.example.com/g.mp4", "mime_type": "video/mp4",
	})
	requireError(t, rec, http.StatusForbidden, services.ReasonForbidden)

	rec = f.do(http.MethodPost, "/v1/videos", admin, map[string]any{
		"title": "Guest", "external_url": "https://cdn.example.com/g.mp4", "mime_type": "video/mp4",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[views.Video](t, rec)
	require.Equal(t, "g.mp4", created.OriginalFilename)

	rec = f.do(http.MethodGet, "/v1/videos?status=published", student, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Empty(t, decode[views.VideoList](t, rec).Videos)

	rec = f.do(http.MethodGet, "/v1/videos", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[views.VideoList](t, rec).Videos, 1)

	requireError(t, f.do(http.MethodGet, "/v1/videos?limit=abc", admin, nil), http.StatusBadRequest, services.ReasonValidationFailed)
	requireError(t, f.do(http.MethodGet, "/v1/videos?status=archived", admin, nil), http.StatusBadRequest, services.ReasonValidationFailed)

	rec = f.do(http.MethodDelete, "/v1/videos/"+created.VideoID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	requireError(t, f.do(http.MethodGet, "/v1/videos/"+created.VideoID, admin, nil), http.StatusNotFound, services.ReasonVideoNotFound)
}
