package controllers_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type noopTxManager struct{}

type noopSession struct{}

func (noopSession) Tx() pgx.Tx               { return nil }
func (noopSession) Context() context.Context { return context.Background() }

func (noopTxManager) WithinTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, noopSession{})
}

func (noopTxManager) WithinReadOnlyTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, noopSession{})
}

type uploadRows struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*po.UploadSession
}

func (r *uploadRows) Create(_ context.Context, _ txmanager.Session, s *po.UploadSession) (*po.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.CreatedAt, cp.UpdatedAt = time.Now(), time.Now()
	r.rows[s.SessionID] = &cp
	out := cp
	return &out, nil
}

func (r *uploadRows) Get(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrUploadNotFound
	}
	out := *row
	return &out, nil
}

func (r *uploadRows) mutate(id uuid.UUID, want func(po.UploadStatus) bool, apply func(*po.UploadSession)) (*po.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !want(row.Status) {
		return nil, repositories.ErrUploadStateConflict
	}
	apply(row)
	out := *row
	return &out, nil
}

func open(s po.UploadStatus) bool       { return s.IsOpen() }
func processing(s po.UploadStatus) bool { return s == po.UploadStatusProcessing }

func (r *uploadRows) UpdateProgress(_ context.Context, _ txmanager.Session, id uuid.UUID, parts int32, bytes int64) (*po.UploadSession, error) {
	return r.mutate(id, open, func(s *po.UploadSession) {
		s.PartsCompleted, s.BytesUploaded, s.Status = parts, bytes, po.UploadStatusUploading
	})
}

func (r *uploadRows) UpdateURLsExpiry(_ context.Context, _ txmanager.Session, id uuid.UUID, at time.Time) (*po.UploadSession, error) {
	return r.mutate(id, open, func(s *po.UploadSession) { s.URLsExpireAt = &at })
}

func (r *uploadRows) ClaimForCompletion(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.UploadSession, error) {
	return r.mutate(id, open, func(s *po.UploadSession) { s.Status = po.UploadStatusProcessing })
}

func (r *uploadRows) MarkCompleted(_ context.Context, _ txmanager.Session, id, videoID uuid.UUID, at time.Time) (*po.UploadSession, error) {
	return r.mutate(id, processing, func(s *po.UploadSession) {
		s.Status, s.VideoID, s.FinalizedAt = po.UploadStatusCompleted, &videoID, &at
		s.PartsCompleted, s.BytesUploaded = s.PartsTotal, s.FileSizeBytes
	})
}

func (r *uploadRows) MarkFailed(_ context.Context, _ txmanager.Session, id uuid.UUID, msg string, at time.Time) (*po.UploadSession, error) {
	return r.mutate(id, processing, func(s *po.UploadSession) {
		s.Status, s.ErrorMessage, s.FinalizedAt = po.UploadStatusFailed, &msg, &at
	})
}

func (r *uploadRows) MarkAborted(_ context.Context, _ txmanager.Session, id uuid.UUID, at time.Time) (*po.UploadSession, error) {
	return r.mutate(id, open, func(s *po.UploadSession) { s.Status, s.FinalizedAt = po.UploadStatusAborted, &at })
}

type videoRows struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*po.Video
}

func (r *videoRows) Create(_ context.Context, _ txmanager.Session, v *po.Video) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	cp.CreatedAt, cp.UpdatedAt = time.Now(), time.Now()
	r.rows[v.VideoID] = &cp
	out := cp
	return &out, nil
}

func (r *videoRows) Get(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	out := *row
	return &out, nil
}

func (r *videoRows) List(_ context.Context, _ txmanager.Session, params repositories.ListVideosParams) ([]*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*po.Video
	for _, v := range r.rows {
		if params.UploadedBy != nil && v.UploadedBy != *params.UploadedBy {
			continue
		}
		if params.WorkflowStatus != nil && v.WorkflowStatus != *params.WorkflowStatus {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (r *videoRows) UpdateWorkflowStatus(_ context.Context, _ txmanager.Session, id uuid.UUID, from, to po.WorkflowStatus, actorID uuid.UUID, at time.Time) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.WorkflowStatus != from {
		return nil, repositories.ErrVideoStateConflict
	}
	row.WorkflowStatus, row.WorkflowUpdatedBy, row.WorkflowUpdatedAt = to, &actorID, &at
	out := *row
	return &out, nil
}

func (r *videoRows) UpdateAssignment(_ context.Context, _ txmanager.Session, id uuid.UUID, courseID, moduleID, lessonID *uuid.UUID) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	row.CourseID, row.ModuleID, row.LessonID = courseID, moduleID, lessonID
	out := *row
	return &out, nil
}

func (r *videoRows) Delete(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	delete(r.rows, id)
	return row, nil
}

type historyRows struct {
	mu     sync.Mutex
	events []*po.WorkflowEvent
}

func (r *historyRows) Append(_ context.Context, _ txmanager.Session, evt *po.WorkflowEvent) (*po.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *evt
	r.events = append(r.events, &cp)
	return &cp, nil
}

func (r *historyRows) ListByVideo(_ context.Context, _ txmanager.Session, videoID uuid.UUID) ([]*po.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*po.WorkflowEvent
	for _, e := range r.events {
		if e.VideoID == videoID {
			out = append(out, e)
		}
	}
	return out, nil
}

type lessonRows map[uuid.UUID]*po.LessonChain

func (r lessonRows) GetChain(_ context.Context, _ txmanager.Session, lessonID uuid.UUID) (*po.LessonChain, error) {
	chain, ok := r[lessonID]
	if !ok {
		return nil, repositories.ErrLessonNotFound
	}
	return chain, nil
}

// memStore 是最小的 multipart 存储桩，所有分片一律视为已落盘。
type memStore struct {
	mu      sync.Mutex
	uploads int
}

func (s *memStore) Bucket() string { return "course-videos" }

func (s *memStore) CreateMultipartUpload(context.Context, string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	return fmt.Sprintf("upload-%d", s.uploads), nil
}

func (s *memStore) PresignUploadParts(_ context.Context, key, uploadID string, parts []int32, _ time.Duration) ([]vo.PresignedPart, error) {
	out := make([]vo.PresignedPart, 0, len(parts))
	for _, n := range parts {
		out = append(out, vo.PresignedPart{PartNumber: n, URL: fmt.Sprintf("https://store.example/%s?uploadId=%s&partNumber=%d", key, uploadID, n)})
	}
	return out, nil
}

func (s *memStore) CompleteMultipartUpload(context.Context, string, string, []vo.CompletedPart) error {
	return nil
}

func (s *memStore) AbortMultipartUpload(context.Context, string, string) error { return nil }

func (s *memStore) ListParts(context.Context, string, string) ([]vo.StoredPart, error) {
	return nil, nil
}

func (s *memStore) DeleteObject(context.Context, string) error { return nil }

func (s *memStore) PresignGetObject(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://store.example/" + key + "?X-Amz-Signature=sig", nil
}
