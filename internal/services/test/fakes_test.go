package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/events"
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

// memUploadRepo 以内存模拟 upload_sessions 的条件更新语义。
type memUploadRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*po.UploadSession
}

func newMemUploadRepo() *memUploadRepo {
	return &memUploadRepo{rows: make(map[uuid.UUID]*po.UploadSession)}
}

func (r *memUploadRepo) put(s *po.UploadSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.rows[s.SessionID] = &cp
}

func (r *memUploadRepo) Create(_ context.Context, _ txmanager.Session, s *po.UploadSession) (*po.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.SessionID]; ok {
		return nil, fmt.Errorf("duplicate session %s", s.SessionID)
	}
	cp := *s
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	r.rows[s.SessionID] = &cp
	out := cp
	return &out, nil
}

func (r *memUploadRepo) Get(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrUploadNotFound
	}
	out := *row
	return &out, nil
}

func (r *memUploadRepo) mutate(id uuid.UUID, allowed func(po.UploadStatus) bool, apply func(*po.UploadSession)) (*po.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !allowed(row.Status) {
		return nil, repositories.ErrUploadStateConflict
	}
	apply(row)
	row.UpdatedAt = time.Now().UTC()
	out := *row
	return &out, nil
}

func isOpen(s po.UploadStatus) bool       { return s.IsOpen() }
func isProcessing(s po.UploadStatus) bool { return s == po.UploadStatusProcessing }

func (r *memUploadRepo) UpdateProgress(_ context.Context, _ txmanager.Session, id uuid.UUID, parts int32, bytes int64) (*po.UploadSession, error) {
	return r.mutate(id, isOpen, func(s *po.UploadSession) {
		s.PartsCompleted = parts
		s.BytesUploaded = bytes
		s.Status = po.UploadStatusUploading
	})
}

func (r *memUploadRepo) UpdateURLsExpiry(_ context.Context, _ txmanager.Session, id uuid.UUID, expiresAt time.Time) (*po.UploadSession, error) {
	return r.mutate(id, isOpen, func(s *po.UploadSession) { s.URLsExpireAt = &expiresAt })
}

func (r *memUploadRepo) ClaimForCompletion(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.UploadSession, error) {
	return r.mutate(id, isOpen, func(s *po.UploadSession) { s.Status = po.UploadStatusProcessing })
}

func (r *memUploadRepo) MarkCompleted(_ context.Context, _ txmanager.Session, id, videoID uuid.UUID, at time.Time) (*po.UploadSession, error) {
	return r.mutate(id, isProcessing, func(s *po.UploadSession) {
		s.Status = po.UploadStatusCompleted
		s.VideoID = &videoID
		s.PartsCompleted = s.PartsTotal
		s.BytesUploaded = s.FileSizeBytes
		s.FinalizedAt = &at
	})
}

func (r *memUploadRepo) MarkFailed(_ context.Context, _ txmanager.Session, id uuid.UUID, message string, at time.Time) (*po.UploadSession, error) {
	return r.mutate(id, isProcessing, func(s *po.UploadSession) {
		s.Status = po.UploadStatusFailed
		s.ErrorMessage = &message
		s.FinalizedAt = &at
	})
}

func (r *memUploadRepo) MarkAborted(_ context.Context, _ txmanager.Session, id uuid.UUID, at time.Time) (*po.UploadSession, error) {
	return r.mutate(id, isOpen, func(s *po.UploadSession) {
		s.Status = po.UploadStatusAborted
		s.FinalizedAt = &at
	})
}

// memVideoRepo 以内存模拟 videos 表，含 upload_session_id 唯一约束。
type memVideoRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*po.Video
	createErr error
	lastList  repositories.ListVideosParams
}

func newMemVideoRepo() *memVideoRepo {
	return &memVideoRepo{rows: make(map[uuid.UUID]*po.Video)}
}

func (r *memVideoRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memVideoRepo) put(v *po.Video) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.rows[v.VideoID] = &cp
}

func (r *memVideoRepo) Create(_ context.Context, _ txmanager.Session, v *po.Video) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if v.UploadSessionID != nil {
		for _, existing := range r.rows {
			if existing.UploadSessionID != nil && *existing.UploadSessionID == *v.UploadSessionID {
				return nil, repositories.ErrVideoAlreadyExists
			}
		}
	}
	cp := *v
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	r.rows[v.VideoID] = &cp
	out := cp
	return &out, nil
}

func (r *memVideoRepo) Get(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	out := *row
	return &out, nil
}

func (r *memVideoRepo) List(_ context.Context, _ txmanager.Session, params repositories.ListVideosParams) ([]*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastList = params
	var out []*po.Video
	for _, v := range r.rows {
		if params.UploadedBy != nil && v.UploadedBy != *params.UploadedBy {
			continue
		}
		if params.WorkflowStatus != nil && v.WorkflowStatus != *params.WorkflowStatus {
			continue
		}
		if params.LessonID != nil && (v.LessonID == nil || *v.LessonID != *params.LessonID) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *memVideoRepo) UpdateWorkflowStatus(_ context.Context, _ txmanager.Session, id uuid.UUID, from, to po.WorkflowStatus, actorID uuid.UUID, at time.Time) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.WorkflowStatus != from {
		return nil, repositories.ErrVideoStateConflict
	}
	row.WorkflowStatus = to
	row.WorkflowUpdatedBy = &actorID
	row.WorkflowUpdatedAt = &at
	out := *row
	return &out, nil
}

func (r *memVideoRepo) UpdateAssignment(_ context.Context, _ txmanager.Session, id uuid.UUID, courseID, moduleID, lessonID *uuid.UUID) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	row.CourseID, row.ModuleID, row.LessonID = courseID, moduleID, lessonID
	row.UpdatedAt = time.Now().UTC()
	out := *row
	return &out, nil
}

func (r *memVideoRepo) Delete(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	delete(r.rows, id)
	return row, nil
}

type memHistoryRepo struct {
	mu     sync.Mutex
	events []*po.WorkflowEvent
}

func (r *memHistoryRepo) Append(_ context.Context, _ txmanager.Session, evt *po.WorkflowEvent) (*po.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *evt
	cp.EventID = int64(len(r.events) + 1)
	r.events = append(r.events, &cp)
	return &cp, nil
}

func (r *memHistoryRepo) ListByVideo(_ context.Context, _ txmanager.Session, videoID uuid.UUID) ([]*po.WorkflowEvent, error) {
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

type memLessonRepo struct {
	chains map[uuid.UUID]*po.LessonChain
}

func (r *memLessonRepo) GetChain(_ context.Context, _ txmanager.Session, lessonID uuid.UUID) (*po.LessonChain, error) {
	chain, ok := r.chains[lessonID]
	if !ok {
		return nil, repositories.ErrLessonNotFound
	}
	return chain, nil
}

// fakeStore 模拟 S3 multipart 接口，记录调用以便断言。
type fakeStore struct {
	mu          sync.Mutex
	bucket      string
	uploads     map[string]string // uploadID -> key
	stored      map[string][]vo.StoredPart
	completed   map[string][]vo.CompletedPart
	aborted     []string
	deleted     []string
	presigned   [][]int32
	createErr   error
	presignErr  error
	completeErr error
	abortErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bucket:    "course-videos",
		uploads:   make(map[string]string),
		stored:    make(map[string][]vo.StoredPart),
		completed: make(map[string][]vo.CompletedPart),
	}
}

func (f *fakeStore) Bucket() string { return f.bucket }

func (f *fakeStore) CreateMultipartUpload(_ context.Context, key, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	id := fmt.Sprintf("upload-%d", len(f.uploads)+1)
	f.uploads[id] = key
	return id, nil
}

func (f *fakeStore) PresignUploadParts(_ context.Context, key, uploadID string, partNumbers []int32, _ time.Duration) ([]vo.PresignedPart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	f.presigned = append(f.presigned, append([]int32(nil), partNumbers...))
	out := make([]vo.PresignedPart, 0, len(partNumbers))
	for _, n := range partNumbers {
		out = append(out, vo.PresignedPart{PartNumber: n, URL: fmt.Sprintf("https://store.example/%s?uploadId=%s&partNumber=%d", key, uploadID, n)})
	}
	return out, nil
}

func (f *fakeStore) CompleteMultipartUpload(_ context.Context, _ string, uploadID string, parts []vo.CompletedPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed[uploadID] = append([]vo.CompletedPart(nil), parts...)
	return nil
}

func (f *fakeStore) AbortMultipartUpload(_ context.Context, _ string, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.abortErr != nil {
		return f.abortErr
	}
	f.aborted = append(f.aborted, uploadID)
	return nil
}

func (f *fakeStore) ListParts(_ context.Context, _ string, uploadID string) ([]vo.StoredPart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vo.StoredPart(nil), f.stored[uploadID]...), nil
}

func (f *fakeStore) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) PresignGetObject(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://store.example/" + key + "?X-Amz-Signature=sig", nil
}

type fakeSigner struct {
	calls int
}

func (s *fakeSigner) SignedGetURL(_ context.Context, bucket, object string, ttl time.Duration) (string, time.Time, error) {
	s.calls++
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?X-Goog-Signature=sig", time.Now().Add(ttl), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt *events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }
