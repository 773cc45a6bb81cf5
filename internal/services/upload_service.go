package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/events"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/vo"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const maxFilenameLength = 200

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadPolicy 是分片上传的策略参数，来源于 upload 配置节点。
type UploadPolicy struct {
	PartSizeBytes     int64
	MaxFileSizeBytes  int64 // 0 表示不限制
	PresignTTL        time.Duration
	AllowedMimeTypes  []string // 为空表示接受任意非空类型
	ReconcileProgress bool
}

// InitiateUploadInput 为 InitiateUpload 的输入。
type InitiateUploadInput struct {
	Filename      string
	FileSizeBytes int64
	MimeType      string
	Title         string
	CourseID      *uuid.UUID
	ModuleID      *uuid.UUID
	LessonID      *uuid.UUID
}

// HasAssociation 判断是否携带了课程关联提示。
func (in InitiateUploadInput) HasAssociation() bool {
	return in.CourseID != nil || in.ModuleID != nil || in.LessonID != nil
}

// CompleteUploadInput 为 CompleteUpload 的输入。
type CompleteUploadInput struct {
	SessionID   uuid.UUID
	Parts       []vo.CompletedPart
	Title       *string
	Description *string
	Tags        []string
}

// UploadService 管理分片上传会话的完整生命周期。
type UploadService struct {
	uploads   UploadRepositoryContract
	videos    VideoRepositoryContract
	store     MultipartStore
	txManager txmanager.Manager
	publisher EventPublisher
	policy    UploadPolicy
	allowed   map[string]struct{}
	log       *log.Helper
	now       func() time.Time
}

// NewUploadService 创建 UploadService。store 可为 nil（对象存储未配置），此时所有需要存储的操作返回 503。
func NewUploadService(uploads UploadRepositoryContract, videos VideoRepositoryContract, store MultipartStore, tx txmanager.Manager, publisher EventPublisher, policy UploadPolicy, logger log.Logger) (*UploadService, error) {
	switch {
	case uploads == nil:
		return nil, errors.New("upload service: upload repository is required")
	case videos == nil:
		return nil, errors.New("upload service: video repository is required")
	case tx == nil:
		return nil, errors.New("upload service: tx manager is required")
	case policy.PartSizeBytes <= 0:
		return nil, errors.New("upload service: part size must be positive")
	case policy.PresignTTL <= 0:
		return nil, errors.New("upload service: presign ttl must be positive")
	}

	allowed := make(map[string]struct{}, len(policy.AllowedMimeTypes))
	for _, mt := range policy.AllowedMimeTypes {
		if mt = strings.ToLower(strings.TrimSpace(mt)); mt != "" {
			allowed[mt] = struct{}{}
		}
	}

	return &UploadService{
		uploads:   uploads,
		videos:    videos,
		store:     store,
		txManager: tx,
		publisher: publisher,
		policy:    policy,
		allowed:   allowed,
		log:       log.NewHelper(logger),
		now:       time.Now,
	}, nil
}

// PartsForSize 计算给定文件大小在固定分片策略下需要的分片数（向上取整）。
// 结果保持 int64，调用方在与分片上限比较之后再收窄。
func PartsForSize(fileSizeBytes, partSizeBytes int64) int64 {
	if fileSizeBytes <= 0 || partSizeBytes <= 0 {
		return 0
	}
	return (fileSizeBytes-1)/partSizeBytes + 1
}

// StorageKey 生成分片上传的目标对象键：videos/{userId}/{sessionId}/{文件名}。
func StorageKey(userID, sessionID uuid.UUID, filename string) string {
	return fmt.Sprintf("videos/%s/%s/%s", userID, sessionID, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = strings.Trim(unsafeKeyChars.ReplaceAllString(base, "_"), "._")
	if len(base) > maxFilenameLength {
		base = base[len(base)-maxFilenameLength:]
	}
	if base == "" {
		return "upload"
	}
	return base
}

// InitiateUpload 创建分片上传：申请 multipart 句柄、为每个分片签发 PUT 地址并持久化 pending 会话。
func (s *UploadService) InitiateUpload(ctx context.Context, actor Actor, input InitiateUploadInput) (*vo.UploadTicket, error) {
	if s.store == nil {
		return nil, ErrStorageNotConfigured()
	}
	if !actor.valid() {
		return nil, ErrUnauthenticated("caller identity is required")
	}

	filename := strings.TrimSpace(input.Filename)
	mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
	if err := s.validateInitiate(filename, mimeType, input); err != nil {
		return nil, err
	}

	parts64 := PartsForSize(input.FileSizeBytes, s.policy.PartSizeBytes)
	if parts64 > configloader.MaxPartsPerUpload {
		return nil, ErrValidation("file requires %d parts, the limit is %d", parts64, configloader.MaxPartsPerUpload)
	}
	partsTotal := int32(parts64)

	sessionID := uuid.New()
	key := StorageKey(actor.ID, sessionID, filename)
	uploadID, err := s.store.CreateMultipartUpload(ctx, key, mimeType)
	if err != nil {
		return nil, ErrStorage("create multipart upload", err)
	}

	partNumbers := make([]int32, partsTotal)
	for i := range partNumbers {
		partNumbers[i] = int32(i + 1)
	}
	parts, err := s.store.PresignUploadParts(ctx, key, uploadID, partNumbers, s.policy.PresignTTL)
	if err != nil {
		s.abortQuietly(ctx, key, uploadID)
		return nil, ErrStorage("presign upload parts", err)
	}
	expiresAt := s.now().Add(s.policy.PresignTTL).UTC()

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = filename
	}
	created, err := s.uploads.Create(ctx, nil, &po.UploadSession{
		SessionID:       sessionID,
		UserID:          actor.ID,
		Filename:        filename,
		FileSizeBytes:   input.FileSizeBytes,
		MimeType:        mimeType,
		PartSizeBytes:   s.policy.PartSizeBytes,
		Status:          po.UploadStatusPending,
		PartsTotal:      partsTotal,
		StorageBucket:   s.store.Bucket(),
		StorageKey:      key,
		StorageUploadID: uploadID,
		CourseID:        input.CourseID,
		ModuleID:        input.ModuleID,
		LessonID:        input.LessonID,
		Title:           title,
		URLsExpireAt:    &expiresAt,
	})
	if err != nil {
		s.abortQuietly(ctx, key, uploadID)
		return nil, ErrInternal("persist upload session", err)
	}

	s.log.WithContext(ctx).Infof("upload initiated: session_id=%s user_id=%s parts=%d size=%d", sessionID, actor.ID, partsTotal, input.FileSizeBytes)
	return &vo.UploadTicket{Session: created, Parts: parts, ExpiresAt: expiresAt}, nil
}

func (s *UploadService) validateInitiate(filename, mimeType string, input InitiateUploadInput) error {
	if filename == "" {
		return ErrValidation("filename is required")
	}
	if mimeType == "" {
		return ErrValidation("mime_type is required")
	}
	if input.FileSizeBytes <= 0 {
		return ErrValidation("file_size_bytes must be positive")
	}
	if s.policy.MaxFileSizeBytes > 0 && input.FileSizeBytes > s.policy.MaxFileSizeBytes {
		return ErrValidation("file_size_bytes exceeds the limit of %d bytes", s.policy.MaxFileSizeBytes)
	}
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[mimeType]; !ok {
			return ErrValidation("unsupported mime_type: %s", mimeType)
		}
	}
	if input.HasAssociation() && (input.CourseID == nil || input.ModuleID == nil || input.LessonID == nil) {
		return ErrValidation("association hints need course_id, module_id and lesson_id together")
	}
	return nil
}

// GetUploadSession 读取会话，仅本人或管理员可见。
func (s *UploadService) GetUploadSession(ctx context.Context, actor Actor, sessionID uuid.UUID) (*po.UploadSession, error) {
	return s.loadOwned(ctx, actor, sessionID)
}

// UpdateUploadProgress 覆盖客户端上报的进度计数（last-write-wins），pending 会话推进为 uploading。
// 超出 parts_total / file_size_bytes 的取值直接拒绝，不做截断。
// 开启 reconcile_progress 时忽略客户端数值，以对象存储的分片列表为准。
func (s *UploadService) UpdateUploadProgress(ctx context.Context, actor Actor, sessionID uuid.UUID, partsCompleted int32, bytesUploaded int64) (*po.UploadSession, error) {
	session, err := s.loadOwned(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsOpen() {
		return nil, errNotOpen(session.Status)
	}

	if s.policy.ReconcileProgress {
		if s.store == nil {
			return nil, ErrStorageNotConfigured()
		}
		stored, err := s.store.ListParts(ctx, session.StorageKey, session.StorageUploadID)
		if err != nil {
			return nil, ErrStorage("list parts", err)
		}
		partsCompleted, bytesUploaded = tallyParts(stored, session.PartsTotal)
	}

	switch {
	case partsCompleted < 0 || bytesUploaded < 0:
		return nil, ErrValidation("progress counters must not be negative")
	case partsCompleted > session.PartsTotal:
		return nil, ErrValidation("parts_completed %d exceeds parts_total %d", partsCompleted, session.PartsTotal)
	case bytesUploaded > session.FileSizeBytes:
		return nil, ErrValidation("bytes_uploaded %d exceeds file_size_bytes %d", bytesUploaded, session.FileSizeBytes)
	}

	updated, err := s.uploads.UpdateProgress(ctx, nil, sessionID, partsCompleted, bytesUploaded)
	if err != nil {
		if errors.Is(err, repositories.ErrUploadStateConflict) {
			return nil, errNotOpen(s.currentStatus(ctx, sessionID))
		}
		return nil, ErrInternal("update upload progress", err)
	}
	return updated, nil
}

// RefreshPresignedURLs 为对象存储中尚未出现的分片重新签发 PUT 地址（同一 multipart 句柄）。
func (s *UploadService) RefreshPresignedURLs(ctx context.Context, actor Actor, sessionID uuid.UUID) (*vo.UploadTicket, error) {
	if s.store == nil {
		return nil, ErrStorageNotConfigured()
	}
	session, err := s.loadOwned(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsOpen() {
		return nil, errNotOpen(session.Status)
	}

	stored, err := s.store.ListParts(ctx, session.StorageKey, session.StorageUploadID)
	if err != nil {
		return nil, ErrStorage("list parts", err)
	}
	done := make(map[int32]struct{}, len(stored))
	for _, p := range stored {
		done[p.PartNumber] = struct{}{}
	}
	remaining := make([]int32, 0, session.PartsTotal)
	for n := int32(1); n <= session.PartsTotal; n++ {
		if _, ok := done[n]; !ok {
			remaining = append(remaining, n)
		}
	}
	if len(remaining) == 0 {
		// 无需新地址时沿用上一批地址的过期时间
		ticket := &vo.UploadTicket{Session: session, Parts: []vo.PresignedPart{}}
		if session.URLsExpireAt != nil {
			ticket.ExpiresAt = session.URLsExpireAt.UTC()
		}
		return ticket, nil
	}

	parts, err := s.store.PresignUploadParts(ctx, session.StorageKey, session.StorageUploadID, remaining, s.policy.PresignTTL)
	if err != nil {
		return nil, ErrStorage("presign upload parts", err)
	}
	expiresAt := s.now().Add(s.policy.PresignTTL).UTC()
	updated, err := s.uploads.UpdateURLsExpiry(ctx, nil, sessionID, expiresAt)
	if err != nil {
		if errors.Is(err, repositories.ErrUploadStateConflict) {
			return nil, errNotOpen(s.currentStatus(ctx, sessionID))
		}
		return nil, ErrInternal("update presign expiry", err)
	}
	return &vo.UploadTicket{Session: updated, Parts: parts, ExpiresAt: expiresAt}, nil
}

// CompleteUpload 完成分片上传并产出视频目录记录。
//
// 流程：
//  1. 校验分片清单并确认调用方为会话所有者或管理员
//  2. 条件更新 pending|uploading → processing 抢占会话，失败即 "not completable"
//  3. 调用对象存储合并分片；失败则会话置为 failed，返回 StorageError
//  4. 同一事务内写入视频（draft）并将会话置为 completed
//  5. 提交后发布 video.created
func (s *UploadService) CompleteUpload(ctx context.Context, actor Actor, input CompleteUploadInput) (*vo.CompletedUpload, error) {
	if s.store == nil {
		return nil, ErrStorageNotConfigured()
	}
	parts, err := normalizeManifest(input.Parts)
	if err != nil {
		return nil, err
	}

	session, err := s.loadOwned(ctx, actor, input.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsOpen() {
		return nil, errNotCompletable(session.Status)
	}
	if err := checkManifestCoverage(parts, session.PartsTotal); err != nil {
		return nil, err
	}

	claimed, err := s.uploads.ClaimForCompletion(ctx, nil, session.SessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrUploadStateConflict) {
			return nil, errNotCompletable(s.currentStatus(ctx, session.SessionID))
		}
		return nil, ErrInternal("claim upload session", err)
	}

	if err := s.store.CompleteMultipartUpload(ctx, claimed.StorageKey, claimed.StorageUploadID, parts); err != nil {
		s.markFailed(ctx, claimed.SessionID, "complete multipart upload: "+err.Error())
		return nil, ErrStorage("complete multipart upload", err)
	}

	finalizedAt := s.now().UTC()
	candidate := s.videoFromSession(claimed, input)
	var (
		video     *po.Video
		completed *po.UploadSession
	)
	err = s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		created, err := s.videos.Create(txCtx, sess, candidate)
		if err != nil {
			return fmt.Errorf("create video: %w", err)
		}
		done, err := s.uploads.MarkCompleted(txCtx, sess, claimed.SessionID, created.VideoID, finalizedAt)
		if err != nil {
			return fmt.Errorf("mark session completed: %w", err)
		}
		video, completed = created, done
		return nil
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("finalize upload failed: session_id=%s key=%s err=%v", claimed.SessionID, claimed.StorageKey, err)
		s.markFailed(ctx, claimed.SessionID, "finalize catalog entry: "+err.Error())
		return nil, ErrInternal("finalize upload", err)
	}

	s.log.WithContext(ctx).Infof("upload completed: session_id=%s video_id=%s", completed.SessionID, video.VideoID)
	publishAfterCommit(ctx, s.publisher, s.log, finalizedAt, func(eventID uuid.UUID, at time.Time) (*events.DomainEvent, error) {
		return events.NewVideoCreatedEvent(video, eventID, at)
	})
	return &vo.CompletedUpload{Session: completed, Video: video}, nil
}

// CancelUpload 在对象存储侧放弃分片上传，并将会话置为 aborted（终态）。
func (s *UploadService) CancelUpload(ctx context.Context, actor Actor, sessionID uuid.UUID) (*po.UploadSession, error) {
	if s.store == nil {
		return nil, ErrStorageNotConfigured()
	}
	session, err := s.loadOwned(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsOpen() {
		return nil, errNotOpen(session.Status)
	}
	if err := s.store.AbortMultipartUpload(ctx, session.StorageKey, session.StorageUploadID); err != nil {
		return nil, ErrStorage("abort multipart upload", err)
	}
	aborted, err := s.uploads.MarkAborted(ctx, nil, sessionID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrUploadStateConflict) {
			return nil, errNotOpen(s.currentStatus(ctx, sessionID))
		}
		return nil, ErrInternal("mark session aborted", err)
	}
	s.log.WithContext(ctx).Infof("upload aborted: session_id=%s actor=%s", sessionID, actor.ID)
	return aborted, nil
}

func (s *UploadService) loadOwned(ctx context.Context, actor Actor, sessionID uuid.UUID) (*po.UploadSession, error) {
	if !actor.valid() {
		return nil, ErrUnauthenticated("caller identity is required")
	}
	session, err := s.uploads.Get(ctx, nil, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrUploadNotFound) {
			return nil, errUploadNotFound()
		}
		return nil, ErrInternal("load upload session", err)
	}
	if !actor.CanManage(session.UserID) {
		return nil, ErrForbidden("only the uploader or an administrator may access this upload session")
	}
	return session, nil
}

func (s *UploadService) currentStatus(ctx context.Context, sessionID uuid.UUID) po.UploadStatus {
	session, err := s.uploads.Get(ctx, nil, sessionID)
	if err != nil {
		return "unknown"
	}
	return session.Status
}

func (s *UploadService) markFailed(ctx context.Context, sessionID uuid.UUID, message string) {
	if _, err := s.uploads.MarkFailed(ctx, nil, sessionID, message, s.now().UTC()); err != nil {
		s.log.WithContext(ctx).Errorf("mark upload session failed: session_id=%s err=%v", sessionID, err)
	}
}

func (s *UploadService) abortQuietly(ctx context.Context, key, uploadID string) {
	if err := s.store.AbortMultipartUpload(ctx, key, uploadID); err != nil {
		s.log.WithContext(ctx).Warnf("abort orphaned multipart upload failed: key=%s upload_id=%s err=%v", key, uploadID, err)
	}
}

func (s *UploadService) videoFromSession(session *po.UploadSession, input CompleteUploadInput) *po.Video {
	title := session.Title
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		title = strings.TrimSpace(*input.Title)
	}
	if title == "" {
		title = session.Filename
	}
	var description *string
	if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
		d := strings.TrimSpace(*input.Description)
		description = &d
	}
	sessionID := session.SessionID
	return &po.Video{
		VideoID:          uuid.New(),
		Title:            title,
		Description:      description,
		Tags:             normalizeTags(input.Tags),
		OriginalFilename: session.Filename,
		FileSizeBytes:    session.FileSizeBytes,
		MimeType:         session.MimeType,
		StorageBucket:    session.StorageBucket,
		StorageKey:       session.StorageKey,
		UploadedBy:       session.UserID,
		UploadSessionID:  &sessionID,
		WorkflowStatus:   po.WorkflowDraft,
		CourseID:         session.CourseID,
		ModuleID:         session.ModuleID,
		LessonID:         session.LessonID,
	}
}

// normalizeManifest 校验清单格式并按分片号排序，返回副本。
func normalizeManifest(parts []vo.CompletedPart) ([]vo.CompletedPart, error) {
	if len(parts) == 0 {
		return nil, ErrValidation("parts must not be empty")
	}
	seen := make(map[int32]struct{}, len(parts))
	out := make([]vo.CompletedPart, 0, len(parts))
	for i, p := range parts {
		if p.PartNumber < 1 {
			return nil, ErrValidation("parts[%d].PartNumber must be a positive integer", i)
		}
		etag := strings.TrimSpace(p.ETag)
		if etag == "" {
			return nil, ErrValidation("parts[%d].ETag is required", i)
		}
		if _, dup := seen[p.PartNumber]; dup {
			return nil, ErrValidation("part %d appears more than once", p.PartNumber)
		}
		seen[p.PartNumber] = struct{}{}
		out = append(out, vo.CompletedPart{PartNumber: p.PartNumber, ETag: etag})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out, nil
}

// checkManifestCoverage 要求清单恰好覆盖 1..partsTotal。parts 已排序且无重复。
func checkManifestCoverage(parts []vo.CompletedPart, partsTotal int32) error {
	last := parts[len(parts)-1].PartNumber
	if last > partsTotal {
		return ErrValidation("part %d is outside 1..%d", last, partsTotal)
	}
	if int32(len(parts)) != partsTotal {
		return ErrValidation("manifest lists %d parts, the session has %d", len(parts), partsTotal)
	}
	return nil
}

func tallyParts(stored []vo.StoredPart, partsTotal int32) (int32, int64) {
	var (
		count int32
		bytes int64
	)
	for _, p := range stored {
		if p.PartNumber < 1 || p.PartNumber > partsTotal {
			continue
		}
		count++
		bytes += p.Size
	}
	return count, bytes
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
