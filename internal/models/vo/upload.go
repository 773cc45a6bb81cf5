package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"
)

// PresignedPart 是单个分片的预签名 PUT 地址。
type PresignedPart struct {
	PartNumber int32
	URL        string
}

// CompletedPart 是客户端回传的分片清单项。
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// StoredPart 是对象存储中已经落盘的分片。
type StoredPart struct {
	PartNumber int32
	ETag       string
	Size       int64
}

// UploadTicket 是 InitiateUpload / RefreshPresignedURLs 的结果。
type UploadTicket struct {
	Session   *po.UploadSession
	Parts     []PresignedPart
	ExpiresAt time.Time
}

// CompletedUpload 是 CompleteUpload 的结果。
type CompletedUpload struct {
	Session *po.UploadSession
	Video   *po.Video
}
