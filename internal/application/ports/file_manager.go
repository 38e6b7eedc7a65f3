package ports

import (
	"context"
	"io"

	"filevault/internal/domain/file"
)

type FileManager interface {
	Activate(ctx context.Context, userID string) error
	UploadFile(ctx context.Context, blob io.Reader, fileName, mimeType string, sizeBytes int64) error
	ListFiles(ctx context.Context) error
	DeleteFile(ctx context.Context, rec file.Record) error
	CopyShareLink(rec file.Record) error
	State() file.SessionState
}
