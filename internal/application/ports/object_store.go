package ports

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnauthorized is returned by collaborators when the external service
// rejects the caller's credentials or access policy.
var ErrUnauthorized = errors.New("unauthorized")

type (
	// ObjectInfo is the raw listing entry for one stored object, before
	// it is validated into a domain record.
	ObjectInfo struct {
		Handle    string
		Name      string
		SizeBytes uint64
		MimeType  string
		CreatedAt time.Time
	}

	ObjectStore interface {
		// Put stores the blob under key and returns its opaque handle
		// and a retrievable URL.
		Put(ctx context.Context, key string, body io.Reader, sizeBytes int64, mimeType string) (handle string, url string, err error)
		// Stat resolves metadata for a single object.
		Stat(ctx context.Context, handle string) (ObjectInfo, error)
		// GetURL resolves a retrievable URL for a stored object.
		GetURL(ctx context.Context, handle string) (string, error)
		ListUnder(ctx context.Context, prefix string) ([]ObjectInfo, error)
		Delete(ctx context.Context, handle string) error
	}
)
