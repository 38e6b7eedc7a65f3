package file

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrMissingHandle = errors.New("file record requires a storage handle")
	ErrMissingURL    = errors.New("file record requires an access URL")
	ErrEmptyName     = errors.New("file record requires a non-empty name")
)

// upload keys carry a "<unix-millis>_" collision prefix in front of the
// original name; it is stripped when re-deriving the display name.
var keyPrefixRe = regexp.MustCompile(`^\d+_`)

type (
	Record struct {
		Name      string `json:"name"`
		SizeBytes uint64 `json:"size_bytes"`
		MimeType  string `json:"mime_type"`
		AccessURL string `json:"access_url"`

		UploadedAt time.Time `json:"uploaded_at"`

		// delete-only reference into the external store, never rendered
		StorageHandle string `json:"-"`
	}
	Records []Record
)

// NewRecord validates a record at the store boundary. storedName is the
// object name as the store reports it, prefix included.
func NewRecord(storedName string, sizeBytes uint64, mimeType, accessURL, handle string, uploadedAt time.Time) (Record, error) {
	if handle == "" {
		return Record{}, ErrMissingHandle
	}
	if accessURL == "" {
		return Record{}, ErrMissingURL
	}

	name := DisplayName(storedName)
	if name == "" {
		return Record{}, ErrEmptyName
	}

	return Record{
		Name:          name,
		SizeBytes:     sizeBytes,
		MimeType:      mimeType,
		AccessURL:     accessURL,
		UploadedAt:    uploadedAt,
		StorageHandle: handle,
	}, nil
}

// DisplayName strips exactly one collision prefix from a stored name.
func DisplayName(storedName string) string {
	return keyPrefixRe.ReplaceAllString(storedName, "")
}
