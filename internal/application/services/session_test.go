package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filevault/internal/application/ports"
	"filevault/internal/domain/file"
)

type FakeObjectStore struct {
	PutFunc       func(ctx context.Context, key string, body io.Reader, sizeBytes int64, mimeType string) (string, string, error)
	StatFunc      func(ctx context.Context, handle string) (ports.ObjectInfo, error)
	GetURLFunc    func(ctx context.Context, handle string) (string, error)
	ListUnderFunc func(ctx context.Context, prefix string) ([]ports.ObjectInfo, error)
	DeleteFunc    func(ctx context.Context, handle string) error

	putCalls  int
	listCalls int
}

func (f *FakeObjectStore) Put(ctx context.Context, key string, body io.Reader, sizeBytes int64, mimeType string) (string, string, error) {
	f.putCalls++
	if f.PutFunc == nil {
		return "", "", errors.New("not used")
	}
	return f.PutFunc(ctx, key, body, sizeBytes, mimeType)
}

func (f *FakeObjectStore) Stat(ctx context.Context, handle string) (ports.ObjectInfo, error) {
	if f.StatFunc == nil {
		return ports.ObjectInfo{}, errors.New("not used")
	}
	return f.StatFunc(ctx, handle)
}

func (f *FakeObjectStore) GetURL(ctx context.Context, handle string) (string, error) {
	if f.GetURLFunc == nil {
		return "", errors.New("not used")
	}
	return f.GetURLFunc(ctx, handle)
}

func (f *FakeObjectStore) ListUnder(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	f.listCalls++
	if f.ListUnderFunc == nil {
		return nil, errors.New("not used")
	}
	return f.ListUnderFunc(ctx, prefix)
}

func (f *FakeObjectStore) Delete(ctx context.Context, handle string) error {
	if f.DeleteFunc == nil {
		return errors.New("not used")
	}
	return f.DeleteFunc(ctx, handle)
}

type FakeClipboard struct {
	WriteFunc func(text string) error
	lastText  string
}

func (f *FakeClipboard) Write(text string) error {
	f.lastText = text
	if f.WriteFunc == nil {
		return nil
	}
	return f.WriteFunc(text)
}

func emptyListStore() *FakeObjectStore {
	return &FakeObjectStore{
		ListUnderFunc: func(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
			return nil, nil
		},
	}
}

func setupSession(t *testing.T, store *FakeObjectStore, clip *FakeClipboard) *FileManagerSession {
	t.Helper()

	if clip == nil {
		clip = &FakeClipboard{}
	}
	s := NewFileManagerSession(store, clip, zap.NewNop())
	s.holdTTL = time.Millisecond
	return s
}

func activate(t *testing.T, s *FileManagerSession) {
	t.Helper()
	require.NoError(t, s.Activate(context.Background(), "u-1"))
}

func uploadOK(store *FakeObjectStore) {
	store.PutFunc = func(ctx context.Context, key string, body io.Reader, sizeBytes int64, mimeType string) (string, string, error) {
		_, _ = io.Copy(io.Discard, body)
		return key, "https://store.local/" + key, nil
	}
}

func waitUploadDone(t *testing.T, s *FileManagerSession) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !s.State().Uploading
	}, time.Second, 5*time.Millisecond)
}

func TestUploadFile_SizeLimit(t *testing.T) {
	store := emptyListStore()
	s := setupSession(t, store, nil)
	activate(t, s)

	err := s.UploadFile(context.Background(), strings.NewReader(""), "huge.bin", "application/octet-stream", maxUploadSize+1)

	assert.ErrorIs(t, err, ErrSizeLimitExceeded)
	assert.Equal(t, 0, store.putCalls, "store must not be called for oversized files")

	st := s.State()
	require.NotNil(t, st.Notification)
	assert.Equal(t, file.NoticeError, st.Notification.Kind)
	assert.Empty(t, st.Files)
}

func TestUploadFile_PrependsNewest(t *testing.T) {
	store := emptyListStore()
	uploadOK(store)
	s := setupSession(t, store, nil)
	activate(t, s)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.UploadFile(context.Background(), strings.NewReader("aaa"), "first.txt", "text/plain", 3))
	waitUploadDone(t, s)

	now = now.Add(time.Minute)
	require.NoError(t, s.UploadFile(context.Background(), strings.NewReader("bbbb"), "second.txt", "text/plain", 4))
	waitUploadDone(t, s)

	st := s.State()
	require.Len(t, st.Files, 2)
	assert.Equal(t, "second.txt", st.Files[0].Name)
	assert.Equal(t, "first.txt", st.Files[1].Name)
	assert.Equal(t, uint64(4), st.Files[0].SizeBytes)
	assert.Contains(t, st.Files[0].StorageHandle, "uploads/u-1/")
}

func TestUploadFile_StoreErrors(t *testing.T) {
	tests := []struct {
		name      string
		putErr    error
		wantIs    []error
		wantKind  file.NotificationKind
		wantFiles int
	}{
		{
			name:      "unauthorized",
			putErr:    fmt.Errorf("put: %w", ports.ErrUnauthorized),
			wantIs:    []error{ErrUploadFailed, ports.ErrUnauthorized},
			wantKind:  file.NoticeError,
			wantFiles: 0,
		},
		{
			name:      "transport error",
			putErr:    errors.New("connection reset"),
			wantIs:    []error{ErrUploadFailed},
			wantKind:  file.NoticeError,
			wantFiles: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			store := emptyListStore()
			store.PutFunc = func(ctx context.Context, key string, body io.Reader, sizeBytes int64, mimeType string) (string, string, error) {
				return "", "", tt.putErr
			}
			s := setupSession(t, store, nil)
			activate(t, s)

			err := s.UploadFile(context.Background(), strings.NewReader("x"), "a.txt", "text/plain", 1)
			for _, want := range tt.wantIs {
				assert.ErrorIs(t, err, want)
			}

			st := s.State()
			assert.Len(t, st.Files, tt.wantFiles)
			assert.False(t, st.Uploading)
			require.NotNil(t, st.Notification)
			assert.Equal(t, tt.wantKind, st.Notification.Kind)
		})
	}
}

func TestProgressReader(t *testing.T) {
	var seen []int
	pr := &progressReader{r: bytes.NewReader(make([]byte, 10)), total: 10, report: func(p int) { seen = append(seen, p) }}
	buf := make([]byte, 4)
	for {
		if _, err := pr.Read(buf); err != nil {
			break
		}
	}

	require.NotEmpty(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])
}

func TestListFiles_PartialFailure(t *testing.T) {
	infos := make([]ports.ObjectInfo, 0, 5)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		infos = append(infos, ports.ObjectInfo{
			Handle:    fmt.Sprintf("uploads/u-1/%d_doc-%d.pdf", 1000+i, i),
			Name:      fmt.Sprintf("%d_doc-%d.pdf", 1000+i, i),
			SizeBytes: 10,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	store := &FakeObjectStore{
		ListUnderFunc: func(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
			assert.Equal(t, "uploads/u-1/", prefix)
			return infos, nil
		},
		StatFunc: func(ctx context.Context, handle string) (ports.ObjectInfo, error) {
			if strings.Contains(handle, "doc-2") {
				return ports.ObjectInfo{}, errors.New("corrupt metadata")
			}
			for _, info := range infos {
				if info.Handle == handle {
					return info, nil
				}
			}
			return ports.ObjectInfo{}, errors.New("unknown handle")
		},
		GetURLFunc: func(ctx context.Context, handle string) (string, error) {
			return "https://store.local/" + handle, nil
		},
	}

	s := setupSession(t, store, nil)
	activate(t, s)

	st := s.State()
	require.Len(t, st.Files, 4, "one bad object must not hide the rest")
	for _, f := range st.Files {
		assert.NotContains(t, f.Name, "doc-2")
	}
	// most-recent-first
	assert.Equal(t, "doc-4.pdf", st.Files[0].Name)
	assert.Equal(t, "doc-0.pdf", st.Files[3].Name)
	assert.False(t, st.Loading)
}

func TestListFiles_Unauthorized(t *testing.T) {
	store := emptyListStore()
	s := setupSession(t, store, nil)
	activate(t, s)

	store.ListUnderFunc = func(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
		return nil, fmt.Errorf("list: %w", ports.ErrUnauthorized)
	}

	err := s.ListFiles(context.Background())
	assert.ErrorIs(t, err, ErrListFailed)
	assert.ErrorIs(t, err, ports.ErrUnauthorized)

	st := s.State()
	assert.Empty(t, st.Files, "prior (empty) list is kept")
	assert.False(t, st.Loading)
	require.NotNil(t, st.Notification)
	assert.Equal(t, file.NoticeError, st.Notification.Kind)
}

func TestListFiles_PrefixRoundTrip(t *testing.T) {
	var storedKey string
	store := emptyListStore()
	store.PutFunc = func(ctx context.Context, key string, body io.Reader, sizeBytes int64, mimeType string) (string, string, error) {
		storedKey = key
		_, _ = io.Copy(io.Discard, body)
		return key, "https://store.local/" + key, nil
	}
	s := setupSession(t, store, nil)
	activate(t, s)

	require.NoError(t, s.UploadFile(context.Background(), strings.NewReader("x"), "report.pdf", "application/pdf", 1))
	waitUploadDone(t, s)
	require.NotEmpty(t, storedKey)
	assert.Regexp(t, `^uploads/u-1/\d+_report\.pdf$`, storedKey)

	info := ports.ObjectInfo{
		Handle:    storedKey,
		Name:      strings.TrimPrefix(storedKey, "uploads/u-1/"),
		SizeBytes: 1,
		MimeType:  "application/pdf",
		CreatedAt: time.Now(),
	}
	store.ListUnderFunc = func(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
		return []ports.ObjectInfo{info}, nil
	}
	store.StatFunc = func(ctx context.Context, handle string) (ports.ObjectInfo, error) {
		return info, nil
	}
	store.GetURLFunc = func(ctx context.Context, handle string) (string, error) {
		return "https://store.local/" + handle, nil
	}

	require.NoError(t, s.ListFiles(context.Background()))

	st := s.State()
	require.Len(t, st.Files, 1)
	assert.Equal(t, "report.pdf", st.Files[0].Name, "timestamp prefix must strip cleanly")
}

func TestListFiles_SuppressedDuringUpload(t *testing.T) {
	store := emptyListStore()
	s := setupSession(t, store, nil)
	activate(t, s)
	listCallsAfterActivate := store.listCalls

	s.mu.Lock()
	s.state.Uploading = true
	s.mu.Unlock()

	require.NoError(t, s.ListFiles(context.Background()))
	assert.Equal(t, listCallsAfterActivate, store.listCalls, "refresh must be a no-op mid-upload")
}

func TestActivate_Idempotent(t *testing.T) {
	store := emptyListStore()
	s := setupSession(t, store, nil)

	require.NoError(t, s.Activate(context.Background(), "u-1"))
	require.NoError(t, s.Activate(context.Background(), "u-1"))

	assert.Equal(t, 1, store.listCalls, "second activate must not refetch")
}

func TestDeleteFile(t *testing.T) {
	recs := file.Records{
		{Name: "a.txt", AccessURL: "https://store.local/a", StorageHandle: "uploads/u-1/1_a.txt"},
		{Name: "b.txt", AccessURL: "https://store.local/b", StorageHandle: "uploads/u-1/2_b.txt"},
	}

	tests := []struct {
		name      string
		target    file.Record
		deleteErr error
		wantErr   error
		wantLen   int
	}{
		{
			name:    "success removes by access url",
			target:  recs[0],
			wantLen: 1,
		},
		{
			name:      "store failure keeps list",
			target:    recs[0],
			deleteErr: errors.New("backend gone"),
			wantErr:   ErrDeleteFailed,
			wantLen:   2,
		},
		{
			name:    "unknown record rejected",
			target:  file.Record{Name: "ghost", AccessURL: "https://store.local/ghost", StorageHandle: "x"},
			wantErr: ErrNotInList,
			wantLen: 2,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var deleted string
			store := emptyListStore()
			store.DeleteFunc = func(ctx context.Context, handle string) error {
				deleted = handle
				return tt.deleteErr
			}
			s := setupSession(t, store, nil)
			activate(t, s)
			s.mu.Lock()
			s.state.Files = append(file.Records(nil), recs...)
			s.mu.Unlock()

			err := s.DeleteFile(context.Background(), tt.target)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.target.StorageHandle, deleted)
			}

			st := s.State()
			assert.Len(t, st.Files, tt.wantLen)
			if err == nil {
				for _, f := range st.Files {
					assert.NotEqual(t, tt.target.AccessURL, f.AccessURL)
				}
			}
		})
	}
}

func TestCopyShareLink(t *testing.T) {
	rec := file.Record{Name: "a.txt", AccessURL: "https://store.local/a", StorageHandle: "h"}

	t.Run("success", func(t *testing.T) {
		clip := &FakeClipboard{}
		s := setupSession(t, emptyListStore(), clip)
		activate(t, s)

		require.NoError(t, s.CopyShareLink(rec))
		assert.Equal(t, rec.AccessURL, clip.lastText)

		st := s.State()
		assert.Equal(t, rec.AccessURL, st.CopiedURL)
		require.NotNil(t, st.Notification)
		assert.Equal(t, file.NoticeSuccess, st.Notification.Kind)
	})

	t.Run("clipboard denied", func(t *testing.T) {
		clip := &FakeClipboard{WriteFunc: func(string) error { return errors.New("denied") }}
		s := setupSession(t, emptyListStore(), clip)
		activate(t, s)

		err := s.CopyShareLink(rec)
		assert.ErrorIs(t, err, ErrClipboardFailed)

		st := s.State()
		assert.Empty(t, st.CopiedURL)
		require.NotNil(t, st.Notification)
		assert.Equal(t, file.NoticeError, st.Notification.Kind)
	})
}

func TestNotificationSlot_OverwritesAndExpires(t *testing.T) {
	s := setupSession(t, emptyListStore(), nil)
	activate(t, s)
	s.successTTL = 50 * time.Millisecond
	s.errorTTL = 50 * time.Millisecond

	rec := file.Record{Name: "a.txt", AccessURL: "https://store.local/a", StorageHandle: "h"}
	require.NoError(t, s.CopyShareLink(rec))

	// a second action overwrites, never queues
	err := s.UploadFile(context.Background(), strings.NewReader(""), "huge.bin", "", maxUploadSize+1)
	assert.ErrorIs(t, err, ErrSizeLimitExceeded)

	st := s.State()
	require.NotNil(t, st.Notification)
	assert.Equal(t, file.NoticeError, st.Notification.Kind)
	assert.Contains(t, st.Notification.Message, "huge.bin")

	assert.Eventually(t, func() bool {
		return s.State().Notification == nil
	}, time.Second, 10*time.Millisecond, "notification must self-expire")
}

func TestNotificationSlot_SupersededTimerDoesNotClearNewNotice(t *testing.T) {
	s := setupSession(t, emptyListStore(), nil)
	activate(t, s)
	s.successTTL = 20 * time.Millisecond
	s.errorTTL = 500 * time.Millisecond

	rec := file.Record{Name: "a.txt", AccessURL: "https://store.local/a", StorageHandle: "h"}
	require.NoError(t, s.CopyShareLink(rec)) // short success TTL

	// error notice with a long TTL replaces it before expiry
	_ = s.UploadFile(context.Background(), strings.NewReader(""), "huge.bin", "", maxUploadSize+1)

	time.Sleep(100 * time.Millisecond) // past the stale success timer

	st := s.State()
	require.NotNil(t, st.Notification, "stale timer must not clear the newer notification")
	assert.Equal(t, file.NoticeError, st.Notification.Kind)
}

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"  spaced.txt  ", "spaced.txt"},
		{"dir/evil.txt", "evil.txt"},
		{`c:\temp\win.doc`, "win.doc"},
		{"bad\x00ctl.txt", "badctl.txt"},
		{"", "file"},
		{"..", "file"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanFileName(tt.in), "input %q", tt.in)
	}
}

func TestStorageKey(t *testing.T) {
	ts := time.UnixMilli(1717245000123)
	key := storageKey("u-1", "report.pdf", ts)
	assert.Equal(t, "uploads/u-1/1717245000123_report.pdf", key)
}
