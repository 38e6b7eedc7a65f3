package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"filevault/internal/application/ports"
	"filevault/internal/domain/file"
)

// 50 MiB
const maxUploadSize = int64(50 << 20)

const (
	successNoticeTTL = 2 * time.Second
	errorNoticeTTL   = 5 * time.Second
	progressHold     = 800 * time.Millisecond
	listConcurrency  = 8
)

var (
	ErrSizeLimitExceeded = errors.New("file exceeds the 50 MiB upload limit")
	ErrUploadInProgress  = errors.New("another upload is still in progress")
	ErrUploadFailed      = errors.New("upload failed")
	ErrListFailed        = errors.New("listing files failed")
	ErrDeleteFailed      = errors.New("delete failed")
	ErrNotInList         = errors.New("file is not in the current list")
	ErrClipboardFailed   = errors.New("copy to clipboard failed")
	ErrNotActivated      = errors.New("session is not activated")
)

// FileManagerSession owns one user's uploaded-file list and mediates
// upload/list/delete/share against the object store. The list is a cache
// of the store's state under the user's namespace; another client can
// mutate the store behind its back and the session does not reconcile.
type FileManagerSession struct {
	store     ports.ObjectStore
	clipboard ports.Clipboard
	logger    *zap.Logger

	mu        sync.Mutex
	userID    string
	populated bool
	state     file.SessionState

	notifyGen     int
	notifyTimer   *time.Timer
	progressTimer *time.Timer

	now func() time.Time

	// notification expiry, overridable in tests
	successTTL time.Duration
	errorTTL   time.Duration
	holdTTL    time.Duration
}

func NewFileManagerSession(
	store ports.ObjectStore,
	clipboard ports.Clipboard,
	logger *zap.Logger,
) *FileManagerSession {
	return &FileManagerSession{
		store:      store,
		clipboard:  clipboard,
		logger:     logger,
		now:        time.Now,
		successTTL: successNoticeTTL,
		errorTTL:   errorNoticeTTL,
		holdTTL:    progressHold,
	}
}

// Activate binds the session to a principal and triggers the initial
// list fetch. Calling it again with the same user while the list is
// already populated is a no-op.
func (s *FileManagerSession) Activate(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.populated && s.userID == userID {
		s.mu.Unlock()
		return nil
	}
	if s.userID != userID {
		s.userID = userID
		s.populated = false
		s.state = file.SessionState{}
	}
	s.mu.Unlock()

	return s.ListFiles(ctx)
}

func (s *FileManagerSession) UploadFile(ctx context.Context, blob io.Reader, fileName, mimeType string, sizeBytes int64) error {
	s.mu.Lock()
	uid := s.userID
	if uid == "" {
		s.mu.Unlock()
		return ErrNotActivated
	}
	if sizeBytes > maxUploadSize {
		s.notifyLocked(file.NoticeError, fmt.Sprintf("%q exceeds the 50 MiB upload limit", fileName))
		s.mu.Unlock()
		return ErrSizeLimitExceeded
	}
	if s.state.Uploading {
		s.notifyLocked(file.NoticeError, "another upload is still in progress")
		s.mu.Unlock()
		return ErrUploadInProgress
	}
	s.state.Uploading = true
	s.state.Progress = 0
	name := cleanFileName(fileName)
	key := storageKey(uid, name, s.now())
	s.mu.Unlock()

	body := &progressReader{r: blob, total: sizeBytes, report: s.setProgress}
	handle, url, err := s.store.Put(ctx, key, body, sizeBytes, mimeType)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state.Uploading = false
		s.state.Progress = 0
		if errors.Is(err, ports.ErrUnauthorized) {
			s.notifyLocked(file.NoticeError, "you are not authorized to upload files")
			return fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		s.notifyLocked(file.NoticeError, "upload failed: "+err.Error())
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	rec := file.Record{
		Name:          name,
		SizeBytes:     uint64(sizeBytes),
		MimeType:      mimeType,
		AccessURL:     url,
		UploadedAt:    s.now(),
		StorageHandle: handle,
	}
	s.state.Files = append(file.Records{rec}, s.state.Files...)
	s.state.Progress = 100
	s.notifyLocked(file.NoticeSuccess, fmt.Sprintf("%q uploaded", name))
	s.holdProgressLocked()

	return nil
}

// ListFiles refreshes the list wholesale from the store. A refresh while
// an upload is in flight is skipped so the in-flight record can neither
// vanish nor double up.
func (s *FileManagerSession) ListFiles(ctx context.Context) error {
	s.mu.Lock()
	uid := s.userID
	if uid == "" {
		s.mu.Unlock()
		return ErrNotActivated
	}
	if s.state.Uploading {
		s.logger.Debug("list refresh suppressed during upload", zap.String("user_id", uid))
		s.mu.Unlock()
		return nil
	}
	if s.state.Loading {
		s.mu.Unlock()
		return nil
	}
	s.state.Loading = true
	s.mu.Unlock()

	infos, err := s.store.ListUnder(ctx, namespace(uid))
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state.Loading = false
		if errors.Is(err, ports.ErrUnauthorized) {
			s.notifyLocked(file.NoticeError, "you are not authorized to list files")
		} else {
			s.notifyLocked(file.NoticeError, "could not load your files")
		}
		return fmt.Errorf("%w: %w", ErrListFailed, err)
	}

	records := s.resolveAll(ctx, infos)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Files = records
	s.state.Loading = false
	s.populated = true

	return nil
}

// resolveAll fans out per-object metadata and URL resolution. A failure
// on one object drops that object only; the rest of the list survives.
func (s *FileManagerSession) resolveAll(ctx context.Context, infos []ports.ObjectInfo) file.Records {
	resolved := make([]*file.Record, len(infos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, info := range infos {
		i, info := i, info
		g.Go(func() error {
			st, err := s.store.Stat(gctx, info.Handle)
			if err != nil {
				s.logger.Warn("skipping object: stat failed",
					zap.String("handle", info.Handle), zap.Error(err))
				return nil
			}
			url, err := s.store.GetURL(gctx, info.Handle)
			if err != nil {
				s.logger.Warn("skipping object: url resolution failed",
					zap.String("handle", info.Handle), zap.Error(err))
				return nil
			}
			createdAt := st.CreatedAt
			if createdAt.IsZero() {
				createdAt = info.CreatedAt
			}
			rec, err := file.NewRecord(st.Name, st.SizeBytes, st.MimeType, url, info.Handle, createdAt)
			if err != nil {
				s.logger.Warn("skipping object: invalid record",
					zap.String("handle", info.Handle), zap.Error(err))
				return nil
			}
			resolved[i] = &rec
			return nil
		})
	}
	_ = g.Wait() // item failures are swallowed above

	records := make(file.Records, 0, len(resolved))
	for _, r := range resolved {
		if r != nil {
			records = append(records, *r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})

	return records
}

// DeleteFile removes rec's underlying object. rec must be in the current
// list; the caller is expected to have confirmed with the user first.
func (s *FileManagerSession) DeleteFile(ctx context.Context, rec file.Record) error {
	s.mu.Lock()
	if s.indexOfLocked(rec.AccessURL) < 0 {
		s.notifyLocked(file.NoticeError, "file is no longer in the list")
		s.mu.Unlock()
		return ErrNotInList
	}
	s.mu.Unlock()

	err := s.store.Delete(ctx, rec.StorageHandle)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if errors.Is(err, ports.ErrUnauthorized) {
			s.notifyLocked(file.NoticeError, "you are not authorized to delete this file")
		} else {
			s.notifyLocked(file.NoticeError, "could not delete "+rec.Name)
		}
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	if idx := s.indexOfLocked(rec.AccessURL); idx >= 0 {
		s.state.Files = append(s.state.Files[:idx], s.state.Files[idx+1:]...)
	}
	s.notifyLocked(file.NoticeSuccess, fmt.Sprintf("%q deleted", rec.Name))

	return nil
}

func (s *FileManagerSession) CopyShareLink(rec file.Record) error {
	if err := s.clipboard.Write(rec.AccessURL); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.notifyLocked(file.NoticeError, "could not copy link to clipboard")
		return fmt.Errorf("%w: %w", ErrClipboardFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyLocked(file.NoticeSuccess, "share link copied")
	s.state.CopiedURL = rec.AccessURL

	return nil
}

// State returns a snapshot safe to render from.
func (s *FileManagerSession) State() file.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state
	snap.Files = append(file.Records(nil), s.state.Files...)
	if s.state.Notification != nil {
		n := *s.state.Notification
		snap.Notification = &n
	}
	return snap
}

// notifyLocked fills the single notification slot, superseding any
// pending one and its expiry timer. Caller holds s.mu.
func (s *FileManagerSession) notifyLocked(kind file.NotificationKind, msg string) {
	if s.notifyTimer != nil {
		s.notifyTimer.Stop()
	}
	s.notifyGen++
	gen := s.notifyGen

	s.state.Notification = &file.Notification{Kind: kind, Message: msg}
	s.state.CopiedURL = ""

	ttl := s.successTTL
	if kind == file.NoticeError {
		ttl = s.errorTTL
	}
	s.notifyTimer = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.notifyGen == gen {
			s.state.Notification = nil
			s.state.CopiedURL = ""
		}
	})
}

// holdProgressLocked keeps the finished progress bar visible briefly,
// then clears the upload flags. Caller holds s.mu.
func (s *FileManagerSession) holdProgressLocked() {
	if s.progressTimer != nil {
		s.progressTimer.Stop()
	}
	s.progressTimer = time.AfterFunc(s.holdTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state.Uploading = false
		s.state.Progress = 0
	})
}

func (s *FileManagerSession) setProgress(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Uploading && percent > s.state.Progress {
		if percent > 100 {
			percent = 100
		}
		s.state.Progress = percent
	}
}

func (s *FileManagerSession) indexOfLocked(accessURL string) int {
	for i, r := range s.state.Files {
		if r.AccessURL == accessURL {
			return i
		}
	}
	return -1
}

func namespace(userID string) string {
	return "uploads/" + userID + "/"
}

// storageKey prefixes the name with a millisecond timestamp so same-name
// uploads within one namespace cannot collide.
func storageKey(userID, fileName string, ts time.Time) string {
	return fmt.Sprintf("%s%d_%s", namespace(userID), ts.UnixMilli(), fileName)
}

// cleanFileName strips any path component and control characters and
// NFC-normalizes the rest, leaving the display name otherwise intact.
func cleanFileName(original string) string {
	s := strings.TrimSpace(original)
	s = strings.ReplaceAll(s, "\\", "/")
	s = path.Base(s)
	s = strings.Map(func(r rune) rune {
		if r == '\x00' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = norm.NFC.String(s)

	if s == "" || s == "." || s == ".." || s == "/" {
		return "file"
	}
	return s
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		p.report(int(p.read * 100 / p.total))
	}
	return n, err
}
