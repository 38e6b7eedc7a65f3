package file

type NotificationKind string

const (
	NoticeSuccess NotificationKind = "success"
	NoticeError   NotificationKind = "error"
)

type (
	// Notification is the single-slot transient UI message. A new one
	// overwrites the previous one, never queues behind it.
	Notification struct {
		Kind    NotificationKind
		Message string
	}

	// SessionState is the transient, UI-facing state of one file-manager
	// session. It is a cache over the store's authoritative state and is
	// discarded when the view is torn down.
	SessionState struct {
		Files     Records // most-recent-upload-first
		Uploading bool
		Progress  int // 0-100, meaningful only while Uploading
		Loading   bool

		Notification *Notification
		// AccessURL of the record whose share link was last copied,
		// cleared together with its notification.
		CopiedURL string
	}
)
