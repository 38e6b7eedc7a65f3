package user

import (
	"time"
)

// Identity is what the external identity collaborator reports about
// an authenticated principal.
type Identity struct {
	UID           string
	Email         string
	DisplayName   string
	EmailVerified bool

	CreatedAt time.Time
}

// Label is the name shown for the principal on user-facing surfaces.
func (i *Identity) Label() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return "User"
}
