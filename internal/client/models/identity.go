package models

import "time"

// Identity is the authenticated principal of a session.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

const (
	LocalUID         = "local_user"
	localEmail       = "local@device.com"
	localDisplayName = "Local User"
)

// LocalIdentity is the pseudo-identity used when no identity provider is
// involved.
func LocalIdentity() Identity {
	return Identity{UID: LocalUID, DisplayName: localDisplayName, Email: localEmail}
}

// Credentials are what a user types to sign in or sign up.
type Credentials struct {
	Email       string
	DisplayName string
	Password    []byte
}

// Profile is the per-user document kept by the remote backend.
type Profile struct {
	Username      string
	Email         string
	ProfilePicURL string
	StorageType   Backend
	CreatedAt     time.Time
}
