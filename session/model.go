package session

import "time"

// Record is one server-side session: the state tracked for a single issued
// refresh token. At most one record exists per refresh-token value.
type Record struct {
	IdentityID   int64
	RefreshToken string

	CreatedAt time.Time
	ExpiresAt time.Time
	Valid     bool

	IP          string
	UserAgent   string
	DeviceClass string
}
