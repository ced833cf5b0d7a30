package domain

import "time"

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Admin        bool
	RegisteredOn time.Time
}

// BlacklistedToken records a token revoked by logout.
type BlacklistedToken struct {
	ID            int64
	Token         string
	BlacklistedOn time.Time
}
