package sessions

import (
	errs "github.com/jrsteele09/school-portal/internal/errors"
)

// StorageKey is the stable key the session snapshot is persisted under.
const StorageKey = "persist:auth"

// Credentials is the authentication identity held by the Store. The zero
// value is the logged-out state.
type Credentials struct {
	AccessToken     string // Short-lived bearer credential for API calls
	RefreshToken    string // Used only to obtain a new access token
	UserID          string // Authenticated principal, empty when logged out
	Role            string // Open set, compared by exact string equality
	IsAuthenticated bool   // Flag as set by the caller; see Store.IsAuthenticated
}

// Empty reports whether c is the logged-out state.
func (c Credentials) Empty() bool {
	return c == Credentials{}
}

// Snapshot is the persisted record of a session.
type Snapshot struct {
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken"`
	UserID          string `json:"userId"`
	Role            string `json:"role"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Validate rejects snapshots that claim an authenticated session without an
// access token.
func (s *Snapshot) Validate() error {
	if s.IsAuthenticated && s.AccessToken == "" {
		return errs.Wrapf(errs.ErrMalformedSnapshot, "authenticated without access token")
	}
	return nil
}

func (s *Snapshot) credentials() Credentials {
	return Credentials{
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		UserID:          s.UserID,
		Role:            s.Role,
		IsAuthenticated: s.IsAuthenticated,
	}
}

func snapshotOf(c Credentials) *Snapshot {
	return &Snapshot{
		AccessToken:     c.AccessToken,
		RefreshToken:    c.RefreshToken,
		UserID:          c.UserID,
		Role:            c.Role,
		IsAuthenticated: c.IsAuthenticated,
	}
}
