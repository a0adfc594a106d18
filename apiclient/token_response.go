package apiclient

import (
	"github.com/jrsteele09/school-portal/internal/utils"
	"github.com/jrsteele09/school-portal/sessions"
)

// TokenResponse is the credential set returned by the login and refresh
// endpoints. Pointer fields distinguish an absent field from an empty one.
type TokenResponse struct {
	// AccessToken is the short-lived bearer credential. Required.
	AccessToken *string `json:"accessToken,omitempty"`

	// RefreshToken is present when the backend rotates refresh tokens.
	// When absent the previous refresh token stays valid.
	RefreshToken *string `json:"refreshToken,omitempty"`

	UserID *string `json:"userId,omitempty"`
	Role   *string `json:"role,omitempty"`

	// IsAuthenticated is rarely sent; a successful exchange implies true.
	IsAuthenticated *bool `json:"isAuthenticated,omitempty"`
}

// Credentials merges the response over prev. Fields the backend did not
// return keep their previous values.
func (t TokenResponse) Credentials(prev sessions.Credentials) sessions.Credentials {
	refreshToken := utils.ValueOr(t.RefreshToken, prev.RefreshToken)
	if refreshToken == "" {
		refreshToken = prev.RefreshToken
	}
	return sessions.Credentials{
		AccessToken:     utils.Value(t.AccessToken),
		RefreshToken:    refreshToken,
		UserID:          utils.ValueOr(t.UserID, prev.UserID),
		Role:            utils.ValueOr(t.Role, prev.Role),
		IsAuthenticated: utils.ValueOr(t.IsAuthenticated, true),
	}
}

func (t TokenResponse) hasAccessToken() bool {
	return utils.Value(t.AccessToken) != ""
}
