package portal

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/jrsteele09/school-portal/apiclient"
	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/jrsteele09/school-portal/sessions"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges a staff email and password for a credential set and
// stores it as the current session. Login is sent without credentials and a
// rejected login never triggers a refresh.
func (s *Service) Login(ctx context.Context, email, password string) (sessions.Credentials, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return sessions.Credentials{}, errs.Wrapf(errs.ErrInvalidRequest, "Service.Login email %q", email)
	}
	if password == "" {
		return sessions.Credentials{}, errs.Wrapf(errs.ErrInvalidRequest, "Service.Login password required")
	}

	var tokens apiclient.TokenResponse
	err := s.client.DoJSON(ctx, apiclient.Operation{
		Name:     "login",
		Method:   http.MethodPost,
		Path:     PathLogin,
		Body:     loginRequest{Email: email, Password: password},
		SkipAuth: true,
	}, &tokens)
	if err != nil {
		return sessions.Credentials{}, errs.Wrapf(err, "Service.Login")
	}
	if tokens.AccessToken == nil || *tokens.AccessToken == "" {
		return sessions.Credentials{}, errs.Wrapf(errs.ErrMissingAccessToken, "Service.Login")
	}

	creds := tokens.Credentials(sessions.Credentials{})
	creds.IsAuthenticated = true
	s.session.SetCredentials(creds)
	return creds, nil
}

// Logout clears the local session. The backend keeps no server-side session
// for the client to revoke.
func (s *Service) Logout() {
	s.session.Logout()
}
