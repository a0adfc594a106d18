package sessions

import (
	errs "github.com/jrsteele09/school-portal/internal/errors"
	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*Store)(nil)

// Token returns the current access token as an oauth2.Token so the store can
// back an oauth2.NewClient transport. It never refreshes.
func (s *Store) Token() (*oauth2.Token, error) {
	creds := s.Credentials()
	if creds.AccessToken == "" {
		return nil, errs.ErrNotAuthenticated
	}
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: creds.RefreshToken,
	}
	if exp, ok := TokenExpiry(creds.AccessToken); ok {
		tok.Expiry = exp
	}
	return tok, nil
}
