package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/school-portal/internal/errors"
)

const refreshKey = "refresh"

var errNoRefreshToken = errors.New("no refresh token")

// recoverSession makes the access token usable again after req got a 401.
// Concurrent callers share one in-flight refresh. When the store already
// holds a different access token than the one req carried, a concurrent
// call has refreshed and req only needs its retry.
func (c *Client) recoverSession(ctx context.Context, req *pendingRequest, original *RequestError) error {
	if current := c.session.AccessToken(); current != "" && current != req.sentToken {
		return nil
	}

	// The shared refresh must not be cancelled by whichever caller started it.
	_, err, shared := c.refreshes.Do(refreshKey, func() (interface{}, error) {
		// A flight that finished between the check above and this call has
		// already replaced the token.
		if current := c.session.AccessToken(); current != "" && current != req.sentToken {
			return nil, nil
		}

		refreshCtx := context.WithoutCancel(ctx)
		err := c.refresh(refreshCtx)
		c.metrics.observeRefresh(err)
		if err != nil {
			c.logger.Warn().Err(err).
				Str("request_id", req.requestID).
				Str("operation", req.op.name()).
				Msg("Refresh failed, logging out")
			c.session.Logout()
			return nil, err
		}
		c.logger.Info().
			Str("request_id", req.requestID).
			Str("operation", req.op.name()).
			Msg("Access token refreshed")
		return nil, nil
	})
	if err != nil {
		return &SessionExpiredError{Original: original, Cause: err}
	}

	if shared {
		c.logger.Debug().Str("request_id", req.requestID).Msg("Joined in-flight refresh")
	}
	return nil
}

// refresh exchanges the refresh token for a new credential set and writes it
// to the session. A 401 from the refresh endpoint is a plain failure.
func (c *Client) refresh(ctx context.Context) error {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		return errNoRefreshToken
	}

	resp, err := c.roundTrip(ctx, http.MethodPost, c.refreshPath, nil, payload{}, refreshToken, uuid.NewString())
	if err != nil {
		return &NetworkError{Operation: "refresh", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Operation:  "refresh",
			Method:     http.MethodPost,
			Path:       c.refreshPath,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
	}

	var tokens TokenResponse
	if err := json.Unmarshal(resp.Body, &tokens); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if !tokens.hasAccessToken() {
		return errs.ErrMissingAccessToken
	}

	c.session.SetCredentials(tokens.Credentials(c.session.Credentials()))
	return nil
}
