package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/school-portal/apiclient"
	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/jrsteele09/school-portal/sessions"
	fakesessionrepo "github.com/jrsteele09/school-portal/sessions/repofakes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	achievementsPath = "api/Achivments/get"
	refreshPath      = "auth/refresh"
)

type recordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	HasAuth       bool
	RequestID     string
	ContentType   string
	Body          []byte
}

// mockBackend records every request and dispatches refresh calls and API
// calls to separate handlers.
type mockBackend struct {
	server    *httptest.Server
	mu        sync.Mutex
	api       []recordedRequest
	refresh   []recordedRequest
	onAPI     func(w http.ResponseWriter, r recordedRequest, attempt int)
	onRefresh func(w http.ResponseWriter, r recordedRequest, attempt int)
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()
	b := &mockBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, hasAuth := r.Header["Authorization"]
		rec := recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			HasAuth:       hasAuth,
			RequestID:     r.Header.Get("X-Request-ID"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          body,
		}

		b.mu.Lock()
		if r.URL.Path == "/"+refreshPath {
			b.refresh = append(b.refresh, rec)
			n := len(b.refresh)
			handler := b.onRefresh
			b.mu.Unlock()
			handler(w, rec, n)
			return
		}
		b.api = append(b.api, rec)
		n := len(b.api)
		handler := b.onAPI
		b.mu.Unlock()
		handler(w, rec, n)
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *mockBackend) apiRequests() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedRequest(nil), b.api...)
}

func (b *mockBackend) refreshRequests() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedRequest(nil), b.refresh...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func okByToken(token string, body string) func(http.ResponseWriter, recordedRequest, int) {
	return func(w http.ResponseWriter, r recordedRequest, _ int) {
		if r.Authorization != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, `{"message":"expired"}`)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func status(code int, body string) func(http.ResponseWriter, recordedRequest, int) {
	return func(w http.ResponseWriter, _ recordedRequest, _ int) {
		writeJSON(w, code, body)
	}
}

func newStore(t *testing.T) (*sessions.Store, *fakesessionrepo.FakeSessionRepo) {
	t.Helper()
	repo := fakesessionrepo.NewFakeSessionRepo()
	return sessions.NewStore(context.Background(), repo), repo
}

func newClient(t *testing.T, b *mockBackend, store apiclient.SessionStore, options ...apiclient.Option) *apiclient.Client {
	t.Helper()
	c, err := apiclient.New(b.server.URL, store, options...)
	require.NoError(t, err)
	return c
}

func loggedIn() sessions.Credentials {
	return sessions.Credentials{
		AccessToken:     "A1",
		RefreshToken:    "R1",
		UserID:          "u1",
		Role:            "grad admin",
		IsAuthenticated: true,
	}
}

func TestDo_RefreshAndRetryScenario(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = okByToken("A2", `[{"title":"Award"}]`)
	b.onRefresh = func(w http.ResponseWriter, r recordedRequest, _ int) {
		if r.Authorization != "Bearer R1" {
			writeJSON(w, http.StatusUnauthorized, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"accessToken":"A2","refreshToken":"R2"}`)
	}

	store, repo := newStore(t)
	require.True(t, store.Credentials().Empty())
	store.SetCredentials(loggedIn())
	require.Equal(t, "grad admin", store.Role())

	reg := prometheus.NewRegistry()
	metrics := apiclient.NewMetrics(reg)
	c := newClient(t, b, store, apiclient.WithMetrics(metrics))

	resp, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[{"title":"Award"}]`, string(resp.Body))

	api := b.apiRequests()
	require.Len(t, api, 2)
	require.Equal(t, "Bearer A1", api[0].Authorization)
	require.Equal(t, "Bearer A2", api[1].Authorization)
	require.Equal(t, "/"+achievementsPath, api[1].Path)
	require.NotEmpty(t, api[0].RequestID)
	require.Equal(t, api[0].RequestID, api[1].RequestID)

	refresh := b.refreshRequests()
	require.Len(t, refresh, 1)
	require.Equal(t, http.MethodPost, refresh[0].Method)
	require.Equal(t, "Bearer R1", refresh[0].Authorization)
	require.Empty(t, refresh[0].Body)

	require.Equal(t, sessions.Credentials{
		AccessToken:     "A2",
		RefreshToken:    "R2",
		UserID:          "u1",
		Role:            "grad admin",
		IsAuthenticated: true,
	}, store.Credentials())
	require.Equal(t, "A2", repo.Snapshot().AccessToken)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("GET "+achievementsPath, apiclient.OutcomeSuccess)))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.ForcedLogouts))
}

func TestDo_RetriesAtMostOnce(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = status(http.StatusUnauthorized, `{"message":"nope"}`)
	b.onRefresh = status(http.StatusOK, `{"accessToken":"A2","refreshToken":"R2"}`)

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c := newClient(t, b, store)

	_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.NotErrorIs(t, err, errs.ErrSessionExpired)

	var reqErr *apiclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	require.JSONEq(t, `{"message":"nope"}`, string(reqErr.Body))

	require.Len(t, b.apiRequests(), 2)
	require.Len(t, b.refreshRequests(), 1)

	// The session keeps the refreshed credentials.
	require.Equal(t, "A2", store.AccessToken())
	require.True(t, store.IsAuthenticated())
}

func TestDo_RefreshFailureLogsOut(t *testing.T) {
	for _, tc := range []struct {
		name    string
		refresh func(http.ResponseWriter, recordedRequest, int)
	}{
		{name: "refresh unauthorized", refresh: status(http.StatusUnauthorized, `{}`)},
		{name: "refresh server error", refresh: status(http.StatusInternalServerError, `{}`)},
		{name: "refresh without access token", refresh: status(http.StatusOK, `{"refreshToken":"R2"}`)},
		{name: "refresh invalid json", refresh: status(http.StatusOK, `<html>`)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := newMockBackend(t)
			b.onAPI = status(http.StatusUnauthorized, `{"message":"expired"}`)
			b.onRefresh = tc.refresh

			store, repo := newStore(t)
			store.SetCredentials(loggedIn())
			metrics := apiclient.NewMetrics(nil)
			c := newClient(t, b, store, apiclient.WithMetrics(metrics))

			_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
			require.ErrorIs(t, err, errs.ErrSessionExpired)
			require.ErrorIs(t, err, errs.ErrUnauthorized)

			var expired *apiclient.SessionExpiredError
			require.ErrorAs(t, err, &expired)
			require.Equal(t, achievementsPath, expired.Original.Path)
			require.Equal(t, http.StatusUnauthorized, expired.Original.StatusCode)

			var reqErr *apiclient.RequestError
			require.ErrorAs(t, err, &reqErr)
			require.Equal(t, achievementsPath, reqErr.Path)

			require.True(t, store.Credentials().Empty())
			require.False(t, store.IsAuthenticated())
			require.Nil(t, repo.Snapshot())

			require.Len(t, b.apiRequests(), 1)
			require.Len(t, b.refreshRequests(), 1)
			require.Equal(t, 1.0, testutil.ToFloat64(metrics.ForcedLogouts))
		})
	}
}

// failingRefreshTransport drops every call to the refresh endpoint.
type failingRefreshTransport struct{}

func (failingRefreshTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.URL.Path == "/"+refreshPath {
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(r)
}

func TestDo_RefreshNetworkFailureLogsOut(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = status(http.StatusUnauthorized, `{}`)

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c := newClient(t, b, store, apiclient.WithHTTPClient(&http.Client{Transport: failingRefreshTransport{}}))

	_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
	require.ErrorIs(t, err, errs.ErrSessionExpired)

	var expired *apiclient.SessionExpiredError
	require.ErrorAs(t, err, &expired)
	require.ErrorIs(t, expired.Cause, errs.ErrNetwork)
	require.True(t, store.Credentials().Empty())
	require.Empty(t, b.refreshRequests())
}

func TestDo_NoRefreshTokenLogsOut(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = status(http.StatusUnauthorized, `{}`)
	b.onRefresh = status(http.StatusOK, `{"accessToken":"A2"}`)

	store, _ := newStore(t)
	store.SetCredentials(sessions.Credentials{AccessToken: "A1", IsAuthenticated: true})
	c := newClient(t, b, store)

	_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
	require.ErrorIs(t, err, errs.ErrSessionExpired)
	require.Empty(t, b.refreshRequests())
	require.True(t, store.Credentials().Empty())
}

func TestDo_RefreshKeepsFieldsTheBackendOmits(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = okByToken("A2", `{}`)
	b.onRefresh = status(http.StatusOK, `{"accessToken":"A2"}`)

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c := newClient(t, b, store)

	_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
	require.NoError(t, err)
	require.Equal(t, sessions.Credentials{
		AccessToken:     "A2",
		RefreshToken:    "R1",
		UserID:          "u1",
		Role:            "grad admin",
		IsAuthenticated: true,
	}, store.Credentials())
}

func TestDo_NoAuthorizationHeaderWithoutToken(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = status(http.StatusOK, `[]`)

	store, _ := newStore(t)
	c := newClient(t, b, store)

	_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
	require.NoError(t, err)

	api := b.apiRequests()
	require.Len(t, api, 1)
	require.False(t, api[0].HasAuth)
}

func TestDo_OtherFailuresAreNotRefreshed(t *testing.T) {
	for _, tc := range []struct {
		name   string
		code   int
		target error
	}{
		{name: "bad request", code: http.StatusBadRequest, target: errs.ErrRequestFailed},
		{name: "forbidden", code: http.StatusForbidden, target: errs.ErrForbidden},
		{name: "not found", code: http.StatusNotFound, target: errs.ErrNotFound},
		{name: "server error", code: http.StatusInternalServerError, target: errs.ErrRequestFailed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := newMockBackend(t)
			b.onAPI = status(tc.code, `{"error":"x"}`)
			b.onRefresh = status(http.StatusOK, `{"accessToken":"A2"}`)

			store, _ := newStore(t)
			store.SetCredentials(loggedIn())
			c := newClient(t, b, store)

			_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
			require.ErrorIs(t, err, tc.target)

			var reqErr *apiclient.RequestError
			require.ErrorAs(t, err, &reqErr)
			require.Equal(t, tc.code, reqErr.StatusCode)

			require.Len(t, b.apiRequests(), 1)
			require.Empty(t, b.refreshRequests())
			require.Equal(t, loggedIn(), store.Credentials())
		})
	}
}

func TestDo_NetworkErrorIsNotRefreshed(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c, err := apiclient.New(deadURL, store)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
	require.ErrorIs(t, err, errs.ErrNetwork)

	var netErr *apiclient.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, loggedIn(), store.Credentials())
}

func TestDo_TimeoutIsNetworkError(t *testing.T) {
	b := newMockBackend(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	b.onAPI = func(w http.ResponseWriter, _ recordedRequest, _ int) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		writeJSON(w, http.StatusOK, `{}`)
	}

	store, _ := newStore(t)
	c := newClient(t, b, store, apiclient.WithTimeout(50*time.Millisecond))

	_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
	require.ErrorIs(t, err, errs.ErrNetwork)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_ResponseLargerThanLimitFails(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = func(w http.ResponseWriter, r recordedRequest, _ int) {
		writeJSON(w, http.StatusOK, r.Query.Get("body"))
	}

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c := newClient(t, b, store, apiclient.WithMaxResponseBytes(10))

	do := func(body string) (*apiclient.Response, error) {
		return c.Do(context.Background(), apiclient.Operation{
			Method: http.MethodGet,
			Path:   achievementsPath,
			Query:  url.Values{"body": {body}},
		})
	}

	resp, err := do(`"12345678"`)
	require.NoError(t, err)
	require.Equal(t, `"12345678"`, string(resp.Body))

	_, err = do(`"123456789"`)
	require.ErrorIs(t, err, errs.ErrResponseTooLarge)
	require.NotErrorIs(t, err, errs.ErrNetwork)
	require.Equal(t, loggedIn(), store.Credentials())
}

func TestDo_SkipAuthNeverRefreshes(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = status(http.StatusUnauthorized, `{"message":"bad password"}`)
	b.onRefresh = status(http.StatusOK, `{"accessToken":"A2"}`)

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c := newClient(t, b, store)

	_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodPost, Path: "api/Teacher", Body: map[string]string{"email": "a@b.c"}, SkipAuth: true})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.NotErrorIs(t, err, errs.ErrSessionExpired)

	api := b.apiRequests()
	require.Len(t, api, 1)
	require.False(t, api[0].HasAuth)
	require.Empty(t, b.refreshRequests())
	require.Equal(t, loggedIn(), store.Credentials())
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const callers = 8

	b := newMockBackend(t)
	var arrived sync.WaitGroup
	arrived.Add(callers)
	b.onAPI = func(w http.ResponseWriter, r recordedRequest, n int) {
		if n <= callers {
			// Hold every first attempt until all callers have sent theirs.
			arrived.Done()
			arrived.Wait()
		}
		okByToken("A2", `{"ok":true}`)(w, r, n)
	}
	var refreshes atomic.Int32
	b.onRefresh = func(w http.ResponseWriter, r recordedRequest, _ int) {
		refreshes.Add(1)
		time.Sleep(50 * time.Millisecond)
		if r.Authorization != "Bearer R1" {
			// A rotated refresh token cannot be reused.
			writeJSON(w, http.StatusUnauthorized, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"accessToken":"A2","refreshToken":"R2"}`)
	}

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c := newClient(t, b, store)

	var wg sync.WaitGroup
	errCh := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), refreshes.Load())
	require.Equal(t, "A2", store.AccessToken())
	require.Equal(t, "R2", store.RefreshToken())
	require.Len(t, b.apiRequests(), 2*callers)
}

func TestDo_RetryReplaysBody(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = okByToken("A2", `{"id":"p1"}`)
	b.onRefresh = status(http.StatusOK, `{"accessToken":"A2"}`)

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c := newClient(t, b, store)

	var out struct {
		ID string `json:"id"`
	}
	err := c.DoJSON(context.Background(), apiclient.Operation{
		Method: http.MethodPost,
		Path:   "api/Projects_Information",
		Body:   map[string]string{"name": "Robotics"},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, "p1", out.ID)

	api := b.apiRequests()
	require.Len(t, api, 2)
	require.JSONEq(t, `{"name":"Robotics"}`, string(api[0].Body))
	require.Equal(t, api[0].Body, api[1].Body)
	require.Equal(t, "application/json", api[1].ContentType)
}

func TestDo_MultipartAndQuery(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = status(http.StatusOK, ``)

	store, _ := newStore(t)
	store.SetCredentials(loggedIn())
	c := newClient(t, b, store)

	_, err := c.Do(context.Background(), apiclient.Operation{
		Method: http.MethodPost,
		Path:   "api/Achivments/add",
		Multipart: &apiclient.Multipart{
			Fields: map[string]string{"title": "Award"},
			Files:  []apiclient.FilePart{{Field: "image", FileName: "award.png", ContentType: "image/png", Content: []byte{0x89, 'P', 'N', 'G'}}},
		},
	})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), apiclient.Operation{
		Method: http.MethodDelete,
		Path:   "api/Achivments",
		Query:  url.Values{"title": {"Science Fair"}},
	})
	require.NoError(t, err)

	api := b.apiRequests()
	require.Len(t, api, 2)
	require.Contains(t, api[0].ContentType, "multipart/form-data; boundary=")
	require.Contains(t, string(api[0].Body), `name="title"`)
	require.Contains(t, string(api[0].Body), `filename="award.png"`)
	require.Equal(t, "Science Fair", api[1].Query.Get("title"))
	require.Equal(t, http.MethodDelete, api[1].Method)
}

func TestDo_BodyAndMultipartAreExclusive(t *testing.T) {
	store, _ := newStore(t)
	c, err := apiclient.New("http://localhost:1", store)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), apiclient.Operation{
		Method:    http.MethodPost,
		Path:      "x",
		Body:      map[string]string{},
		Multipart: &apiclient.Multipart{},
	})
	require.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestDoJSON_DecodeError(t *testing.T) {
	b := newMockBackend(t)
	b.onAPI = status(http.StatusOK, `not json`)

	store, _ := newStore(t)
	c := newClient(t, b, store)

	var out []map[string]any
	err := c.DoJSON(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: achievementsPath}, &out)
	require.Error(t, err)

	var syntaxErr *json.SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
}

func TestNew(t *testing.T) {
	store, _ := newStore(t)

	_, err := apiclient.New("localhost:5000", store)
	require.ErrorIs(t, err, errs.ErrInvalidRequest)

	_, err = apiclient.New("ftp://example.com", store)
	require.ErrorIs(t, err, errs.ErrInvalidRequest)

	_, err = apiclient.New("https://example.com", nil)
	require.ErrorIs(t, err, errs.ErrInvalidRequest)

	c, err := apiclient.New("https://example.com/backend", store)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/backend/", c.BaseURL())
}

func TestDo_BaseURLWithPathPrefix(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, `{}`)
	}))
	t.Cleanup(server.Close)

	store, _ := newStore(t)
	c, err := apiclient.New(server.URL+"/backend", store)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), apiclient.Operation{Method: http.MethodGet, Path: "/" + achievementsPath})
	require.NoError(t, err)
	require.Equal(t, "/backend/"+achievementsPath, gotPath)
}
