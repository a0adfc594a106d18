package sessions

import (
	"context"
	"sync"
	"time"

	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultPersistTimeout = 5 * time.Second

// Store is the single source of truth for the client's authentication
// identity. It is safe for concurrent use. Every mutation is persisted to the
// Repo before the mutating call returns.
type Store struct {
	mu    sync.RWMutex
	creds Credentials

	repo           Repo
	logger         zerolog.Logger
	nowFunc        func() time.Time
	persistTimeout time.Duration

	// Each mutation takes a ticket under mu and notifies in ticket order.
	seq        uint64
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64

	subsMu      sync.Mutex
	subscribers map[int]func(Credentials)
	nextSubID   int
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func WithPersistTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		s.persistTimeout = timeout
	}
}

// NewStore creates a store and rehydrates it from repo. A missing or
// malformed snapshot leaves the store in the logged-out state. A nil repo
// gives a store that is never persisted.
func NewStore(ctx context.Context, repo Repo, options ...StoreOption) *Store {
	s := &Store{
		repo:           repo,
		logger:         log.Logger,
		nowFunc:        time.Now,
		persistTimeout: defaultPersistTimeout,
		subscribers:    make(map[int]func(Credentials)),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	for _, opt := range options {
		opt(s)
	}

	if creds, err := s.load(ctx); err == nil {
		s.creds = creds
	} else if !errs.Is(err, errs.ErrNotFound) {
		s.logger.Warn().Err(err).Msg("Session snapshot discarded, starting logged out")
	}
	return s
}

// SetCredentials overwrites all fields with c and persists the result. It
// cannot fail: a persistence error is logged and the in-memory state stays
// authoritative.
func (s *Store) SetCredentials(c Credentials) {
	s.mu.Lock()
	s.creds = c
	s.persist(snapshotOf(c))
	s.notifyLocked(c)
}

// Logout clears every field and removes the stored snapshot, including one
// that was rejected at load time. Subscribers are only notified when the
// store held credentials.
func (s *Store) Logout() {
	s.mu.Lock()
	changed := !s.creds.Empty()
	s.creds = Credentials{}
	s.persist(nil)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.notifyLocked(Credentials{})
}

// Reload re-reads the snapshot from the repo, adopting it as a whole. A
// missing snapshot means another process logged out. Any other failure keeps
// the current state and is returned.
func (s *Store) Reload(ctx context.Context) error {
	creds, err := s.load(ctx)
	if err != nil && !errs.Is(err, errs.ErrNotFound) {
		return err
	}

	s.mu.Lock()
	if s.creds == creds {
		s.mu.Unlock()
		return nil
	}
	s.creds = creds
	s.notifyLocked(creds)
	return nil
}

// Credentials returns a copy of the stored fields.
func (s *Store) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

func (s *Store) AccessToken() string {
	return s.Credentials().AccessToken
}

func (s *Store) RefreshToken() string {
	return s.Credentials().RefreshToken
}

func (s *Store) UserID() string {
	return s.Credentials().UserID
}

func (s *Store) Role() string {
	return s.Credentials().Role
}

// IsAuthenticated is true only when the flag is set, an access token is
// present and that token is not known to be expired.
func (s *Store) IsAuthenticated() bool {
	creds := s.Credentials()
	return creds.IsAuthenticated &&
		creds.AccessToken != "" &&
		!tokenExpired(creds.AccessToken, s.nowFunc())
}

// Subscribe registers fn to be called with the new credentials after every
// change. Calls are serialized in mutation order; fn may read the store but
// must not mutate it. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Credentials)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subscribers, id)
	}
}

// notifyLocked releases s.mu, which the caller holds, and delivers c to the
// subscribers after every earlier mutation has been delivered.
func (s *Store) notifyLocked(c Credentials) {
	s.seq++
	ticket := s.seq
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for s.delivered != ticket-1 {
		s.notifyCond.Wait()
	}
	defer func() {
		s.delivered = ticket
		s.notifyCond.Broadcast()
	}()

	s.subsMu.Lock()
	fns := make([]func(Credentials), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) load(ctx context.Context) (Credentials, error) {
	if s.repo == nil {
		return Credentials{}, errs.ErrNotFound
	}

	snapshot, err := s.repo.Load(ctx)
	if err != nil {
		return Credentials{}, err
	}
	if snapshot == nil {
		return Credentials{}, errs.ErrNotFound
	}
	if err := snapshot.Validate(); err != nil {
		return Credentials{}, err
	}
	return snapshot.credentials(), nil
}

// persist writes snapshot, or deletes the stored one when snapshot is nil.
// Callers hold s.mu so writes reach the repo in mutation order.
func (s *Store) persist(snapshot *Snapshot) {
	if s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	var err error
	if snapshot == nil {
		err = s.repo.Delete(ctx)
	} else {
		err = s.repo.Save(ctx, snapshot)
	}
	if err != nil {
		s.logger.Err(err).Msg("Failed to persist session snapshot")
	}
}
