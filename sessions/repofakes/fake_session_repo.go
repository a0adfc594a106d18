package fakesessionrepo

import (
	"context"
	"sync"

	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/jrsteele09/school-portal/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	snapshot    *sessions.Snapshot
	loadErr     error
	saveErr     error
	saveCalls   int
	deleteCalls int
	saved       []string
	lock        sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{}
}

func (sr *FakeSessionRepo) Load(_ context.Context) (*sessions.Snapshot, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	if sr.loadErr != nil {
		return nil, sr.loadErr
	}
	if sr.snapshot == nil {
		return nil, errs.ErrNotFound
	}
	snapshot := *sr.snapshot
	return &snapshot, nil
}

func (sr *FakeSessionRepo) Save(_ context.Context, snapshot *sessions.Snapshot) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	sr.saveCalls++
	if sr.saveErr != nil {
		return sr.saveErr
	}
	stored := *snapshot
	sr.snapshot = &stored
	sr.saved = append(sr.saved, stored.AccessToken)
	return nil
}

func (sr *FakeSessionRepo) Delete(_ context.Context) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	sr.deleteCalls++
	sr.snapshot = nil
	return nil
}

// Put stores snapshot directly, bypassing the call counters.
func (sr *FakeSessionRepo) Put(snapshot *sessions.Snapshot) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.snapshot = snapshot
}

// Snapshot returns the stored snapshot, nil when there is none.
func (sr *FakeSessionRepo) Snapshot() *sessions.Snapshot {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	if sr.snapshot == nil {
		return nil
	}
	snapshot := *sr.snapshot
	return &snapshot
}

func (sr *FakeSessionRepo) FailLoad(err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.loadErr = err
}

func (sr *FakeSessionRepo) FailSave(err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.saveErr = err
}

func (sr *FakeSessionRepo) SaveCalls() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.saveCalls
}

func (sr *FakeSessionRepo) DeleteCalls() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.deleteCalls
}

// SavedAccessTokens returns the access token of every successful Save, in
// call order.
func (sr *FakeSessionRepo) SavedAccessTokens() []string {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return append([]string(nil), sr.saved...)
}
