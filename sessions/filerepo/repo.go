// Package filerepo persists the session snapshot as a JSON file, optionally
// sealed with a secret so the tokens are not readable at rest.
package filerepo

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/jrsteele09/school-portal/sessions"
	"github.com/pkg/errors"
)

const fileMode = 0o600

var _ sessions.Repo = (*FileSessionRepo)(nil)

// FileSessionRepo stores one snapshot in one file. Writes go through a temp
// file and a rename so readers never observe a partial snapshot.
type FileSessionRepo struct {
	path   string
	sealer *sealer
	mu     sync.Mutex

	watchReady func() // called once Watch has registered with fsnotify
}

type Option func(*FileSessionRepo)

// WithSecret seals the file contents with a key derived from secret. An
// empty secret leaves the file as plain JSON.
func WithSecret(secret string) Option {
	return func(r *FileSessionRepo) {
		if secret != "" {
			r.sealer = newSealer(secret)
		}
	}
}

func New(path string, options ...Option) *FileSessionRepo {
	r := &FileSessionRepo{path: filepath.Clean(path)}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *FileSessionRepo) Path() string {
	return r.path
}

func (r *FileSessionRepo) Load(_ context.Context) (*sessions.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "FileSessionRepo.Load ReadFile")
	}

	if r.sealer != nil {
		if data, err = r.sealer.open(data); err != nil {
			return nil, errs.Wrapf(errs.ErrMalformedSnapshot, "FileSessionRepo.Load %s: %v", r.path, err)
		}
	}

	var snapshot sessions.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errs.Wrapf(errs.ErrMalformedSnapshot, "FileSessionRepo.Load %s: %v", r.path, err)
	}
	return &snapshot, nil
}

func (r *FileSessionRepo) Save(_ context.Context, snapshot *sessions.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "FileSessionRepo.Save Marshal")
	}
	if r.sealer != nil {
		if data, err = r.sealer.seal(data); err != nil {
			return errors.Wrap(err, "FileSessionRepo.Save seal")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeAtomic(data)
}

func (r *FileSessionRepo) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "FileSessionRepo.Delete Remove")
	}
	return nil
}

func (r *FileSessionRepo) writeAtomic(data []byte) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "FileSessionRepo.Save MkdirAll")
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return errors.Wrap(err, "FileSessionRepo.Save CreateTemp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "FileSessionRepo.Save Write")
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return errors.Wrap(err, "FileSessionRepo.Save Chmod")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "FileSessionRepo.Save Close")
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return errors.Wrap(err, "FileSessionRepo.Save Rename")
	}
	return nil
}
