package filerepo

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultDebounce = 100 * time.Millisecond

// Watch calls onChange whenever another writer replaces or removes the
// snapshot file, until ctx is done. Events arriving within the debounce
// window of the first one are folded into a single call, so onChange runs at
// most once per window even under continuous writes. The parent directory is
// watched because atomic writes replace the file.
func (r *FileSessionRepo) Watch(ctx context.Context, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "FileSessionRepo.Watch NewWatcher")
	}
	defer fsw.Close()

	dir := filepath.Dir(r.path)
	if err := fsw.Add(dir); err != nil {
		return errors.Wrapf(err, "FileSessionRepo.Watch Add %s", dir)
	}
	if r.watchReady != nil {
		r.watchReady()
	}

	// pending is nil until an event arms the debounce window.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-pending:
			pending = nil
			onChange()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending == nil {
				pending = time.After(defaultDebounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Err(err).Str("path", r.path).Msg("Session file watcher error")
		}
	}
}
