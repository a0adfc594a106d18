package sessions

import "context"

// Repo persists the session snapshot under StorageKey.
type Repo interface {
	// Load returns the stored snapshot, or errs.ErrNotFound when there is none
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the stored snapshot
	Save(ctx context.Context, snapshot *Snapshot) error

	// Delete removes the stored snapshot. Deleting a missing snapshot is not an error
	Delete(ctx context.Context) error
}
