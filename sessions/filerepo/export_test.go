package filerepo

// SetWatchReady registers fn to run once Watch is listening for changes.
func SetWatchReady(r *FileSessionRepo, fn func()) {
	r.watchReady = fn
}
