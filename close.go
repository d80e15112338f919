package trajgo

// Close releases the engine: the active model collection is unloaded and
// further load, build, and classify calls fail with ErrClosed. Close is
// idempotent.
func (e *Engine) Close() error {
	if e == nil || e.closed.Swap(true) {
		return nil
	}

	var firstErr error
	if old := e.classifier.Swap(nil); old != nil {
		if err := old.Collection().Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
