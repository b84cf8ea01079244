package ingest

import "sync/atomic"

// Lock is a non-blocking try-lock that keeps two ingestion runs from
// writing at the same time.
type Lock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *Lock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *Lock) Release() {
	l.state.Store(0)
}
