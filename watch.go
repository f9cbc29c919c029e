package daemonize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// watchDebounce coalesces rapid pid record rewrites into one read
const watchDebounce = 10 * time.Millisecond

// PIDEvent is delivered by WatchPID when the daemon's pid record
// changes.
type PIDEvent struct {
	// PID is the recorded process identifier
	PID int
	// Err is set instead of PID when the record could not be read
	Err error
}

// WatchCleanupFunc stops a watch and releases its resources
type WatchCleanupFunc func() error

// WatchPID watches the directory containing the pid record at path and
// emits an event whenever the record is created or rewritten. It is
// the launcher-side complement to bootstrap: the original invocation
// exits before the final daemon writes its pid, so an interested
// launcher observes the record instead.
//
// The returned channel is closed by the cleanup function or when ctx
// is cancelled.
func WatchPID(ctx context.Context, path string) (<-chan PIDEvent, WatchCleanupFunc, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	ch := make(chan PIDEvent, 10)

	// Stopper context manages the watcher goroutine lifecycle
	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	var state struct {
		mu        sync.Mutex
		lastPID   int
		debouncer *time.Timer
	}

	pf := NewPIDFile(path)
	readAndSend := func() {
		if sctx.IsStopping() {
			return
		}

		pid, err := pf.Read()
		if err != nil {
			// Absent record: the daemon has not reached its final
			// identity yet, or has cleaned up. Not an event.
			if os.IsNotExist(err) {
				return
			}
			select {
			case ch <- PIDEvent{Err: err}:
			case <-sctx.Stopping():
			}
			return
		}

		state.mu.Lock()
		defer state.mu.Unlock()
		if pid == state.lastPID {
			return
		}
		state.lastPID = pid

		select {
		case ch <- PIDEvent{PID: pid}:
		case <-sctx.Stopping():
		}
	}

	// Initial read, in case the record already exists
	readAndSend()

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			state.mu.Lock()
			if state.debouncer != nil {
				state.debouncer.Stop()
			}
			state.mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				state.mu.Lock()
				if state.debouncer != nil {
					state.debouncer.Stop()
				}
				state.debouncer = time.AfterFunc(watchDebounce, readAndSend)
				state.mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil && !sctx.IsStopping() {
					select {
					case ch <- PIDEvent{Err: err}:
					case <-sctx.Stopping():
						return nil
					}
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}

// WaitForPID blocks until a pid record appears at path or ctx is done,
// and returns the recorded process identifier.
func WaitForPID(ctx context.Context, path string) (int, error) {
	ch, cleanup, err := WatchPID(ctx, path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = cleanup() }()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return 0, errors.New("daemonize: watch closed")
			}
			if ev.Err != nil {
				// Transient: the record may be mid-rewrite
				continue
			}
			if ev.PID > 0 {
				return ev.PID, nil
			}
		}
	}
}
