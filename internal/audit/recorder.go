package audit

import (
	"context"
	"sync"
	"time"
)

// Logger is the interface for audit logging operations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	// recorderBufferSize bounds the number of entries waiting for storage.
	recorderBufferSize = 256

	// writeTimeout bounds a single storage write.
	writeTimeout = 5 * time.Second
)

// Recorder writes activity entries on a background goroutine.
//
// Record never blocks: observers run synchronously inside registry and
// engine notification paths, so a slow disk must not stall a mutation.
// When the buffer is full the entry is dropped and counted.
type Recorder struct {
	repo   Repository
	logger Logger

	entries chan Entry
	done    chan struct{}

	mu      sync.Mutex
	dropped int
	started bool
}

// NewRecorder creates a recorder over the given repository.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{
		repo:    repo,
		logger:  noopLogger{},
		entries: make(chan Entry, recorderBufferSize),
		done:    make(chan struct{}),
	}
}

// SetLogger sets the logger for recorder operations.
func (r *Recorder) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Start launches the background writer. It stops when ctx is cancelled,
// draining any buffered entries first.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go r.run(ctx)
}

// Done is closed after the writer has drained and exited.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Record queues an entry for storage. Entries are dropped when the buffer
// is full.
func (r *Recorder) Record(entry Entry) {
	select {
	case r.entries <- entry:
	default:
		r.mu.Lock()
		r.dropped++
		n := r.dropped
		r.mu.Unlock()
		r.logger.Warn("activity buffer full, entry dropped",
			"action", entry.Action,
			"dropped_total", n,
		)
	}
}

// DroppedCount returns the number of entries dropped so far.
func (r *Recorder) DroppedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case entry := <-r.entries:
			r.write(entry)
		case <-ctx.Done():
			// Drain what is already buffered, then stop.
			for {
				select {
				case entry := <-r.entries:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &entry); err != nil {
		r.logger.Error("writing activity entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
