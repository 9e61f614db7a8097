// Package audit records sign-ins off the request path.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/auth-service/internal/shared"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
	"go.uber.org/zap"
)

var (
	// ErrBufferFull is returned when the queue cannot take another entry
	ErrBufferFull = errors.New("login history buffer full")
	// ErrNotStarted is returned when the recorder is not running
	ErrNotStarted = errors.New("login history recorder not started")
)

type event struct {
	entry     *models.LoginHistory
	requestID string
}

// Recorder writes login history entries with a pool of background workers
type Recorder struct {
	repo        repositories.LoginHistoryRepository
	logger      *zap.Logger
	events      chan event
	workerCount int
	bufferSize  int
	timeout     time.Duration
	wg          sync.WaitGroup
	mu          sync.Mutex
	started     bool
	failed      int64
	dropped     int64
}

// Config holds configuration for the Recorder
type Config struct {
	BufferSize  int           // Size of the entry buffer channel
	WorkerCount int           // Number of concurrent workers
	Timeout     time.Duration // Per-insert deadline
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1024,
		WorkerCount: 2,
		Timeout:     5 * time.Second,
	}
}

// NewRecorder creates a recorder. Call Start before RecordLogin.
func NewRecorder(repo repositories.LoginHistoryRepository, logger *zap.Logger, config Config) *Recorder {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Recorder{
		repo:        repo,
		logger:      logger,
		events:      make(chan event, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		timeout:     config.Timeout,
	}
}

// Start launches the workers
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("login history recorder already started")
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.started = true
	r.logger.Info("login history recorder started",
		zap.Int("worker_count", r.workerCount),
		zap.Int("buffer_size", r.bufferSize))
	return nil
}

// Stop stops accepting entries and waits for queued ones to be written
func (r *Recorder) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.started = false
	close(r.events)
	r.mu.Unlock()

	r.logger.Info("stopping login history recorder", zap.Int("pending_entries", len(r.events)))

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("login history recorder stop timeout after %v", timeout)
	}
}

// RecordLogin queues a sign-in without blocking. A full buffer drops the
// entry and reports ErrBufferFull.
func (r *Recorder) RecordLogin(ctx context.Context, userID uuid.UUID, userAgent, ip string) error {
	ev := event{
		entry:     models.NewLoginHistory(userID, userAgent, ip),
		requestID: shared.RequestID(ctx),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return ErrNotStarted
	}

	select {
	case r.events <- ev:
		return nil
	default:
		r.dropped++
		return ErrBufferFull
	}
}

func (r *Recorder) worker(id int) {
	defer r.wg.Done()

	for ev := range r.events {
		if err := r.write(ev.entry); err != nil {
			r.mu.Lock()
			r.failed++
			r.mu.Unlock()
			r.logger.Error("failed to record login",
				zap.Int("worker_id", id),
				zap.String("request_id", ev.requestID),
				zap.String("user_id", ev.entry.UserID.String()),
				zap.Error(err))
		}
	}
}

func (r *Recorder) write(entry *models.LoginHistory) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.repo.Record(ctx, entry)
}

// Stats represents recorder statistics
type Stats struct {
	BufferSize     int
	PendingEntries int
	WorkerCount    int
	Started        bool
	Failed         int64
	Dropped        int64
}

// GetStats returns statistics about the recorder
func (r *Recorder) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		BufferSize:     r.bufferSize,
		PendingEntries: len(r.events),
		WorkerCount:    r.workerCount,
		Started:        r.started,
		Failed:         r.failed,
		Dropped:        r.dropped,
	}
}
