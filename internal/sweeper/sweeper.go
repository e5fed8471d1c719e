package sweeper

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"casemail-go/internal/config"
	"casemail-go/internal/metrics"
)

// Store is the slice of the persistence layer the sweeper needs.
type Store interface {
	DeleteExpiredRecords(now time.Time) (records, attempts int64, err error)
	DeleteDedupLogsBefore(cutoff time.Time) (logs int64, err error)
}

// Result reports what one sweep removed.
type Result struct {
	DeletedRecords  int64 `json:"deleted_records"`
	DeletedAttempts int64 `json:"deleted_attempts"`
	DeletedLogs     int64 `json:"deleted_logs"`
}

// Sweeper deletes expired idempotency records (with their attempts) and stale
// deduplication logs on a fixed schedule. It runs outside the request path
// and its deletions are scoped by key, so live traffic is never blocked.
type Sweeper struct {
	cron         *cron.Cron
	entryID      cron.EntryID
	schedule     string
	logRetention time.Duration
	store        Store
	metrics      *metrics.Metrics
	isRunning    bool
	mu           sync.RWMutex
	wg           sync.WaitGroup
}

// New creates a sweeper from the retention configuration.
func New(cfg *config.RetentionConfig, store Store, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		schedule:     cfg.Schedule,
		logRetention: cfg.DedupLogRetention(),
		store:        store,
		metrics:      m,
	}
}

// Start schedules the sweep.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("sweeper is already running")
	}

	s.cron = cron.New(cron.WithSeconds())
	entryID, err := s.cron.AddFunc(s.schedule, s.run)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Retention sweeper started with schedule %q", s.schedule)
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Retention sweeper stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Retention sweeper stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the sweep schedule is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// run is the scheduled entry point. A failed sweep is logged and counted;
// the next scheduled run is unaffected.
func (s *Sweeper) run() {
	s.wg.Add(1)
	defer s.wg.Done()

	result, err := s.Sweep(time.Now())
	if err != nil {
		logrus.Errorf("Retention sweep failed: %v", err)
		s.metrics.SweepFailures.Inc()
		return
	}
	logrus.Infof("Retention sweep removed %d records, %d attempts, %d dedup logs",
		result.DeletedRecords, result.DeletedAttempts, result.DeletedLogs)
}

// Sweep deletes idempotency records expired at now with their attempts, and
// deduplication logs older than the retention period.
func (s *Sweeper) Sweep(now time.Time) (Result, error) {
	s.metrics.SweepRuns.Inc()

	var result Result

	records, attempts, err := s.store.DeleteExpiredRecords(now)
	if err != nil {
		return result, fmt.Errorf("failed to delete expired records: %w", err)
	}
	result.DeletedRecords = records
	result.DeletedAttempts = attempts

	logs, err := s.store.DeleteDedupLogsBefore(now.Add(-s.logRetention))
	if err != nil {
		return result, fmt.Errorf("failed to delete stale deduplication logs: %w", err)
	}
	result.DeletedLogs = logs

	s.metrics.SweepDeletedRecords.Add(float64(records))
	s.metrics.SweepDeletedLogs.Add(float64(logs))

	return result, nil
}

// RunOnce runs a sweep immediately (for manual triggering).
func (s *Sweeper) RunOnce() (Result, error) {
	logrus.Info("Running retention sweep once")
	return s.Sweep(time.Now())
}

// GetNextRun returns the time of the next scheduled sweep.
func (s *Sweeper) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time of the last scheduled sweep.
func (s *Sweeper) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Prev
}

// Wait waits for any in-flight sweep to finish.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}
