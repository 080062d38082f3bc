package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"traderesonance/server/internal/database"
	"traderesonance/server/internal/models"
)

// Deduper is the part of the store the sweep needs
type Deduper interface {
	DedupeEntries(ctx context.Context) (database.DedupeResult, error)
}

// Publisher receives a deduped event when the sweep removed rows
type Publisher interface {
	Publish(event models.EntryEvent)
}

// Scheduler periodically runs the dedup pass so rows written around the
// per-request reconciliation still collapse.
type Scheduler struct {
	store    Deduper
	events   Publisher
	logger   *logrus.Logger
	interval time.Duration
	timeout  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	jobMutex sync.Mutex // one sweep at a time
}

// NewScheduler creates a scheduler. events may be nil.
func NewScheduler(store Deduper, events Publisher, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		store:    store,
		events:   events,
		logger:   logger,
		interval: interval,
		timeout:  time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep. A non-positive interval disables it.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info("Dedupe sweep disabled")
		return
	}
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce runs a single sweep and reports how many rows it removed.
func (s *Scheduler) RunOnce() int {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.store.DedupeEntries(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Dedupe sweep failed")
		return 0
	}

	fields := logrus.Fields{
		"scanned":     result.Scanned,
		"removed":     result.Removed,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if result.Removed == 0 {
		s.logger.WithFields(fields).Debug("Dedupe sweep found nothing")
		return 0
	}

	s.logger.WithFields(fields).Info("Dedupe sweep removed duplicates")
	if s.events != nil {
		s.events.Publish(models.EntryEvent{Kind: models.EventDeduped, Count: result.Removed})
	}
	return result.Removed
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}
