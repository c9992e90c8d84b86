// Package scheduler runs background dispatch of scheduled and interrupted communications
package scheduler

import (
	"context"
	"sync"
	"time"

	businessflow "github.com/rallyhq/rally/business_flow"
	"github.com/rallyhq/rally/config"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/utils"
	"go.uber.org/zap"
)

// CommunicationSource lists communications that need background dispatch
type CommunicationSource interface {
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Communication, error)
	ListStale(ctx context.Context, statuses []models.CommunicationStatus, updatedBefore time.Time, limit int) ([]*models.Communication, error)
}

// Dispatcher runs dispatches on behalf of the scheduler
type Dispatcher interface {
	DispatchScheduled(ctx context.Context, communicationID uint) error
	ResumeDispatch(ctx context.Context, communicationID uint) error
}

// CommunicationScheduler periodically dispatches due communications and resumes stale ones
type CommunicationScheduler struct {
	source     CommunicationSource
	dispatcher Dispatcher
	logger     *zap.Logger
	interval   time.Duration
	batchSize  int
	staleAfter time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCommunicationScheduler creates a scheduler from configuration
func NewCommunicationScheduler(
	source CommunicationSource,
	dispatcher Dispatcher,
	cfg config.SchedulerConfig,
	logger *zap.Logger,
) *CommunicationScheduler {
	s := &CommunicationScheduler{
		source:     source,
		dispatcher: dispatcher,
		logger:     logger.Named("scheduler"),
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		staleAfter: cfg.StaleAfter,
	}
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 20
	}
	if s.staleAfter <= 0 {
		s.staleAfter = 15 * time.Minute
	}
	return s
}

// Start launches the scheduler loop in a background goroutine
func (s *CommunicationScheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}(s.done)

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
		zap.Duration("stale_after", s.staleAfter),
	)
}

// Stop cancels the loop and waits for the current tick to finish
func (s *CommunicationScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// RunOnce performs a single scheduling pass
func (s *CommunicationScheduler) RunOnce(ctx context.Context) {
	s.dispatchDue(ctx)
	s.resumeStale(ctx)
}

func (s *CommunicationScheduler) dispatchDue(ctx context.Context) {
	due, err := s.source.ListDueScheduled(ctx, utils.UTCNow(), s.batchSize)
	if err != nil {
		s.logger.Error("list due communications failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("dispatching due communications", zap.Int("count", len(due)))

	for _, c := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.dispatcher.DispatchScheduled(ctx, c.ID); err != nil {
			s.logFailure("scheduled dispatch failed", c, err)
		}
	}
}

func (s *CommunicationScheduler) resumeStale(ctx context.Context) {
	stale, err := s.source.ListStale(ctx,
		[]models.CommunicationStatus{models.CommunicationStatusProcessing, models.CommunicationStatusSending},
		utils.UTCNow().Add(-s.staleAfter),
		s.batchSize,
	)
	if err != nil {
		s.logger.Error("list stale communications failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}
	s.logger.Warn("resuming stale communications", zap.Int("count", len(stale)))

	for _, c := range stale {
		if ctx.Err() != nil {
			return
		}
		if err := s.dispatcher.ResumeDispatch(ctx, c.ID); err != nil {
			s.logFailure("resume dispatch failed", c, err)
		}
	}
}

func (s *CommunicationScheduler) logFailure(msg string, c *models.Communication, err error) {
	level := s.logger.Error
	switch {
	case businessflow.IsDispatchInProgress(err):
		level = s.logger.Debug
	case businessflow.IsDispatchInterrupted(err):
		level = s.logger.Info
	}
	level(msg,
		zap.Uint("communication_id", c.ID),
		zap.String("status", string(c.Status)),
		zap.Error(err),
	)
}
