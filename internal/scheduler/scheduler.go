// Package scheduler drives the core's entry points on a timer. The core
// itself never assumes how it is triggered; this package and the HTTP API
// are its only callers.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zenwatch/zenwatch/internal/models"
	"github.com/zenwatch/zenwatch/pkg/logger"
)

// tickTimeout bounds one whole scheduler pass. Auctions not reached before
// the deadline are picked up next minute.
const tickTimeout = 50 * time.Second

type Scheduler struct {
	logger *logger.Logger
	core   models.ZenwatchI
	repo   models.Repository

	cron *cron.Cron

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func NewScheduler(core models.ZenwatchI, repo models.Repository, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		core:    core,
		repo:    repo,
		cron:    cron.New(),
		lastRun: make(map[string]time.Time),
	}
}

// Start begins the minute tick. Each tick refreshes the users whose
// configured interval has elapsed and then runs the alert dispatcher.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop halts the cron and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	s.refreshDueUsers(ctx)

	report := s.core.CheckAndSendAlerts(ctx)
	if len(report.Errors) > 0 {
		s.logger.Warn("Alert run had errors ", "count ", len(report.Errors))
	}
}

// refreshDueUsers triggers a bulk refresh for every user whose refresh
// interval has elapsed since their last run. A run counts only once it
// completes inside the tick deadline: a truncated batch leaves the stamp
// untouched so the skipped auctions are retried next minute.
func (s *Scheduler) refreshDueUsers(ctx context.Context) {
	userIDs, err := s.repo.ListUserIDsWithAuctions()
	if err != nil {
		s.logger.Error("Failed to list users for refresh ", "error ", err)
		return
	}

	s.pruneLastRun(userIDs)

	now := time.Now()
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		interval := s.refreshInterval(userID)

		s.mu.Lock()
		last, seen := s.lastRun[userID]
		due := !seen || now.Sub(last) >= interval
		s.mu.Unlock()
		if !due {
			continue
		}

		s.core.RefreshAllAuctions(ctx, userID)
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		s.lastRun[userID] = now
		s.mu.Unlock()
	}
}

// pruneLastRun drops stamps for users who no longer track any auction.
func (s *Scheduler) pruneLastRun(userIDs []string) {
	current := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		current[id] = true
	}
	s.mu.Lock()
	for id := range s.lastRun {
		if !current[id] {
			delete(s.lastRun, id)
		}
	}
	s.mu.Unlock()
}

func (s *Scheduler) refreshInterval(userID string) time.Duration {
	profile, err := s.repo.GetUserProfile(userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("Failed to load profile for scheduling ", "user_id ", userID, " error ", err)
		}
		return models.ResolveSettings(nil).RefreshInterval
	}
	return models.ResolveSettings(profile).RefreshInterval
}
