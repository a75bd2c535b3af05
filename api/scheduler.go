/*
scheduler.go - Automated leave accrual scheduler

PURPOSE:
  Periodically brings every leave balance up to today: monthly credits,
  cycle grants, carry-over caps and carry-over expiry are all applied by
  leave.Ledger.Accrue, which is idempotent for a given date.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Accrues each configured organization as the system actor
  - A failure for one organization is logged and does not stop the others
  - Leavers stop accruing on their leaving date

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour, ACCRUAL_INTERVAL)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAccrualScheduler(handler, orgs, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leave.go: AccrueOrganization and the manual POST /api/leave/accrue
  - leave/accrual.go: The accrual rules
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// AccrualRun records the outcome of one scheduler pass.
type AccrualRun struct {
	AsOf            generic.TimePoint
	StartedAt       time.Time
	BalancesUpdated int
	Failures        int
}

// AccrualScheduler runs leave accrual on a ticker.
type AccrualScheduler struct {
	Handler       *Handler
	Organizations []generic.OrganizationID
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu  sync.Mutex
	lastRun *AccrualRun
}

// NewAccrualScheduler creates a new scheduler.
func NewAccrualScheduler(h *Handler, orgs []generic.OrganizationID, logger *slog.Logger) *AccrualScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccrualScheduler{
		Handler:       h,
		Organizations: orgs,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        logger.With("component", "accrual_scheduler"),
	}
}

// Start begins the scheduler.
func (s *AccrualScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("started", "interval", s.CheckInterval, "organizations", len(s.Organizations))
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (s *AccrualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("stopped")
	}
}

func (s *AccrualScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow accrues every configured organization up to today.
func (s *AccrualScheduler) RunNow(ctx context.Context) AccrualRun {
	run := AccrualRun{AsOf: s.Handler.today(), StartedAt: time.Now()}

	for _, org := range s.Organizations {
		n, err := s.Handler.AccrueOrganization(ctx, generic.SystemActor(org), run.AsOf, "")
		run.BalancesUpdated += n
		if err != nil {
			run.Failures++
			s.Logger.Error("accrual failed", "organization", org, "error", err)
			continue
		}
		s.Logger.Debug("accrued", "organization", org, "balances", n)
	}

	s.lastMu.Lock()
	s.lastRun = &run
	s.lastMu.Unlock()

	if run.BalancesUpdated > 0 || run.Failures > 0 {
		s.Logger.Info("accrual pass completed",
			"as_of", run.AsOf.String(),
			"balances", run.BalancesUpdated,
			"failures", run.Failures,
			"duration", time.Since(run.StartedAt),
			"next_run", s.NextRunTime(),
		)
	}
	return run
}

// LastRun returns the most recent pass, or nil before the first one.
func (s *AccrualScheduler) LastRun() *AccrualRun {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRun
}

// NextRunTime returns when the next pass is due: one interval after the
// last pass started, or now before the first one.
func (s *AccrualScheduler) NextRunTime() time.Time {
	last := s.LastRun()
	if last == nil {
		return time.Now()
	}
	return last.StartedAt.Add(s.CheckInterval)
}
