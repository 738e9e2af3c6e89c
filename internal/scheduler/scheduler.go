// Package scheduler refreshes the watch list on a cron schedule and reports
// changed market rents and listing rents.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
)

// minAverageChange is the smallest €/m² movement that is reported
const minAverageChange = 0.01

// Service is the analyzer surface used by the watch. Both calls must skip
// any result cache so each cycle compares against live figures.
type Service interface {
	RefreshURL(ctx context.Context, url string) (*domain.AnalysisResult, error)
	RefreshMarketRent(ctx context.Context, postalCode string) domain.MarketRentResult
}

// Store provides the previous observation of each watched item
type Store interface {
	LatestBenchmark(ctx context.Context, postalCode string) (*domain.MarketRentResult, error)
	LatestAnalysis(ctx context.Context, url string) (*domain.AnalysisResult, error)
	LogActivity(ctx context.Context, log *domain.ActivityLog) error
}

// Notifier receives changes
type Notifier interface {
	NotifyBenchmarkChanged(ctx context.Context, prev, cur domain.MarketRentResult) error
	NotifyAnalysis(ctx context.Context, res *domain.AnalysisResult) error
	NotifyError(ctx context.Context, errMsg string) error
}

// Scheduler coordinates the periodic watch runs
type Scheduler struct {
	cfg      config.WatchConfig
	svc      Service
	store    Store
	notifier Notifier
	logger   *slog.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
	lastRun time.Time
	changes int
}

// NewScheduler creates a new scheduler. notifier may be nil.
func NewScheduler(cfg config.WatchConfig, svc Service, store Store, notifier Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		svc:      svc,
		store:    store,
		notifier: notifier,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the cron job and starts the cron runner
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("watch run failed", "error", err)
			s.notifyError(ctx, err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.cfg.Schedule, err)
	}

	s.logger.Info("starting watch",
		"schedule", s.cfg.Schedule,
		"postal_codes", len(s.cfg.PostalCodes),
		"urls", len(s.cfg.URLs))
	s.cron.Start()
	s.running = true
	return nil
}

// Stop stops the cron runner and waits for a running job
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// RunOnce refreshes every watched postal code and URL. Single failures are
// logged; the joined URL failures are returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.logger.Info("starting watch cycle")

	changes := 0
	for _, plz := range s.cfg.PostalCodes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.checkPostalCode(ctx, plz) {
			changes++
		}
	}

	var errs []error
	for _, url := range s.cfg.URLs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		changed, err := s.checkURL(ctx, url)
		if err != nil {
			s.logger.Error("watched listing failed", "url", url, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		if changed {
			changes++
		}
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.changes += changes
	s.mu.Unlock()

	s.logger.Info("watch cycle complete", "changes", changes)
	return errors.Join(errs...)
}

// checkPostalCode reports whether the benchmark average moved
func (s *Scheduler) checkPostalCode(ctx context.Context, plz string) bool {
	// the previous snapshot must be read before RefreshMarketRent stores the new one
	prev, err := s.store.LatestBenchmark(ctx, plz)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("previous benchmark lookup failed", "postal_code", plz, "error", err)
	}

	cur := s.svc.RefreshMarketRent(ctx, plz)
	if !cur.Found {
		s.logger.Info("no benchmark for watched postal code", "postal_code", plz, "reason", cur.Reason)
		return false
	}
	if prev == nil || !averageChanged(prev.Benchmark, cur.Benchmark) {
		return false
	}

	s.logger.Info("benchmark changed", "postal_code", plz,
		"previous", valueOf(prev.Benchmark.Average), "current", valueOf(cur.Benchmark.Average))
	if s.notifier != nil {
		if err := s.notifier.NotifyBenchmarkChanged(ctx, *prev, cur); err != nil {
			s.logger.Error("notification failed", "postal_code", plz, "error", err)
		}
	}
	s.store.LogActivity(ctx, &domain.ActivityLog{
		Action:     domain.ActionWatchChanged,
		EntityType: "postal_code",
		EntityID:   plz,
		Details:    fmt.Sprintf("%.2f -> %.2f", valueOf(prev.Benchmark.Average), valueOf(cur.Benchmark.Average)),
	})
	return true
}

// checkURL reports whether the rent of a watched listing is new or changed
func (s *Scheduler) checkURL(ctx context.Context, url string) (bool, error) {
	prev, err := s.store.LatestAnalysis(ctx, url)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("previous analysis lookup failed", "url", url, "error", err)
	}

	res, err := s.svc.RefreshURL(ctx, url)
	if err != nil {
		return false, err
	}
	if prev != nil && !rentChanged(prev.Record, res.Record) {
		return false, nil
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyAnalysis(ctx, res); err != nil {
			s.logger.Error("notification failed", "url", url, "error", err)
		}
	}
	s.store.LogActivity(ctx, &domain.ActivityLog{
		Action:     domain.ActionWatchChanged,
		EntityType: "url",
		EntityID:   url,
		Details:    fmt.Sprintf("rent %.0f", valueOf(res.Record.RentMonthly)),
	})
	return true, nil
}

// Status summarizes the watch for /status
func (s *Scheduler) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := "noch nie"
	if !s.lastRun.IsZero() {
		last = s.lastRun.Format("02.01.2006 15:04")
	}
	return fmt.Sprintf("<b>Beobachtete PLZ:</b> %d\n<b>Beobachtete Inserate:</b> %d\n<b>Letzter Lauf:</b> %s\n<b>Änderungen:</b> %d",
		len(s.cfg.PostalCodes), len(s.cfg.URLs), last, s.changes)
}

func (s *Scheduler) notifyError(ctx context.Context, err error) {
	if s.notifier != nil {
		s.notifier.NotifyError(ctx, err.Error())
	}
}

func averageChanged(prev, cur *domain.RentBenchmark) bool {
	if prev == nil || cur == nil {
		return prev != cur
	}
	return floatChanged(prev.Average, cur.Average, minAverageChange)
}

func rentChanged(prev, cur domain.PropertyRecord) bool {
	return floatChanged(prev.RentMonthly, cur.RentMonthly, 0.5) ||
		floatChanged(prev.RentAnnual, cur.RentAnnual, 0.5)
}

func floatChanged(a, b *float64, eps float64) bool {
	if a == nil || b == nil {
		return (a == nil) != (b == nil)
	}
	return math.Abs(*a-*b) >= eps
}

func valueOf(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
