package agent

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hurttlocker/vigil/internal/classify"
	"github.com/hurttlocker/vigil/internal/store"
)

// PatternDetector is the slice of the classification engine the
// scheduler's daily sweep needs.
type PatternDetector interface {
	DetectPatterns(ctx context.Context, cases []*store.Case) (*store.Analysis, error)
}

// SchedulerConfig controls sweep cadence.
type SchedulerConfig struct {
	// SweepInterval is how often the pending sweep runs.
	SweepInterval time.Duration
	// StaleThreshold is how old a NEW case must be before a sweep picks
	// it up, giving explicit triggers time to win.
	StaleThreshold time.Duration
	// PatternCron is the cron expression for the daily pattern sweep.
	PatternCron string
}

// DefaultSchedulerConfig mirrors the production cadence: sweep every five
// minutes, pick up NEW cases older than five minutes, detect patterns at
// two in the morning.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		SweepInterval:  5 * time.Minute,
		StaleThreshold: 5 * time.Minute,
		PatternCron:    "0 2 * * *",
	}
}

// Scheduler runs the pending sweep and the daily pattern sweep. Sweeps
// only dispatch work; workflow runs execute on the pool.
type Scheduler struct {
	store    store.Store
	agent    *Agent
	pool     *Pool
	detector PatternDetector
	cfg      SchedulerConfig
	log      *zap.SugaredLogger
	cron     *cron.Cron
}

// NewScheduler creates a scheduler. Call Start to begin sweeping.
func NewScheduler(st store.Store, ag *Agent, pool *Pool, detector PatternDetector, cfg SchedulerConfig, log *zap.SugaredLogger) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 5 * time.Minute
	}
	if cfg.PatternCron == "" {
		cfg.PatternCron = "0 2 * * *"
	}
	return &Scheduler{
		store:    st,
		agent:    ag,
		pool:     pool,
		detector: detector,
		cfg:      cfg,
		log:      log,
	}
}

// Start registers both sweeps and starts the cron runner. Same-job
// overlap is prevented; a long sweep delays, never overlaps, its next run.
func (s *Scheduler) Start() error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	if _, err := s.cron.AddFunc("@every "+s.cfg.SweepInterval.String(), s.SweepPending); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.PatternCron, s.SweepPatterns); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Infow("scheduler started",
		"sweep_interval", s.cfg.SweepInterval,
		"stale_threshold", s.cfg.StaleThreshold,
		"pattern_cron", s.cfg.PatternCron)
	return nil
}

// Stop halts the cron runner and waits for in-flight sweeps.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// SweepPending fetches NEW cases and dispatches stale ones to the pool.
// Fetch and dispatch failures are logged per-sweep and never stop the
// next scheduled run.
func (s *Scheduler) SweepPending() {
	ctx := context.Background()
	cases, err := s.store.ListCases(ctx, store.ListOpts{Status: store.StatusNew})
	if err != nil {
		s.log.Errorw("pending sweep fetch failed", "error", err)
		return
	}

	cutoff := time.Now().Add(-s.cfg.StaleThreshold)
	dispatched := 0
	for _, c := range cases {
		if c.CreatedAt.After(cutoff) {
			continue
		}
		id := c.ID
		if s.pool.Submit(func(ctx context.Context) { s.agent.Process(ctx, id) }) {
			dispatched++
		} else {
			s.log.Warnw("pending sweep dispatch rejected", "case_id", id)
		}
	}
	if dispatched > 0 {
		s.log.Infow("pending sweep dispatched cases", "count", dispatched, "pending", len(cases))
	}
}

// SweepPatterns fetches all cases and runs pattern detection when there
// are enough to analyze.
func (s *Scheduler) SweepPatterns() {
	ctx := context.Background()
	cases, err := s.store.ListCases(ctx, store.ListOpts{})
	if err != nil {
		s.log.Errorw("pattern sweep fetch failed", "error", err)
		return
	}
	if len(cases) < classify.MinPatternCases {
		s.log.Debugw("pattern sweep skipped, too few cases", "count", len(cases))
		return
	}

	if _, err := s.detector.DetectPatterns(ctx, cases); err != nil {
		s.log.Errorw("pattern detection failed", "case_count", len(cases), "error", err)
		return
	}
	s.log.Infow("pattern detection completed", "case_count", len(cases))
}
