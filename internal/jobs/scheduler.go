package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"storekriti/internal/config"
	"storekriti/internal/pkg/geoip"
)

// Job is a unit of periodic background work.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	jobs      []Job
	mu        sync.Mutex
	isRunning bool
	tickers   []*time.Ticker
	wg        sync.WaitGroup

	// Only one job touches the database at a time.
	processingMutex sync.Mutex
	isProcessing    bool
}

// NewScheduler creates a scheduler with the given jobs.
func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   jobs,
	}
}

// NewDefaultScheduler wires the retention and GeoIP reload jobs from the config.
func NewDefaultScheduler(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *Scheduler {
	return NewScheduler(logger,
		NewRetentionJob(dbManager, logger, cfg),
		NewGeoReloadJob(geoip.Default(), cfg.GeoDBPath, time.Duration(cfg.JobIntervalSeconds)*time.Second, logger),
	)
}

// RunOnce executes every job a single time, in order, and returns the first error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	for _, job := range s.jobs {
		if err := job.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(job Job) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name()))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	if s.ctx.Err() != nil {
		s.logger.Info("Background jobs are stopped.")
		return nil
	}

	s.isRunning = true
	for _, job := range s.jobs {
		s.startJob(job)
	}

	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) startJob(job Job) {
	interval := job.Interval()
	s.logger.Info("Starting job", slog.String("job", job.Name()), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	s.tickers = append(s.tickers, ticker)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(job)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(job)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", job.Name()))
				return
			}
		}
	}()
}

// Stop halts all background jobs and waits for running ones to return.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Stopping background jobs...")
	for _, ticker := range s.tickers {
		ticker.Stop()
	}
	s.tickers = nil
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
