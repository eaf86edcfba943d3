package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/i474232898/temper/internal/forecast"
	"github.com/i474232898/temper/internal/history"
	"github.com/i474232898/temper/internal/store"
)

// Scheduler periodically refreshes history and re-runs the forecasting
// pipeline for each tracked location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	log       *logrus.Entry

	pipeline *forecast.Pipeline
	client   *history.Client
	store    *store.RunStore

	locations      []history.Location
	interval       time.Duration
	historicalDays int
	horizon        int
	kinds          []forecast.ModelKind
}

// Config carries the scheduler wiring.
type Config struct {
	Locations      []history.Location
	Interval       time.Duration
	HistoricalDays int
	Horizon        int
	Kinds          []forecast.ModelKind
}

// New creates a Scheduler.
func New(cfg Config, pipeline *forecast.Pipeline, client *history.Client, runStore *store.RunStore, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		scheduler:      gocron.NewScheduler(time.UTC),
		log:            log.WithField("component", "scheduler"),
		pipeline:       pipeline,
		client:         client,
		store:          runStore,
		locations:      cfg.Locations,
		interval:       cfg.Interval,
		historicalDays: cfg.HistoricalDays,
		horizon:        cfg.Horizon,
		kinds:          cfg.Kinds,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.log.Info("no locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 360
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		s.log.Info("running forecast refresh job")

		var wg sync.WaitGroup
		for _, loc := range s.locations {
			loc := loc
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
				defer cancel()

				if err := s.RefreshLocation(ctx, loc); err != nil {
					s.log.WithField("location", loc.Key()).Errorf("refresh failed: %v", err)
				}
			}()
		}
		wg.Wait()
		s.log.Info("completed forecast refresh job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RefreshLocation fetches fresh history and the baseline forecast for one
// location, runs the pipeline and stores the report. A failed baseline
// fetch degrades the run (no metrics) rather than aborting it.
func (s *Scheduler) RefreshLocation(ctx context.Context, loc history.Location) error {
	if err := loc.Resolve(); err != nil {
		return err
	}

	// History ends yesterday; the archive has no entry for today yet.
	end := time.Now().UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -s.historicalDays)

	series, err := s.client.DailyMeans(ctx, loc, start, end)
	if err != nil {
		return err
	}

	baseline, err := s.client.ForecastMeans(ctx, loc, s.horizon)
	if err != nil {
		s.log.WithField("location", loc.Key()).Warnf("baseline forecast unavailable: %v", err)
		baseline = nil
	}

	report, err := s.pipeline.Run(ctx, forecast.RunRequest{
		Series:   series,
		Horizon:  s.horizon,
		Kinds:    s.kinds,
		Baseline: baseline,
	})
	if err != nil && !errors.Is(err, forecast.ErrNoModelsAvailable) {
		return err
	}
	if errors.Is(err, forecast.ErrNoModelsAvailable) {
		s.log.WithField("location", loc.Key()).Warn("all models failed; storing degraded report")
	}

	s.store.Save(loc.Key(), report)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
