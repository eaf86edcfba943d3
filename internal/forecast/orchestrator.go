package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Orchestrator runs a selected subset of variants over one series and
// collects their results. One variant's failure never aborts the others; if
// every variant fails the run reports ErrNoModelsAvailable.
type Orchestrator struct {
	opts Options
	log  *logrus.Entry

	// PoolSize bounds how many variants train concurrently. 1 (the
	// default) trains them one at a time.
	PoolSize int

	// PerModelTimeout is the deadline applied to each variant so a hanging
	// model cannot stall the whole run. Zero disables the deadline.
	PerModelTimeout time.Duration

	// newModel is swappable for tests.
	newModel func(kind ModelKind, opts Options) (Model, bool)
}

// NewOrchestrator builds an orchestrator with the given model options.
func NewOrchestrator(opts Options, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		opts:     opts,
		log:      log.WithField("component", "orchestrator"),
		PoolSize: 1,
		newModel: NewModel,
	}
}

// Run trains each selected variant in the caller-specified order and
// returns the successful results (in that same order) alongside the
// per-variant failures. Results carry the measured wall-clock training
// duration. The input series is validated once up front; a malformed series
// is the only condition that fails the run before any model is invoked.
func (o *Orchestrator) Run(ctx context.Context, series TimeSeries, horizon int, kinds []ModelKind) ([]ForecastResult, []TrainingFailure, error) {
	if err := series.Validate(); err != nil {
		return nil, nil, err
	}
	if horizon <= 0 {
		return nil, nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if len(kinds) == 0 {
		return nil, nil, fmt.Errorf("no model kinds selected")
	}

	type slot struct {
		result  *ForecastResult
		failure *TrainingFailure
	}
	slots := make([]slot, len(kinds))

	pool := o.PoolSize
	if pool < 1 {
		pool = 1
	}
	sem := make(chan struct{}, pool)

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind ModelKind) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, failure := o.trainOne(ctx, kind, series, horizon)
			slots[i] = slot{result: result, failure: failure}
		}(i, kind)
	}
	wg.Wait()

	var results []ForecastResult
	var failures []TrainingFailure
	for _, s := range slots {
		if s.result != nil {
			results = append(results, *s.result)
		}
		if s.failure != nil {
			failures = append(failures, *s.failure)
		}
	}

	if len(results) == 0 {
		return nil, failures, fmt.Errorf("%w: all %d selected variants failed", ErrNoModelsAvailable, len(kinds))
	}
	return results, failures, nil
}

// trainOne runs a single variant with its own deadline, converting every
// internal error (and any panic) into a TrainingFailure.
func (o *Orchestrator) trainOne(ctx context.Context, kind ModelKind, series TimeSeries, horizon int) (result *ForecastResult, failure *TrainingFailure) {
	model, ok := o.newModel(kind, o.opts)
	if !ok {
		return nil, &TrainingFailure{Kind: kind, Reason: "unknown model kind"}
	}

	if o.PerModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.PerModelTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.WithField("model", kind).Errorf("training panicked: %v", r)
			result = nil
			failure = &TrainingFailure{Kind: kind, Reason: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	start := time.Now()
	res, err := model.Train(ctx, series, horizon)
	elapsed := time.Since(start)

	if err != nil {
		o.log.WithFields(logrus.Fields{"model": kind, "duration": elapsed}).
			Warnf("training failed: %v", err)
		return nil, &TrainingFailure{Kind: kind, Reason: err.Error()}
	}

	res.Kind = kind
	res.TrainingDuration = elapsed
	o.log.WithFields(logrus.Fields{"model": kind, "duration": elapsed}).Debug("training complete")
	return &res, nil
}
