package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunRequest describes one orchestration run.
type RunRequest struct {
	Series  TimeSeries
	Horizon int
	Kinds   []ModelKind

	// Weights, when non-nil, replaces the uniform ensemble weighting. See
	// Combine for the validation rules.
	Weights []float64

	// Baseline is an externally supplied reference forecast of length
	// Horizon (for example the weather API's own forecast). It is used
	// only for scoring, never for training. Nil skips metrics.
	Baseline []float64
}

// RunReport is the immutable outcome of one pipeline run. Entities are
// created per run and never mutated afterwards; nothing persists across
// runs inside the core.
type RunReport struct {
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Horizon     int               `json:"horizon"`
	Dates       []time.Time       `json:"dates"`
	Results     []ForecastResult  `json:"results"`
	Failures    []TrainingFailure `json:"failures,omitempty"`

	// Ensemble is present when at least two variants succeeded.
	Ensemble *EnsembleResult `json:"ensemble,omitempty"`

	// Metrics scores each successful variant (and the ensemble) against
	// the baseline, when one was supplied.
	Baseline        []float64                   `json:"baseline,omitempty"`
	Metrics         map[ModelKind]MetricsReport `json:"metrics,omitempty"`
	EnsembleMetrics *MetricsReport              `json:"ensembleMetrics,omitempty"`
}

// Pipeline is the root of the forecasting core: orchestrate the selected
// variants, combine survivors into an ensemble, and score everything
// against the baseline.
type Pipeline struct {
	orch *Orchestrator
	log  *logrus.Entry
}

func NewPipeline(orch *Orchestrator, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{orch: orch, log: log.WithField("component", "pipeline")}
}

// Run executes the full flow. Model failures degrade the report instead of
// failing it; the returned error is non-nil only for malformed input or
// when every selected variant failed.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (RunReport, error) {
	report := RunReport{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Horizon:     req.Horizon,
	}

	results, failures, err := p.orch.Run(ctx, req.Series, req.Horizon, req.Kinds)
	report.Failures = failures
	if err != nil {
		return report, err
	}
	report.Results = results
	report.Dates = req.Series.FutureDates(req.Horizon)

	if ensemble, err := Combine(results, req.Weights); err == nil {
		report.Ensemble = &ensemble
	} else if !errors.Is(err, ErrEnsembleUnavailable) {
		return report, err
	} else {
		p.log.Debugf("ensemble omitted: %v", err)
	}

	if req.Baseline != nil {
		report.Baseline = req.Baseline
		report.Metrics = make(map[ModelKind]MetricsReport, len(results))
		for _, r := range results {
			m, err := Score(req.Baseline, r.Forecast)
			if err != nil {
				p.log.Warnf("metrics omitted for %s: %v", r.Kind, err)
				continue
			}
			report.Metrics[r.Kind] = m
		}
		if report.Ensemble != nil {
			if m, err := Score(req.Baseline, report.Ensemble.Forecast); err == nil {
				report.EnsembleMetrics = &m
			} else {
				p.log.Warnf("ensemble metrics omitted: %v", err)
			}
		}
	}

	return report, nil
}
