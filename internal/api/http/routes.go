package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/temper/internal/forecast"
	"github.com/i474232898/temper/internal/store"
)

var validate = validator.New()

// Handler bundles what the HTTP surface needs: the forecasting pipeline for
// ad-hoc runs and the run store for scheduled results.
type Handler struct {
	Pipeline *forecast.Pipeline
	Store    *store.RunStore

	// MaxHorizon bounds ad-hoc forecast requests.
	MaxHorizon int
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h *Handler) {
	if h.MaxHorizon <= 0 {
		h.MaxHorizon = 30
	}
	v1 := app.Group("/api/v1")

	v1.Post("/forecast", func(c *fiber.Ctx) error {
		var req forecastRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Horizon > h.MaxHorizon {
			return fiber.NewError(fiber.StatusBadRequest, "horizon exceeds maximum of "+strconv.Itoa(h.MaxHorizon))
		}

		runReq, err := req.toRunRequest()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := h.Pipeline.Run(c.Context(), runReq)
		if err != nil {
			switch {
			case errors.Is(err, forecast.ErrNoModelsAvailable):
				// Degraded but handled: the report carries the
				// per-variant failures.
				return c.Status(fiber.StatusOK).JSON(report)
			case errors.Is(err, forecast.ErrSeriesInvalid):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			default:
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		return c.JSON(report)
	})

	v1.Get("/forecast/latest", func(c *fiber.Ctx) error {
		locReq, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := h.Store.Latest(locReq.key())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast runs for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast run")
		}
		return c.JSON(report)
	})

	v1.Get("/forecast/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		runs, err := h.Store.Range(req.Location.key(), req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast runs for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast runs")
		}
		return c.JSON(fiber.Map{
			"location": req.Location,
			"from":     req.From,
			"to":       req.To,
			"runs":     runs,
		})
	})
}

// forecastRequest is the ad-hoc run payload: a caller-supplied series plus
// orchestration settings.
type forecastRequest struct {
	Series   []seriesEntry `json:"series" validate:"required,min=2,dive"`
	Horizon  int           `json:"horizon" validate:"required,min=1"`
	Models   []string      `json:"models" validate:"required,min=1"`
	Weights  []float64     `json:"weights,omitempty"`
	Baseline []float64     `json:"baseline,omitempty"`
}

type seriesEntry struct {
	Date  string  `json:"date" validate:"required"`
	Value float64 `json:"value"`
}

func (r forecastRequest) toRunRequest() (forecast.RunRequest, error) {
	series := make(forecast.TimeSeries, 0, len(r.Series))
	for _, e := range r.Series {
		d, err := parseDate(e.Date)
		if err != nil {
			return forecast.RunRequest{}, err
		}
		series = append(series, forecast.Point{Date: d, Value: e.Value})
	}

	known := make(map[forecast.ModelKind]bool)
	for _, k := range forecast.AllKinds() {
		known[k] = true
	}
	kinds := make([]forecast.ModelKind, 0, len(r.Models))
	for _, m := range r.Models {
		kind := forecast.ModelKind(m)
		if !known[kind] {
			return forecast.RunRequest{}, errors.New("unknown model kind: " + m)
		}
		kinds = append(kinds, kind)
	}

	return forecast.RunRequest{
		Series:   series,
		Horizon:  r.Horizon,
		Kinds:    kinds,
		Weights:  r.Weights,
		Baseline: r.Baseline,
	}, nil
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City    string `validate:"required"`
	Country string `validate:"required"`
}

func (l locationQuery) key() string {
	return l.City + ":" + l.Country
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.City = c.Query("city")
	q.Country = c.Query("country")

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// historyQuery holds query parameters for the stored-runs endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

// parseDate accepts a plain date or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d.UTC(), nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d.UTC(), nil
	}
	return time.Time{}, errors.New("invalid date format; use YYYY-MM-DD or RFC3339")
}
