package forecast

import (
	"fmt"
	"time"
)

// DefaultMinTraining is the minimum number of usable observations a model
// needs before training is attempted.
const DefaultMinTraining = 30

// Point is a single daily observation.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is an ordered sequence of daily observations. Dates must be
// strictly ascending and unique; Validate enforces this before any model
// sees the data.
type TimeSeries []Point

// Validate checks the ordering invariants. It does not check length; length
// requirements depend on the consumer and are reported as ErrInsufficientData
// by feature engineering and the models themselves.
func (s TimeSeries) Validate() error {
	for i := 1; i < len(s); i++ {
		prev, cur := s[i-1].Date, s[i].Date
		if cur.Equal(prev) {
			return fmt.Errorf("%w: duplicate date %s at index %d", ErrSeriesInvalid, cur.Format("2006-01-02"), i)
		}
		if cur.Before(prev) {
			return fmt.Errorf("%w: dates not ascending at index %d (%s after %s)", ErrSeriesInvalid,
				i, prev.Format("2006-01-02"), cur.Format("2006-01-02"))
		}
	}
	return nil
}

// Values returns the observation values in order.
func (s TimeSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// LastDate returns the date of the final observation, or the zero time for
// an empty series.
func (s TimeSeries) LastDate() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}

// FutureDates returns the h daily dates following the series.
func (s TimeSeries) FutureDates(h int) []time.Time {
	last := s.LastDate()
	out := make([]time.Time, h)
	for i := range out {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out
}
