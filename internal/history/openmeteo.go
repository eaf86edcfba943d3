package history

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/temper/internal/forecast"
)

const (
	archiveBaseURL  = "https://archive-api.open-meteo.com/v1/archive"
	forecastBaseURL = "https://api.open-meteo.com/v1/forecast"
)

// Client fetches daily mean temperature series from Open-Meteo: the archive
// endpoint supplies the training history, the forecast endpoint supplies
// the baseline the models are scored against. Open-Meteo needs no API key.
type Client struct {
	archiveURL  string
	forecastURL string
	http        *resilientClient
}

// NewClient builds a Client over the shared outbound HTTP client.
func NewClient(client *http.Client) *Client {
	return &Client{
		archiveURL:  archiveBaseURL,
		forecastURL: forecastBaseURL,
		http:        newResilientClient(client, "openmeteo"),
	}
}

// NewClientWithBaseURLs is for tests pointing at a stub server.
func NewClientWithBaseURLs(client *http.Client, archiveURL, forecastURL string) *Client {
	c := NewClient(client)
	c.archiveURL = archiveURL
	c.forecastURL = forecastURL
	return c
}

type dailyPayload struct {
	Daily struct {
		Time            []string  `json:"time"`
		TemperatureMean []float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
}

// DailyMeans returns the daily mean temperature series for the location
// between from and to, inclusive.
func (c *Client) DailyMeans(ctx context.Context, loc Location, from, to time.Time) (forecast.TimeSeries, error) {
	if loc.Lat == nil || loc.Lon == nil {
		return nil, fmt.Errorf("location %s has no coordinates", loc.Key())
	}

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", *loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", *loc.Lon))
	values.Set("start_date", from.Format("2006-01-02"))
	values.Set("end_date", to.Format("2006-01-02"))
	values.Set("daily", "temperature_2m_mean")
	values.Set("timezone", "UTC")

	var payload dailyPayload
	if err := c.http.getJSON(ctx, c.archiveURL+"?"+values.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", loc.Key(), err)
	}
	return payload.toSeries()
}

// ForecastMeans returns Open-Meteo's own daily mean forecast for the next
// `days` days, used only as a scoring baseline.
func (c *Client) ForecastMeans(ctx context.Context, loc Location, days int) ([]float64, error) {
	if loc.Lat == nil || loc.Lon == nil {
		return nil, fmt.Errorf("location %s has no coordinates", loc.Key())
	}
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", *loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", *loc.Lon))
	values.Set("daily", "temperature_2m_mean")
	values.Set("forecast_days", fmt.Sprintf("%d", days))
	values.Set("timezone", "UTC")

	var payload dailyPayload
	if err := c.http.getJSON(ctx, c.forecastURL+"?"+values.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("fetching baseline forecast for %s: %w", loc.Key(), err)
	}
	series, err := payload.toSeries()
	if err != nil {
		return nil, err
	}
	out := series.Values()
	if len(out) > days {
		out = out[:days]
	}
	return out, nil
}

func (p dailyPayload) toSeries() (forecast.TimeSeries, error) {
	if len(p.Daily.Time) != len(p.Daily.TemperatureMean) {
		return nil, fmt.Errorf("malformed daily payload: %d dates for %d values",
			len(p.Daily.Time), len(p.Daily.TemperatureMean))
	}
	series := make(forecast.TimeSeries, 0, len(p.Daily.Time))
	for i, ts := range p.Daily.Time {
		date, err := time.Parse("2006-01-02", ts)
		if err != nil {
			return nil, fmt.Errorf("malformed date %q in daily payload: %w", ts, err)
		}
		series = append(series, forecast.Point{Date: date.UTC(), Value: p.Daily.TemperatureMean[i]})
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}
