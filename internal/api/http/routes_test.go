package httpapi

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/temper/internal/forecast"
	"github.com/i474232898/temper/internal/store"
)

func newTestApp(t *testing.T) (*fiber.App, *store.RunStore) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	opts := forecast.DefaultOptions()
	opts.Trees = 20
	pipeline := forecast.NewPipeline(forecast.NewOrchestrator(opts, log), log)
	runStore := store.NewRunStore(10, time.Hour)

	app := fiber.New()
	RegisterRoutes(app, &Handler{Pipeline: pipeline, Store: runStore})
	return app, runStore
}

func forecastBody(t *testing.T, n, horizon int, models []string) []byte {
	t.Helper()
	type entry struct {
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]entry, n)
	for i := range series {
		series[i] = entry{
			Date:  start.AddDate(0, 0, i).Format("2006-01-02"),
			Value: 25 + 5*math.Sin(2*math.Pi*float64(i)/7),
		}
	}
	body, err := json.Marshal(map[string]any{
		"series":  series,
		"horizon": horizon,
		"models":  models,
	})
	require.NoError(t, err)
	return body
}

func postForecast(t *testing.T, app *fiber.App, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/forecast", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestForecastEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp := postForecast(t, app, forecastBody(t, 40, 7, []string{"gradient_boosted"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report forecast.RunReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, forecast.KindGradientBoosted, report.Results[0].Kind)
	assert.Len(t, report.Results[0].Forecast, 7)
	assert.Empty(t, report.Failures)
}

func TestForecastEndpointRejectsBadRequests(t *testing.T) {
	app, _ := newTestApp(t)

	cases := []struct {
		name string
		body []byte
	}{
		{"malformed json", []byte(`{"series": [`)},
		{"missing models", forecastBody(t, 40, 7, nil)},
		{"unknown model kind", forecastBody(t, 40, 7, []string{"oracle"})},
		{"zero horizon", forecastBody(t, 40, 0, []string{"gradient_boosted"})},
		{"horizon over maximum", forecastBody(t, 40, 90, []string{"gradient_boosted"})},
		{"bad date", []byte(`{"series":[{"date":"someday","value":1},{"date":"2025-01-02","value":2}],"horizon":7,"models":["gradient_boosted"]}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postForecast(t, app, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestForecastEndpointDegradedRun(t *testing.T) {
	app, _ := newTestApp(t)

	// Too little data for any variant: every model fails, but the report
	// still comes back with the failures listed.
	resp := postForecast(t, app, forecastBody(t, 10, 7, []string{"gradient_boosted", "statistical"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report forecast.RunReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Empty(t, report.Results)
	assert.Len(t, report.Failures, 2)
}

func TestLatestEndpoint(t *testing.T) {
	app, runStore := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/forecast/latest?city=Paris&country=FR", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	runStore.Save("Paris:FR", forecast.RunReport{ID: "run-1", GeneratedAt: time.Now().UTC(), Horizon: 7})

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report forecast.RunReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "run-1", report.ID)
}

func TestLatestEndpointRequiresLocation(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/forecast/latest?city=Paris", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	app, runStore := newTestApp(t)
	now := time.Now().UTC()

	runStore.Save("Lviv:UA", forecast.RunReport{ID: "old", GeneratedAt: now.Add(-30 * time.Minute)})
	runStore.Save("Lviv:UA", forecast.RunReport{ID: "new", GeneratedAt: now})

	from := now.Add(-time.Hour).Format(time.RFC3339)
	to := now.Add(time.Minute).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/forecast/history?city=Lviv&country=UA&from="+from+"&to="+to, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Runs []forecast.RunReport `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Len(t, payload.Runs, 2)
}

func TestHistoryEndpointValidation(t *testing.T) {
	app, _ := newTestApp(t)
	now := time.Now().UTC()

	cases := []struct {
		name, query string
	}{
		{"missing range", "city=Lviv&country=UA"},
		{"from after to", "city=Lviv&country=UA&from=" + now.Format(time.RFC3339) + "&to=" + now.Add(-time.Hour).Format(time.RFC3339)},
		{"bad timestamp", "city=Lviv&country=UA&from=yesterday&to=today"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/forecast/history?"+tc.query, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}
