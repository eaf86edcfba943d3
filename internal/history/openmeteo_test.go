package history

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coords(lat, lon float64) Location {
	return Location{City: "Bergen", Country: "NO", Lat: &lat, Lon: &lon}
}

func dailyJSON(start time.Time, values []float64) string {
	times := `[`
	vals := `[`
	for i, v := range values {
		if i > 0 {
			times += ","
			vals += ","
		}
		times += fmt.Sprintf("%q", start.AddDate(0, 0, i).Format("2006-01-02"))
		vals += fmt.Sprintf("%g", v)
	}
	times += `]`
	vals += `]`
	return fmt.Sprintf(`{"daily":{"time":%s,"temperature_2m_mean":%s}}`, times, vals)
}

func TestDailyMeans(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var gotQuery atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, dailyJSON(start, []float64{4.5, 5.1, 3.9}))
	}))
	defer srv.Close()

	client := NewClientWithBaseURLs(srv.Client(), srv.URL, srv.URL)
	series, err := client.DailyMeans(context.Background(), coords(60.39, 5.32), start, start.AddDate(0, 0, 2))
	require.NoError(t, err)

	require.Len(t, series, 3)
	assert.Equal(t, start, series[0].Date)
	assert.Equal(t, 4.5, series[0].Value)
	assert.Equal(t, 3.9, series[2].Value)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, "temperature_2m_mean", q.Get("daily"))
	assert.Equal(t, "2025-03-01", q.Get("start_date"))
	assert.Equal(t, "2025-03-03", q.Get("end_date"))
	assert.Equal(t, "UTC", q.Get("timezone"))
}

func TestDailyMeansRequiresCoordinates(t *testing.T) {
	client := NewClient(nil)
	_, err := client.DailyMeans(context.Background(), Location{City: "Bergen", Country: "NO"},
		time.Now().AddDate(0, 0, -7), time.Now())
	require.Error(t, err)
}

func TestDailyMeansMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daily":{"time":["2025-03-01","2025-03-02"],"temperature_2m_mean":[4.5]}}`)
	}))
	defer srv.Close()

	client := NewClientWithBaseURLs(srv.Client(), srv.URL, srv.URL)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := client.DailyMeans(context.Background(), coords(60.39, 5.32), start, start.AddDate(0, 0, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed daily payload")
}

func TestForecastMeans(t *testing.T) {
	start := time.Now().UTC().Truncate(24 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, dailyJSON(start, []float64{10, 11, 12, 13, 14}))
	}))
	defer srv.Close()

	client := NewClientWithBaseURLs(srv.Client(), srv.URL, srv.URL)
	out, err := client.ForecastMeans(context.Background(), coords(60.39, 5.32), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, out)

	_, err = client.ForecastMeans(context.Background(), coords(60.39, 5.32), 0)
	require.Error(t, err)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	rc := newResilientClient(srv.Client(), "test")
	rc.initialInterval = time.Millisecond
	rc.maxInterval = time.Millisecond

	var out struct {
		OK bool `json:"ok"`
	}
	err := rc.getJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rc := newResilientClient(srv.Client(), "test")
	rc.initialInterval = time.Millisecond
	rc.maxInterval = time.Millisecond
	rc.maxRetries = 2

	var out map[string]any
	err := rc.getJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, errRateLimited)
}
