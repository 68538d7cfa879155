package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"weather-client/internal/cache"
	"weather-client/internal/geo"
	"weather-client/internal/prefs"
	"weather-client/internal/weather"
)

type stubUpstream struct {
	obs weather.Observation
	err error
}

func (s *stubUpstream) CurrentWeather(_ context.Context, _ weather.Query) (weather.Observation, error) {
	return s.obs, s.err
}

func (s *stubUpstream) Forecast(_ context.Context, _ weather.Query) ([]weather.ForecastEntry, error) {
	return nil, nil
}

type stubResolver struct {
	place weather.Place
	err   error
}

func (s *stubResolver) ResolveCity(_ context.Context, _, _ float64) (weather.Place, error) {
	return s.place, s.err
}

func newTestApp(t *testing.T, up weather.Upstream) (*fiber.App, *weather.Service, *prefs.Store) {
	t.Helper()

	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("failed to open prefs store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	memCache := cache.NewMemory(10, time.Hour)
	service := weather.NewService(up, store, memCache)
	service.SetRetryPolicy(0, time.Millisecond)

	app := fiber.New()
	locator := geo.NewLocator(&http.Client{Timeout: time.Second})
	RegisterRoutes(app, service, store, locator, &stubResolver{})
	return app, service, store
}

func TestWeatherEndpoint(t *testing.T) {
	up := &stubUpstream{obs: weather.Observation{
		Location:    weather.Place{City: "Paris", Country: "FR"},
		Timestamp:   time.Now().UTC(),
		Temperature: 12.5,
		Condition:   weather.ConditionClouds,
	}}
	app, _, _ := newTestApp(t, up)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather?city=Paris&country=FR", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var result weather.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Current.Location.City != "Paris" {
		t.Errorf("unexpected payload: %+v", result)
	}
}

func TestWeatherEndpointEmptyCity(t *testing.T) {
	up := &stubUpstream{}
	app, _, _ := newTestApp(t, up)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather?city=%20%20&country=FR", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}

	var body struct {
		Message  string `json:"message"`
		CanRetry bool   `json:"canRetry"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.CanRetry {
		t.Error("validation failures must report canRetry=false")
	}
}

func TestWeatherEndpointNotFound(t *testing.T) {
	up := &stubUpstream{err: &weather.StatusError{StatusCode: 404, Status: "404 Not Found"}}
	app, _, _ := newTestApp(t, up)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather?city=Nowhere&country=IN", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestLatestEndpointNotCached(t *testing.T) {
	app, _, _ := newTestApp(t, &stubUpstream{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/latest?city=Paris&country=FR", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestLatestEndpointAfterFetch(t *testing.T) {
	up := &stubUpstream{obs: weather.Observation{
		Location:  weather.Place{City: "Paris", Country: "FR"},
		Timestamp: time.Now().UTC(),
	}}
	app, service, _ := newTestApp(t, up)

	if _, err := service.Fetch(context.Background(), weather.Query{City: "Paris", Country: "FR"}, weather.FetchOptions{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/latest?city=Paris&country=FR", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestSearchesEndpoint(t *testing.T) {
	up := &stubUpstream{obs: weather.Observation{
		Location:  weather.Place{City: "Paris", Country: "FR"},
		Timestamp: time.Now().UTC(),
	}}
	app, service, _ := newTestApp(t, up)

	if _, err := service.Fetch(context.Background(), weather.Query{City: "Paris", Country: "FR"}, weather.FetchOptions{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/searches", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var history []weather.SearchEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(history) != 1 || history[0].City != "Paris" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestPrefsRoundTrip(t *testing.T) {
	app, _, _ := newTestApp(t, &stubUpstream{})

	body := bytes.NewBufferString(`{"darkMode": true, "temperatureUnit": "imperial"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/prefs", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/prefs", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got struct {
		DarkMode        bool   `json:"darkMode"`
		TemperatureUnit string `json:"temperatureUnit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !got.DarkMode || got.TemperatureUnit != "imperial" {
		t.Errorf("prefs round trip failed: %+v", got)
	}
}

func TestPrefsRejectsUnknownUnit(t *testing.T) {
	app, _, _ := newTestApp(t, &stubUpstream{})

	body := bytes.NewBufferString(`{"temperatureUnit": "kelvin"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/prefs", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestLocateEndpoint(t *testing.T) {
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "lat": 19.07, "lon": 72.87}`))
	}))
	defer geoSrv.Close()

	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("failed to open prefs store: %v", err)
	}
	defer store.Close()

	service := weather.NewService(&stubUpstream{}, store, cache.NewMemory(10, time.Hour))
	locator := geo.NewLocator(&http.Client{Timeout: time.Second})
	locator.SetBaseURL(geoSrv.URL)
	resolver := &stubResolver{place: weather.Place{City: "Mumbai", Country: "IN", State: "Maharashtra"}}

	app := fiber.New()
	RegisterRoutes(app, service, store, locator, resolver)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locate", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Place weather.Place `json:"place"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Place.City != "Mumbai" {
		t.Errorf("unexpected place: %+v", body.Place)
	}
}

func TestCountriesEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t, &stubUpstream{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/countries", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var countries []weather.Country
	if err := json.NewDecoder(resp.Body).Decode(&countries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(countries) != 20 {
		t.Errorf("expected 20 supported countries, got %d", len(countries))
	}
}
