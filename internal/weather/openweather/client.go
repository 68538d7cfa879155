package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"weather-client/internal/weather"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5"
	defaultGeoURL  = "https://api.openweathermap.org/geo/1.0"
)

// Client talks to the OpenWeatherMap API: current conditions, forecast, and
// reverse geocoding. Requests run through a circuit breaker; retry policy is
// the caller's concern.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	geoURL     string
	circuit    *gobreaker.CircuitBreaker
}

// NewClient creates a Client sharing the given HTTP client. The client's
// timeout bounds each individual request.
func NewClient(httpClient *http.Client, apiKey string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		geoURL:     defaultGeoURL,
		circuit:    cb,
	}
}

// SetBaseURL overrides the data API base URL (useful for testing).
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// SetGeoURL overrides the geocoding API base URL (useful for testing).
func (c *Client) SetGeoURL(u string) {
	c.geoURL = u
}

// CurrentWeather fetches and normalizes current conditions for q.
func (c *Client) CurrentWeather(ctx context.Context, q weather.Query) (weather.Observation, error) {
	body, err := c.get(ctx, c.dataURL("/weather", q))
	if err != nil {
		return weather.Observation{}, err
	}

	var payload struct {
		Name string `json:"name"`
		Dt   int64  `json:"dt"`
		Sys  struct {
			Country string `json:"country"`
			Sunrise int64  `json:"sunrise"`
			Sunset  int64  `json:"sunset"`
		} `json:"sys"`
		Timezone int `json:"timezone"`
		Main     *struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Observation{}, fmt.Errorf("%w: %v", weather.ErrMalformedPayload, err)
	}
	// Shape validation: main and weather[0] are required, everything else is
	// tolerated as zero values.
	if payload.Main == nil || len(payload.Weather) == 0 {
		return weather.Observation{}, fmt.Errorf("%w: missing main or weather fields", weather.ErrMalformedPayload)
	}

	ts := time.Unix(payload.Dt, 0).UTC()
	if payload.Dt == 0 {
		ts = time.Now().UTC()
	}

	return weather.Observation{
		Location: weather.Place{
			City:    payload.Name,
			Country: payload.Sys.Country,
		},
		Timestamp:        ts,
		Temperature:      payload.Main.Temp,
		FeelsLike:        payload.Main.FeelsLike,
		Humidity:         payload.Main.Humidity,
		WindSpeed:        payload.Wind.Speed,
		Condition:        weather.ParseCondition(payload.Weather[0].Main),
		Sunrise:          time.Unix(payload.Sys.Sunrise, 0).UTC(),
		Sunset:           time.Unix(payload.Sys.Sunset, 0).UTC(),
		UTCOffsetSeconds: payload.Timezone,
		Units:            q.Units,
	}, nil
}

// Forecast fetches the timestamped forecast list for q.
func (c *Client) Forecast(ctx context.Context, q weather.Query) ([]weather.ForecastEntry, error) {
	body, err := c.get(ctx, c.dataURL("/forecast", q))
	if err != nil {
		return nil, err
	}

	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				TempMax float64 `json:"temp_max"`
				TempMin float64 `json:"temp_min"`
			} `json:"main"`
			Weather []struct {
				Main string `json:"main"`
			} `json:"weather"`
		} `json:"list"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrMalformedPayload, err)
	}
	if payload.List == nil {
		return nil, fmt.Errorf("%w: missing forecast list", weather.ErrMalformedPayload)
	}

	entries := make([]weather.ForecastEntry, 0, len(payload.List))
	for _, item := range payload.List {
		cond := weather.ConditionUnknown
		if len(item.Weather) > 0 {
			cond = weather.ParseCondition(item.Weather[0].Main)
		}
		entries = append(entries, weather.ForecastEntry{
			Timestamp: time.Unix(item.Dt, 0).UTC(),
			TempMax:   item.Main.TempMax,
			TempMin:   item.Main.TempMin,
			Condition: cond,
		})
	}
	return entries, nil
}

// ResolveCity reverse-geocodes a coordinate to the nearest known place.
func (c *Client) ResolveCity(ctx context.Context, lat, lon float64) (weather.Place, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("limit", "1")
	values.Set("appid", c.apiKey)

	body, err := c.get(ctx, fmt.Sprintf("%s/reverse?%s", c.geoURL, values.Encode()))
	if err != nil {
		return weather.Place{}, fmt.Errorf("reverse geocoding failed: %w", err)
	}

	var places []struct {
		Name    string `json:"name"`
		Country string `json:"country"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(body, &places); err != nil {
		return weather.Place{}, fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if len(places) == 0 {
		return weather.Place{}, weather.ErrNoResult
	}

	return weather.Place{
		City:    places[0].Name,
		Country: places[0].Country,
		State:   places[0].State,
	}, nil
}

func (c *Client) dataURL(path string, q weather.Query) string {
	values := url.Values{}
	values.Set("appid", c.apiKey)
	values.Set("units", string(q.Units))

	loc := q.City
	if q.Country != "" {
		loc = fmt.Sprintf("%s,%s", q.City, q.Country)
	}
	values.Set("q", loc)

	return fmt.Sprintf("%s%s?%s", c.baseURL, path, values.Encode())
}

// get performs a GET through the circuit breaker and returns the body on 2xx.
// Non-2xx responses surface as *weather.StatusError.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &weather.StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}
