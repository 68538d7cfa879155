package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Retry policy defaults. A retryable failure is re-attempted after a fixed
// delay until MaxRetries additional attempts have been spent.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// Upstream abstracts the weather data source (OpenWeatherMap in production).
type Upstream interface {
	CurrentWeather(ctx context.Context, q Query) (Observation, error)
	Forecast(ctx context.Context, q Query) ([]ForecastEntry, error)
}

// HistoryStore persists the search history and last search. Implementations
// are best-effort: writes must never fail the fetch.
type HistoryStore interface {
	SearchHistory() []SearchEntry
	SaveSearchHistory(history []SearchEntry)
	SaveLastSearch(city, country string)
}

// Cache records successful observations for later local reads.
type Cache interface {
	SaveObservation(obs Observation)
	Latest(city, country string) (Observation, error)
	Range(city, country string, from, to time.Time) ([]Observation, error)
}

// FetchOptions tunes a single Fetch call.
type FetchOptions struct {
	// IncludeForecast issues the forecast request concurrently with the
	// current-conditions request. A forecast failure degrades to a
	// current-only result.
	IncludeForecast bool
}

// Result is the terminal success of a fetch sequence.
type Result struct {
	Current  Observation     `json:"current"`
	Forecast []ForecastEntry `json:"forecast,omitempty"`
	Attempts int             `json:"attempts"`
}

// Service orchestrates weather fetches: it validates queries, retries
// transient upstream failures, supersedes stale in-flight sequences, and
// records history and observations on confirmed success.
//
// Supersession uses a generation counter: each Fetch call bumps it, and a
// sequence rechecks its captured generation after every suspension point.
// A stale sequence returns ErrSuperseded without mutating shared state.
type Service struct {
	upstream Upstream
	prefs    HistoryStore
	cache    Cache

	maxRetries int
	retryDelay time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewService creates a Service with the default retry policy.
func NewService(upstream Upstream, prefs HistoryStore, cache Cache) *Service {
	return &Service{
		upstream:   upstream,
		prefs:      prefs,
		cache:      cache,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
}

// SetRetryPolicy overrides the retry policy (useful for testing).
func (s *Service) SetRetryPolicy(maxRetries int, delay time.Duration) {
	s.maxRetries = maxRetries
	s.retryDelay = delay
}

// Fetch runs one fetch sequence for q and returns either a Result or a
// terminal error. Terminal failures are *FetchError; a sequence superseded by
// a newer Fetch returns ErrSuperseded.
func (s *Service) Fetch(ctx context.Context, q Query, opts FetchOptions) (*Result, error) {
	q.City = strings.TrimSpace(q.City)
	if q.City == "" {
		return nil, &FetchError{Kind: KindValidation, Message: "Please enter a city name", CanRetry: false}
	}
	if len(q.City) > MaxCityLength {
		return nil, &FetchError{
			Kind:     KindValidation,
			Message:  fmt.Sprintf("City name must be at most %d characters", MaxCityLength),
			CanRetry: false,
		}
	}
	if q.Units == "" {
		q.Units = UnitsMetric
	}
	if !ValidUnits(q.Units) {
		return nil, &FetchError{
			Kind:     KindValidation,
			Message:  fmt.Sprintf("Unsupported units %q; use metric or imperial", q.Units),
			CanRetry: false,
		}
	}

	// This call is now the active sequence; any earlier in-flight sequence
	// becomes stale.
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	seq := uuid.NewString()
	var lastErr *FetchError

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			if s.stale(gen) {
				return nil, ErrSuperseded
			}
			log.Printf("fetch %s: retrying %s (attempt %d of %d)", seq, q.Key(), attempt+1, s.maxRetries+1)
		}

		res, ferr := s.attempt(ctx, q, opts)
		if s.stale(gen) {
			return nil, ErrSuperseded
		}
		if ferr == nil {
			s.recordSuccess(res.Current)
			res.Attempts = attempt + 1
			return res, nil
		}
		if !ferr.Retryable() {
			log.Printf("fetch %s: terminal failure for %s: %s", seq, q.Key(), ferr.Message)
			return nil, ferr
		}
		lastErr = ferr
		log.Printf("fetch %s: attempt %d failed for %s: %s", seq, attempt+1, q.Key(), ferr.Message)
	}

	return nil, lastErr
}

// attempt issues the current-conditions request and, when asked, the forecast
// request concurrently. Only the current-conditions outcome decides success.
func (s *Service) attempt(ctx context.Context, q Query, opts FetchOptions) (*Result, *FetchError) {
	var (
		wg          sync.WaitGroup
		forecast    []ForecastEntry
		forecastErr error
	)

	if opts.IncludeForecast {
		wg.Add(1)
		go func() {
			defer wg.Done()
			forecast, forecastErr = s.upstream.Forecast(ctx, q)
		}()
	}

	obs, err := s.upstream.CurrentWeather(ctx, q)
	wg.Wait()

	if err != nil {
		return nil, Classify(q, err)
	}
	if forecastErr != nil {
		log.Printf("forecast fetch failed for %s: %v (serving current conditions only)", q.Key(), forecastErr)
		forecast = nil
	}

	return &Result{Current: obs, Forecast: forecast}, nil
}

// recordSuccess applies the side effects of a confirmed terminal success:
// the history entry uses the upstream-confirmed city/country, not the raw
// user input. Persistence is best-effort.
func (s *Service) recordSuccess(obs Observation) {
	if s.cache != nil {
		s.cache.SaveObservation(obs)
	}
	if s.prefs == nil {
		return
	}
	entry := SearchEntry{
		City:      obs.Location.City,
		Country:   obs.Location.Country,
		Timestamp: time.Now().UTC(),
	}
	s.prefs.SaveSearchHistory(PushSearch(s.prefs.SearchHistory(), entry))
	s.prefs.SaveLastSearch(entry.City, entry.Country)
}

func (s *Service) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.generation
}

// Latest returns the most recent cached observation for a location.
func (s *Service) Latest(city, country string) (Observation, error) {
	return s.cache.Latest(city, country)
}

// History returns cached observations for a location between from and to.
func (s *Service) History(city, country string, from, to time.Time) ([]Observation, error) {
	return s.cache.Range(city, country, from, to)
}

// Classify maps an upstream failure to a FetchError. HTTP 404 and 401 are
// terminal; 429, client timeouts, malformed payloads and everything else are
// retryable.
func Classify(q Query, err error) *FetchError {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case 404:
			return &FetchError{
				Kind:     KindNotFound,
				Message:  fmt.Sprintf("City %q not found in %s. Please check the spelling and try again.", q.City, CountryName(q.Country)),
				CanRetry: true,
			}
		case 401:
			return &FetchError{
				Kind:     KindUnauthorized,
				Message:  "API key is invalid or expired. Please contact support.",
				CanRetry: true,
			}
		case 429:
			return &FetchError{
				Kind:     KindRateLimited,
				Message:  "Too many requests. Please try again later.",
				CanRetry: true,
			}
		default:
			return &FetchError{
				Kind:     KindUnknown,
				Message:  fmt.Sprintf("Error: %s", se.Status),
				CanRetry: true,
			}
		}
	}

	if errors.Is(err, ErrMalformedPayload) {
		return &FetchError{Kind: KindMalformed, Message: ErrMalformedPayload.Error(), CanRetry: true}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Message: "Request timed out. Please try again.", CanRetry: true}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &FetchError{Kind: KindTimeout, Message: "Request timed out. Please try again.", CanRetry: true}
	}

	return &FetchError{
		Kind:     KindUnknown,
		Message:  "Failed to fetch weather data. Please try again.",
		CanRetry: true,
	}
}
