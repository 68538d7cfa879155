package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Reason classifies a position acquisition failure.
type Reason string

const (
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonUnavailable      Reason = "unavailable"
	ReasonTimedOut         Reason = "timed_out"
	ReasonUnknown          Reason = "unknown"
)

// PositionError reports why the host's position could not be acquired.
type PositionError struct {
	Reason  Reason
	Message string
}

func (e *PositionError) Error() string {
	return e.Message
}

// Coordinate is a geographic fix. IP-based fixes are city-level, so the
// accuracy is coarse.
type Coordinate struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracyMeters"`
}

const (
	defaultLocatorURL = "http://ip-api.com/json"

	// ipFixAccuracy is the assumed accuracy of an IP-based city-level fix.
	ipFixAccuracy = 50000

	acquireTimeout = 10 * time.Second
	maxFixAge      = 5 * time.Minute
)

// Locator acquires the host's coordinate via an IP geolocation service.
// A fix is cached and reused for up to five minutes.
type Locator struct {
	httpClient *http.Client
	baseURL    string

	mu    sync.Mutex
	fix   Coordinate
	fixAt time.Time
}

// NewLocator creates a Locator using the given HTTP client.
func NewLocator(httpClient *http.Client) *Locator {
	return &Locator{
		httpClient: httpClient,
		baseURL:    defaultLocatorURL,
	}
}

// SetBaseURL overrides the geolocation service URL (useful for testing).
func (l *Locator) SetBaseURL(u string) {
	l.baseURL = u
}

// Current returns the host's coordinate, reusing a cached fix up to five
// minutes old. Acquisition is bounded to ten seconds.
func (l *Locator) Current(ctx context.Context) (Coordinate, error) {
	l.mu.Lock()
	if !l.fixAt.IsZero() && time.Since(l.fixAt) <= maxFixAge {
		fix := l.fix
		l.mu.Unlock()
		return fix, nil
	}
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL, nil)
	if err != nil {
		return Coordinate{}, &PositionError{Reason: ReasonUnknown, Message: err.Error()}
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Coordinate{}, classifyPositionErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return Coordinate{}, &PositionError{Reason: ReasonPermissionDenied, Message: "Location access denied."}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Coordinate{}, &PositionError{
			Reason:  ReasonUnavailable,
			Message: fmt.Sprintf("Location information is unavailable (status %d).", resp.StatusCode),
		}
	}

	var payload struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Coordinate{}, &PositionError{Reason: ReasonUnknown, Message: "An unknown error occurred while retrieving location."}
	}
	if payload.Status != "success" {
		return Coordinate{}, &PositionError{
			Reason:  ReasonUnavailable,
			Message: fmt.Sprintf("Location information is unavailable: %s", payload.Message),
		}
	}

	fix := Coordinate{
		Latitude:       payload.Lat,
		Longitude:      payload.Lon,
		AccuracyMeters: ipFixAccuracy,
	}

	l.mu.Lock()
	l.fix = fix
	l.fixAt = time.Now()
	l.mu.Unlock()

	return fix, nil
}

func classifyPositionErr(err error) *PositionError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &PositionError{Reason: ReasonTimedOut, Message: "Location request timed out."}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &PositionError{Reason: ReasonTimedOut, Message: "Location request timed out."}
	}
	return &PositionError{Reason: ReasonUnavailable, Message: "Location information is unavailable."}
}
