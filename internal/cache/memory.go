package cache

import (
	"errors"
	"strings"
	"sync"
	"time"

	"weather-client/internal/weather"
)

// ErrNotFound is returned when no observations are cached for a location.
var ErrNotFound = errors.New("no cached observations for location")

// Memory is a concurrency-safe in-memory cache of successful observations,
// keyed by location with count and age retention.
type Memory struct {
	mu sync.RWMutex

	// key: lowercased "city:country", value: observations in insertion order
	data map[string][]weather.Observation

	maxHistory int           // max observations per location (<= 0 = unlimited)
	maxAge     time.Duration // max observation age (0 = unlimited)
}

// NewMemory creates a Memory cache with optional limits.
func NewMemory(maxHistory int, maxAge time.Duration) *Memory {
	return &Memory{
		data:       make(map[string][]weather.Observation),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

func locKey(city, country string) string {
	return strings.ToLower(city + ":" + country)
}

// SaveObservation appends an observation for its location and enforces retention.
func (m *Memory) SaveObservation(obs weather.Observation) {
	key := locKey(obs.Location.City, obs.Location.Country)

	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.data[key], obs)

	if m.maxHistory > 0 && len(history) > m.maxHistory {
		history = history[len(history)-m.maxHistory:]
	}

	if m.maxAge > 0 {
		cutoff := time.Now().Add(-m.maxAge)
		i := 0
		for ; i < len(history); i++ {
			if !history[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history) {
			history = history[i:]
		}
	}

	m.data[key] = history
}

// Latest returns the most recent observation for a location.
func (m *Memory) Latest(city, country string) (weather.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.data[locKey(city, country)]
	if len(history) == 0 {
		return weather.Observation{}, ErrNotFound
	}
	return history[len(history)-1], nil
}

// Range returns observations for a location between from and to (inclusive).
func (m *Memory) Range(city, country string, from, to time.Time) ([]weather.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.data[locKey(city, country)]
	if len(history) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Observation
	for _, obs := range history {
		if !obs.Timestamp.Before(from) && !obs.Timestamp.After(to) {
			result = append(result, obs)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
