package prefs

import (
	"path/filepath"
	"testing"
	"time"

	"weather-client/internal/weather"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestDefaultsOnEmptyStore(t *testing.T) {
	s, _ := openTestStore(t)

	if s.DarkMode() {
		t.Error("dark mode must default to false")
	}
	if got := s.TemperatureUnit(); got != weather.UnitsMetric {
		t.Errorf("unit must default to metric, got %s", got)
	}
	last := s.LastSearch()
	if last.City != DefaultCity || last.Country != DefaultCountry {
		t.Errorf("last search must default to %s/%s, got %+v", DefaultCity, DefaultCountry, last)
	}
	if history := s.SearchHistory(); len(history) != 0 {
		t.Errorf("history must default to empty, got %+v", history)
	}
}

func TestRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	s.SaveDarkMode(true)
	s.SaveTemperatureUnit(weather.UnitsImperial)
	s.SaveLastSearch("Paris", "FR")
	history := []weather.SearchEntry{
		{City: "Paris", Country: "FR", Timestamp: time.Now().UTC().Truncate(time.Second)},
		{City: "Delhi", Country: "IN", Timestamp: time.Now().UTC().Truncate(time.Second)},
	}
	s.SaveSearchHistory(history)

	if !s.DarkMode() {
		t.Error("dark mode round trip failed")
	}
	if got := s.TemperatureUnit(); got != weather.UnitsImperial {
		t.Errorf("unit round trip failed, got %s", got)
	}
	last := s.LastSearch()
	if last.City != "Paris" || last.Country != "FR" {
		t.Errorf("last search round trip failed, got %+v", last)
	}
	got := s.SearchHistory()
	if len(got) != 2 || got[0].City != "Paris" || got[1].City != "Delhi" {
		t.Errorf("history round trip failed, got %+v", got)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	s.SaveTemperatureUnit(weather.UnitsImperial)
	s.SaveLastSearch("Tokyo", "JP")
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s2.Close()

	if got := s2.TemperatureUnit(); got != weather.UnitsImperial {
		t.Errorf("unit did not survive reopen, got %s", got)
	}
	last := s2.LastSearch()
	if last.City != "Tokyo" || last.Country != "JP" {
		t.Errorf("last search did not survive reopen, got %+v", last)
	}
}

func TestCorruptKeyFallsBackWithoutAffectingOthers(t *testing.T) {
	s, _ := openTestStore(t)

	s.SaveDarkMode(true)
	s.SaveTemperatureUnit(weather.UnitsImperial)
	s.SaveLastSearch("Paris", "FR")

	if _, err := s.db.Exec(`UPDATE preferences SET value = '{not json' WHERE key = ?`, KeyTemperatureUnit); err != nil {
		t.Fatalf("failed to corrupt key: %v", err)
	}

	if got := s.TemperatureUnit(); got != weather.UnitsMetric {
		t.Errorf("corrupt unit must fall back to metric, got %s", got)
	}
	if !s.DarkMode() {
		t.Error("corruption in one key must not affect dark mode")
	}
	last := s.LastSearch()
	if last.City != "Paris" {
		t.Errorf("corruption in one key must not affect last search, got %+v", last)
	}
}

func TestUnknownUnitFallsBack(t *testing.T) {
	s, _ := openTestStore(t)

	if _, err := s.db.Exec(`INSERT INTO preferences (key, value) VALUES (?, '"kelvin"')`, KeyTemperatureUnit); err != nil {
		t.Fatalf("failed to seed unit: %v", err)
	}

	if got := s.TemperatureUnit(); got != weather.UnitsMetric {
		t.Errorf("unsupported unit must fall back to metric, got %s", got)
	}
}

func TestHistoryTruncatedOnRead(t *testing.T) {
	s, _ := openTestStore(t)

	var history []weather.SearchEntry
	for _, city := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		history = append(history, weather.SearchEntry{City: city, Country: "US", Timestamp: time.Now().UTC()})
	}
	s.SaveSearchHistory(history)

	if got := s.SearchHistory(); len(got) != weather.MaxSearchHistory {
		t.Errorf("oversized history must be truncated to %d, got %d", weather.MaxSearchHistory, len(got))
	}
}

func TestDegradedStoreIsSafe(t *testing.T) {
	s := &Store{}

	s.SaveDarkMode(true)
	if s.DarkMode() {
		t.Error("degraded store must read defaults")
	}
	if got := s.TemperatureUnit(); got != weather.UnitsMetric {
		t.Errorf("degraded store must read defaults, got %s", got)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close on degraded store must not fail: %v", err)
	}
}
