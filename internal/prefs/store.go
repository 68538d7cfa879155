package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"

	_ "modernc.org/sqlite"

	"weather-client/internal/weather"
)

// Persisted preference keys. Each key's value is an independently serialized
// JSON document, so corruption in one key never affects the others.
const (
	KeySearchHistory   = "search_history"
	KeyDarkMode        = "dark_mode"
	KeyTemperatureUnit = "temperature_unit"
	KeyLastSearch      = "last_search"
)

// Defaults substituted for missing or corrupt values.
const (
	DefaultCity    = "Mumbai"
	DefaultCountry = "IN"
)

// LastSearch is the persisted shape of the last successful search.
type LastSearch struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Store is a SQLite-backed key/value preference store. All operations are
// best-effort: reads fall back to defaults and writes no-op on failure, so a
// broken database never breaks a fetch.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the preference database at path. On error it still
// returns a usable Store whose reads yield defaults and whose writes no-op.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &Store{}, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS preferences (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return &Store{}, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// get deserializes the value for key into out, reporting whether a usable
// value was found. Failures are logged and treated as absent.
func (s *Store) get(key string, out interface{}) bool {
	if s.db == nil {
		return false
	}

	var raw string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("prefs: failed to read %q: %v", key, err)
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Printf("prefs: corrupt value for %q, using default: %v", key, err)
		return false
	}
	return true
}

// set serializes v under key. Failures are logged and swallowed.
func (s *Store) set(key string, v interface{}) {
	if s.db == nil {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("prefs: failed to encode %q: %v", key, err)
		return
	}

	_, err = s.db.Exec(`INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(raw))
	if err != nil {
		log.Printf("prefs: failed to write %q: %v", key, err)
	}
}

// SearchHistory returns the persisted search history, newest first.
func (s *Store) SearchHistory() []weather.SearchEntry {
	var history []weather.SearchEntry
	if !s.get(KeySearchHistory, &history) {
		return nil
	}
	if len(history) > weather.MaxSearchHistory {
		history = history[:weather.MaxSearchHistory]
	}
	return history
}

// SaveSearchHistory persists the search history.
func (s *Store) SaveSearchHistory(history []weather.SearchEntry) {
	s.set(KeySearchHistory, history)
}

// DarkMode returns the persisted theme flag (default false).
func (s *Store) DarkMode() bool {
	var dark bool
	if !s.get(KeyDarkMode, &dark) {
		return false
	}
	return dark
}

// SaveDarkMode persists the theme flag.
func (s *Store) SaveDarkMode(dark bool) {
	s.set(KeyDarkMode, dark)
}

// TemperatureUnit returns the persisted unit preference (default metric).
func (s *Store) TemperatureUnit() weather.Units {
	var unit weather.Units
	if !s.get(KeyTemperatureUnit, &unit) || !weather.ValidUnits(unit) {
		return weather.UnitsMetric
	}
	return unit
}

// SaveTemperatureUnit persists the unit preference.
func (s *Store) SaveTemperatureUnit(unit weather.Units) {
	s.set(KeyTemperatureUnit, unit)
}

// LastSearch returns the persisted last search, defaulting to Mumbai, IN.
func (s *Store) LastSearch() LastSearch {
	var last LastSearch
	if !s.get(KeyLastSearch, &last) || last.City == "" {
		return LastSearch{City: DefaultCity, Country: DefaultCountry}
	}
	return last
}

// SaveLastSearch persists the last successful search.
func (s *Store) SaveLastSearch(city, country string) {
	s.set(KeyLastSearch, LastSearch{City: city, Country: country})
}
