package weather

import (
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition as reported
// by the upstream (OpenWeatherMap "weather[0].main" values).
type Condition string

const (
	ConditionUnknown      Condition = "unknown"
	ConditionClear        Condition = "clear"
	ConditionClouds       Condition = "clouds"
	ConditionRain         Condition = "rain"
	ConditionDrizzle      Condition = "drizzle"
	ConditionSnow         Condition = "snow"
	ConditionThunderstorm Condition = "thunderstorm"
	ConditionMist         Condition = "mist"
	ConditionFog          Condition = "fog"
	ConditionHaze         Condition = "haze"
)

// ParseCondition maps an upstream condition string to a Condition.
func ParseCondition(s string) Condition {
	switch strings.ToLower(s) {
	case "clear":
		return ConditionClear
	case "clouds":
		return ConditionClouds
	case "rain":
		return ConditionRain
	case "drizzle":
		return ConditionDrizzle
	case "snow":
		return ConditionSnow
	case "thunderstorm":
		return ConditionThunderstorm
	case "mist":
		return ConditionMist
	case "fog":
		return ConditionFog
	case "haze":
		return ConditionHaze
	default:
		return ConditionUnknown
	}
}

// Units selects the measurement system for upstream requests.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// ValidUnits reports whether u is a supported measurement system.
func ValidUnits(u Units) bool {
	return u == UnitsMetric || u == UnitsImperial
}

// MaxCityLength bounds user-supplied city names.
const MaxCityLength = 50

// Query identifies a single weather lookup. City/Country come from user input;
// Country is an ISO-3166 alpha-2 code. The supported country table is advisory:
// codes outside it are passed through to the upstream verbatim.
type Query struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Units   Units  `json:"units"`
}

// Key returns a canonical string key for indexing this query's location.
func (q Query) Key() string {
	return q.City + ":" + q.Country
}

// Place is a resolved city/country pair, optionally with a state/region.
type Place struct {
	City    string `json:"city"`
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
}

// Observation is the normalized current-conditions view returned by a fetch.
type Observation struct {
	Location         Place     `json:"location"`
	Timestamp        time.Time `json:"timestamp"` // always UTC
	Temperature      float64   `json:"temperature"`
	FeelsLike        float64   `json:"feelsLike"`
	Humidity         float64   `json:"humidityPercent"`
	WindSpeed        float64   `json:"windSpeed"`
	Condition        Condition `json:"condition"`
	Sunrise          time.Time `json:"sunrise"`
	Sunset           time.Time `json:"sunset"`
	UTCOffsetSeconds int       `json:"utcOffsetSeconds"`
	Units            Units     `json:"units"`
}

// ForecastEntry is a single timestamped forecast slot.
type ForecastEntry struct {
	Timestamp time.Time `json:"timestamp"`
	TempMax   float64   `json:"tempMax"`
	TempMin   float64   `json:"tempMin"`
	Condition Condition `json:"condition"`
}

// SearchEntry records one successful lookup in the search history.
type SearchEntry struct {
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxSearchHistory caps the persisted search history.
const MaxSearchHistory = 5

// PushSearch prepends entry to history, removing any earlier entry for the
// same (city, country) and truncating to MaxSearchHistory.
func PushSearch(history []SearchEntry, entry SearchEntry) []SearchEntry {
	out := make([]SearchEntry, 0, len(history)+1)
	out = append(out, entry)
	for _, e := range history {
		if e.City == entry.City && e.Country == entry.Country {
			continue
		}
		out = append(out, e)
	}
	if len(out) > MaxSearchHistory {
		out = out[:MaxSearchHistory]
	}
	return out
}

// Country is a supported country selection.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Countries is the advisory list of selectable countries.
var Countries = []Country{
	{Code: "IN", Name: "India"},
	{Code: "US", Name: "United States"},
	{Code: "GB", Name: "United Kingdom"},
	{Code: "CA", Name: "Canada"},
	{Code: "AU", Name: "Australia"},
	{Code: "DE", Name: "Germany"},
	{Code: "FR", Name: "France"},
	{Code: "IT", Name: "Italy"},
	{Code: "JP", Name: "Japan"},
	{Code: "CN", Name: "China"},
	{Code: "RU", Name: "Russia"},
	{Code: "BR", Name: "Brazil"},
	{Code: "ZA", Name: "South Africa"},
	{Code: "MX", Name: "Mexico"},
	{Code: "ES", Name: "Spain"},
	{Code: "KR", Name: "South Korea"},
	{Code: "SG", Name: "Singapore"},
	{Code: "AE", Name: "United Arab Emirates"},
	{Code: "SA", Name: "Saudi Arabia"},
	{Code: "NZ", Name: "New Zealand"},
}

// CountryName returns the display name for an ISO code, or the code itself
// when it is not in the supported table.
func CountryName(code string) string {
	for _, c := range Countries {
		if strings.EqualFold(c.Code, code) {
			return c.Name
		}
	}
	return code
}

// CountryCode returns the ISO code for a display name, or the name itself
// when it is not in the supported table.
func CountryCode(name string) string {
	for _, c := range Countries {
		if strings.EqualFold(c.Name, name) {
			return c.Code
		}
	}
	return name
}
