package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"weather-client/internal/cache"
	"weather-client/internal/geo"
	"weather-client/internal/prefs"
	"weather-client/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, store *prefs.Store, locator *geo.Locator, resolver geo.Resolver) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		q, err := parseWeatherQuery(c, store)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		opts := weather.FetchOptions{IncludeForecast: c.QueryBool("forecast")}
		result, err := service.Fetch(c.Context(), q, opts)
		if err != nil {
			return fetchErrorResponse(c, err)
		}
		return c.JSON(result)
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		q, err := parseWeatherQuery(c, store)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := service.Fetch(c.Context(), q, weather.FetchOptions{IncludeForecast: true})
		if err != nil {
			return fetchErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"location": result.Current.Location,
			"forecast": result.Forecast,
		})
	})

	v1.Get("/weather/latest", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		obs, err := service.Latest(loc.City, loc.Country)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no cached weather for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read cached weather")
		}
		return c.JSON(obs)
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		observations, err := service.History(req.Location.City, req.Location.Country, req.From, req.To)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no cached weather for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read cached weather")
		}

		return c.JSON(fiber.Map{
			"location":     req.Location,
			"from":         req.From,
			"to":           req.To,
			"observations": observations,
		})
	})

	v1.Get("/locate", func(c *fiber.Ctx) error {
		coord, err := locator.Current(c.Context())
		if err != nil {
			var pe *geo.PositionError
			if errors.As(err, &pe) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error":   true,
					"reason":  pe.Reason,
					"message": pe.Message,
				})
			}
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}

		place, err := resolver.ResolveCity(c.Context(), coord.Latitude, coord.Longitude)
		if err != nil {
			if errors.Is(err, weather.ErrNoResult) {
				return fiber.NewError(fiber.StatusNotFound, weather.ErrNoResult.Error())
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}

		return c.JSON(fiber.Map{
			"coordinate": coord,
			"place":      place,
		})
	})

	v1.Get("/searches", func(c *fiber.Ctx) error {
		history := store.SearchHistory()
		if history == nil {
			history = []weather.SearchEntry{}
		}
		return c.JSON(history)
	})

	v1.Get("/countries", func(c *fiber.Ctx) error {
		return c.JSON(weather.Countries)
	})

	v1.Get("/prefs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"darkMode":        store.DarkMode(),
			"temperatureUnit": store.TemperatureUnit(),
			"lastSearch":      store.LastSearch(),
		})
	})

	v1.Put("/prefs", func(c *fiber.Ctx) error {
		var req prefsUpdate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if req.TemperatureUnit != nil {
			unit := weather.Units(*req.TemperatureUnit)
			if !weather.ValidUnits(unit) {
				return fiber.NewError(fiber.StatusBadRequest, "temperatureUnit must be metric or imperial")
			}
			store.SaveTemperatureUnit(unit)
		}
		if req.DarkMode != nil {
			store.SaveDarkMode(*req.DarkMode)
		}

		return c.JSON(fiber.Map{
			"darkMode":        store.DarkMode(),
			"temperatureUnit": store.TemperatureUnit(),
		})
	})
}

// fetchErrorResponse maps orchestrator failures onto HTTP responses carrying
// the {message, canRetry} contract.
func fetchErrorResponse(c *fiber.Ctx, err error) error {
	if errors.Is(err, weather.ErrSuperseded) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "superseded by a newer request",
		})
	}

	var ferr *weather.FetchError
	if !errors.As(err, &ferr) {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}

	status := fiber.StatusBadGateway
	switch ferr.Kind {
	case weather.KindValidation:
		status = fiber.StatusBadRequest
	case weather.KindNotFound:
		status = fiber.StatusNotFound
	case weather.KindRateLimited:
		status = fiber.StatusTooManyRequests
	case weather.KindTimeout:
		status = fiber.StatusGatewayTimeout
	}

	return c.Status(status).JSON(fiber.Map{
		"error":    true,
		"message":  ferr.Message,
		"canRetry": ferr.CanRetry,
	})
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"required"`
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.City = c.Query("city")
	q.Country = c.Query("country")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// parseWeatherQuery binds a fetch query; units default to the stored
// preference when absent.
func parseWeatherQuery(c *fiber.Ctx, store *prefs.Store) (weather.Query, error) {
	units := weather.Units(c.Query("units"))
	if units == "" {
		units = store.TemperatureUnit()
	}

	return weather.Query{
		City:    c.Query("city"),
		Country: c.Query("country"),
		Units:   units,
	}, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// prefsUpdate is the PUT /prefs request body; nil fields are left unchanged.
type prefsUpdate struct {
	DarkMode        *bool   `json:"darkMode"`
	TemperatureUnit *string `json:"temperatureUnit"`
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
