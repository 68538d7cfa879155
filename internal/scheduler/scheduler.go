package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"weather-client/internal/prefs"
	"weather-client/internal/weather"
)

// Scheduler periodically refreshes weather data for the persisted last search,
// so the cache stays warm across restarts.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	store     *prefs.Store
	interval  time.Duration
}

// New creates a new Scheduler.
func New(store *prefs.Store, service *weather.Service, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		store:     store,
		interval:  interval,
	}
}

// Start schedules the periodic refresh and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		last := s.store.LastSearch()
		q := weather.Query{
			City:    last.City,
			Country: last.Country,
			Units:   s.store.TemperatureUnit(),
		}
		log.Printf("scheduler: refreshing weather for %s", q.Key())

		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		if _, err := s.service.Fetch(ctx, q, weather.FetchOptions{}); err != nil {
			if errors.Is(err, weather.ErrSuperseded) {
				return
			}
			log.Printf("scheduler: refresh failed for %s: %v", q.Key(), err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
