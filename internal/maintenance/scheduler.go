// Package maintenance runs scheduled upkeep against the store.
package maintenance

import (
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/rosterd/rosterd/internal/config"
	"github.com/rosterd/rosterd/internal/database"
)

const defaultSchedule = "0 3 * * *"

// Scheduler periodically optimizes the store. The schedule and toggles are
// read from the settings table when the scheduler starts.
type Scheduler struct {
	db      *database.DB
	loader  *config.Loader
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a maintenance scheduler reading its knobs through loader
func NewScheduler(db *database.DB, loader *config.Loader) *Scheduler {
	return &Scheduler{
		db:     db,
		loader: loader,
		cron:   cron.New(),
	}
}

// Start begins scheduled maintenance. A disabled toggle or an invalid
// schedule leaves the scheduler idle rather than failing startup.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.cron.Start()

	if !s.loader.BoolDefaultTrue("maintenance.enabled") {
		log.Info().Msg("Store maintenance disabled")
		return
	}

	schedule := s.loader.String("maintenance.schedule", defaultSchedule)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		log.Warn().Err(err).Str("schedule", schedule).Msg("Failed to set maintenance schedule")
		return
	}

	log.Info().Str("schedule", schedule).Msg("Store maintenance scheduled")
}

// Stop halts the scheduler and waits for any running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.running = false
	log.Info().Msg("Store maintenance stopped")
}

// RunNow performs one maintenance pass immediately
func (s *Scheduler) RunNow() {
	s.run()
}

func (s *Scheduler) run() {
	log.Info().Msg("Running store maintenance")

	if err := s.db.Optimize(); err != nil {
		log.Error().Err(err).Msg("Store optimize failed")
	}

	if s.loader.Bool("maintenance.vacuum", false) {
		if err := s.db.Vacuum(); err != nil {
			log.Error().Err(err).Msg("Store vacuum failed")
		}
	}
}
