package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultSweepInterval is how often the idle sweep runs.
	DefaultSweepInterval = 10 * time.Minute
)

// Sweeper periodically removes idle sessions from a Store
type Sweeper struct {
	store    *Store
	interval time.Duration
	cron     *cron.Cron
	running  bool
}

// NewSweeper creates a new sweeper for the given store
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		store:    store,
		interval: interval,
	}
}

// Start schedules the sweep. It returns an error if already running or
// if the schedule cannot be registered.
func (sw *Sweeper) Start() error {
	if sw.running {
		return fmt.Errorf("sweeper is already running")
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", sw.interval)
	if _, err := c.AddFunc(spec, func() {
		sw.store.Sweep()
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	c.Start()
	sw.cron = c
	sw.running = true

	log.Info().Dur("interval", sw.interval).Msg("Session sweeper started")

	return nil
}

// Stop stops the sweep schedule
func (sw *Sweeper) Stop() error {
	if !sw.running {
		return fmt.Errorf("sweeper is not running")
	}

	ctx := sw.cron.Stop()
	<-ctx.Done()
	sw.running = false

	log.Info().Msg("Session sweeper stopped")

	return nil
}

// IsRunning returns whether the sweeper is running
func (sw *Sweeper) IsRunning() bool {
	return sw.running
}
