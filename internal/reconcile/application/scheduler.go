package application

import (
	"context"
	"errors"
	"log"
	"time"
)

// Scheduler drives the regular reconciliation passes and the healer checks.
// Each meter gets one pass over a sliding recent window per poll interval;
// the healer runs on the same cadence and widens the window on its own when
// a series has fallen behind.
type Scheduler struct {
	service *Service
	healer  *Healer
	cfg     Config
	clock   Clock
	logger  *log.Logger
}

// NewScheduler constructs a scheduler.
func NewScheduler(cfg Config, service *Service, healer *Healer, clock Clock, logger *log.Logger) (*Scheduler, error) {
	if service == nil {
		return nil, errors.New("scheduler: nil service")
	}
	if healer == nil {
		return nil, errors.New("scheduler: nil healer")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		service: service,
		healer:  healer,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Run blocks until ctx is cancelled, executing one tick immediately and then
// one per poll interval. In-flight backfills are awaited before returning.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.healer.Wait()
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one regular pass per meter and one healer sweep.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	from := now.Add(-s.cfg.PollWindow)

	for _, meter := range s.cfg.Meters {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.service.RunPass(ctx, meter.ID, from, now); err != nil {
			if s.logger != nil {
				s.logger.Printf("scheduler: pass for meter %s failed: %v", meter.ID, err)
			}
		}
	}

	s.healer.CheckOnce(ctx)
}
