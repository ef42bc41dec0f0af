package wiki

import (
	"context"
	"log/slog"
	"sync"
	"time"

	wikiSvc "arbor/internal/domain/services/wiki"
	"arbor/internal/schedule"
)

// Scheduler drives the detector: a full sweep on a fixed cadence plus
// opportunistic single-node checks from the nudge queue between sweeps.
type Scheduler struct {
	detector wikiSvc.DetectorService
	nudges   <-chan string
	profile  schedule.Profile
	logger   *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler for the given detector.
func NewScheduler(detector wikiSvc.DetectorService, profile schedule.Profile, logger *slog.Logger) *Scheduler {
	var nudges <-chan string
	if src, ok := detector.(interface{ Nudges() <-chan string }); ok {
		nudges = src.Nudges()
	}
	return &Scheduler{
		detector: detector,
		nudges:   nudges,
		profile:  profile,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start launches the background loop. The first sweep runs after the
// profile's initial delay so startup is not serialized on the identity
// provider.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("detector scheduler started",
		"sweep_interval", s.profile.SweepInterval, "initial_delay", s.profile.InitialDelay)
}

// Stop halts the loop and waits for any in-flight check to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	initial := time.NewTimer(s.profile.InitialDelay)
	defer initial.Stop()
	select {
	case <-initial.C:
	case <-s.stop:
		return
	case <-ctx.Done():
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.profile.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case nodeID := <-s.nudges:
			if err := s.detector.CheckNode(ctx, nodeID); err != nil {
				s.logger.Warn("nudged detector check failed", "node_id", nodeID, "error", err)
			}
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if _, err := s.detector.Sweep(ctx); err != nil {
		// Identity outages degrade detection, never the wiki itself.
		s.logger.Warn("detector sweep failed", "error", err)
	}
}
