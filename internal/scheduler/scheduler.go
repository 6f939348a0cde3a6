// Package scheduler drives periodic background syncs of connected sources,
// funneling the results through the same per-user task queues the HTTP
// surface uses.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"fincoach/internal/config"
	allocservice "fincoach/internal/module/allocation/service"
	connservice "fincoach/internal/module/connection/service"
)

type Scheduler struct {
	cron         *cron.Cron
	connections  connservice.ConnectionService
	orchestrator allocservice.Orchestrator
	interval     string
	logger       *zap.Logger
}

func New(
	cfg *config.Config,
	connections connservice.ConnectionService,
	orchestrator allocservice.Orchestrator,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		connections:  connections,
		orchestrator: orchestrator,
		interval:     cfg.Sync.AutoSyncInterval,
		logger:       logger,
	}
}

// Start registers the auto-sync job and starts the cron loop. An empty
// interval disables the scheduler entirely.
func (s *Scheduler) Start() error {
	if s.interval == "" {
		s.logger.Info("auto-sync disabled")
		return nil
	}
	if _, err := s.cron.AddFunc("@every "+s.interval, s.syncAll); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("auto-sync scheduled", zap.String("interval", s.interval))
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// syncAll refreshes every connected source. Failures are per-connection and
// never abort the sweep.
func (s *Scheduler) syncAll() {
	ctx := context.Background()
	conns, err := s.connections.ListConnected(ctx)
	if err != nil {
		s.logger.Error("auto-sync listing failed", zap.Error(err))
		return
	}
	s.logger.Debug("auto-sync sweep", zap.Int("connections", len(conns)))

	for i := range conns {
		conn := conns[i]
		outcome, err := s.connections.Sync(ctx, conn.UserID, conn.ID)
		if err != nil {
			s.logger.Warn("auto-sync failed",
				zap.String("connection_id", conn.ID.String()),
				zap.String("source", conn.Name),
				zap.Error(err))
			continue
		}
		s.orchestrator.OnConnectionEvent(conn.UserID, outcome)
	}
}
