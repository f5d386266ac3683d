package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/clock"
)

type SweepConfig struct {
	Interval         time.Duration
	QueueEntryTTL    time.Duration
	MatchIdleTimeout time.Duration
}

// Scheduler runs the periodic housekeeping jobs: expiring stale queue entries and
// abandoning matches nobody has touched for a while.
type Scheduler struct {
	sched   gocron.Scheduler
	queue   *MatchmakingQueue
	matches *MatchService
	clock   clock.Clock
	cfg     SweepConfig
	logger  *zap.Logger
}

func NewScheduler(queue *MatchmakingQueue, matches *MatchService, clk clock.Clock, cfg SweepConfig, logger *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		sched:   sched,
		queue:   queue,
		matches: matches,
		clock:   clk,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (s *Scheduler) Start() error {
	if _, err := s.sched.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() { s.SweepQueue() }),
		gocron.WithName("queue-expiry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to schedule queue expiry: %w", err)
	}

	if _, err := s.sched.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
			defer cancel()
			s.SweepMatches(ctx)
		}),
		gocron.WithName("idle-match-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to schedule idle match sweep: %w", err)
	}

	s.sched.Start()
	return nil
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) SweepQueue() int {
	expired := s.queue.ExpireOlderThan(s.clock.Now(), s.cfg.QueueEntryTTL)
	for _, e := range expired {
		s.logger.Info("queue entry expired",
			zap.String("player_id", e.PlayerID),
			zap.Time("joined_at", e.JoinedAt),
		)
	}
	return len(expired)
}

func (s *Scheduler) SweepMatches(ctx context.Context) int {
	n, err := s.matches.AbandonIdle(ctx, s.clock.Now(), s.cfg.MatchIdleTimeout)
	if err != nil {
		s.logger.Error("idle match sweep failed", zap.Error(err))
		return n
	}
	if n > 0 {
		s.logger.Info("idle matches abandoned", zap.Int("count", n))
	}
	return n
}
