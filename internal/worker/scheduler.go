package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
)

const jobTimeout = time.Minute

// Sweeper re-dispatches classification for tickets stuck in intake.
type Sweeper interface {
	SweepStuck(ctx context.Context, olderThan time.Duration) (int, error)
}

// Scheduler runs the periodic background jobs.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	delivery *OutboxDelivery
	cfg      config.WorkerConfig
	logger   *zap.Logger
}

func NewScheduler(cfg config.WorkerConfig, sweeper Sweeper, delivery *OutboxDelivery, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		sweeper:  sweeper,
		delivery: delivery,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.sweeper != nil && s.cfg.SweepSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweep); err != nil {
			return err
		}
	}
	if s.delivery != nil && s.cfg.DeliverySchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.DeliverySchedule, s.deliver); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("sweep", s.cfg.SweepSchedule),
		zap.String("delivery", s.cfg.DeliverySchedule))
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.sweeper.SweepStuck(ctx, s.cfg.StuckAfter())
	if err != nil {
		s.logger.Error("classification sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("re-dispatched stuck tickets", zap.Int("count", n))
	}
}

func (s *Scheduler) deliver() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.delivery.RunOnce(ctx); err != nil {
		s.logger.Error("outbox delivery failed", zap.Error(err))
	}
}

// OutboxDelivery drains queued outbox entries through a Mailer.
type OutboxDelivery struct {
	messages  repository.OutboundMessageRepository
	mailer    Mailer
	batchSize int
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewOutboxDelivery(messages repository.OutboundMessageRepository, mailer Mailer, batchSize int, metrics *observability.Metrics, logger *zap.Logger) *OutboxDelivery {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxDelivery{
		messages:  messages,
		mailer:    mailer,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// RunOnce delivers one batch and returns how many messages were sent.
func (d *OutboxDelivery) RunOnce(ctx context.Context) (int, error) {
	queued, err := d.messages.ListQueued(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, msg := range queued {
		status := domain.DeliverySent
		var sentAt *time.Time
		if err := d.mailer.Send(ctx, msg); err != nil {
			status = domain.DeliveryFailed
			d.logger.Warn("outbound message delivery failed",
				zap.String("message_id", msg.ID),
				zap.String("ticket_id", msg.TicketID),
				zap.Error(err))
		} else {
			now := d.now()
			sentAt = &now
			sent++
		}
		if err := d.messages.MarkDelivery(ctx, msg.ID, status, sentAt); err != nil {
			return sent, err
		}
		d.metrics.RecordDelivery(string(status))
	}
	return sent, nil
}
