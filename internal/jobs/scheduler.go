package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"travelhub/api/internal/config"
	"travelhub/api/internal/models"
	"travelhub/api/internal/queue"
)

type StoreSweeper interface {
	Sweep(now time.Time, idleBefore time.Time) int
}

type DraftSweeper interface {
	Sweep(idleBefore time.Time) int
}

type SessionExpirer interface {
	ExpireSessions(ctx context.Context) (int, error)
}

type AwaitingPayments interface {
	ListAwaitingPayment(ctx context.Context, staleBefore time.Time, limit int) ([]models.Booking, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

// Deps are the components the scheduled jobs act on. Nil members disable the
// matching job.
type Deps struct {
	Stores   StoreSweeper
	Drafts   DraftSweeper
	Sessions SessionExpirer
	Bookings AwaitingPayments
	Queue    Enqueuer
}

type Scheduler struct {
	cron *cron.Cron
	deps Deps
	cfg  config.AppConfig
	log  zerolog.Logger
	now  func() time.Time
}

const reconcileBatch = 100

func NewScheduler(deps Deps, cfg config.AppConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		deps: deps,
		cfg:  cfg,
		log:  log,
		now:  time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 * * * * *", s.sweepMemory); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.expireSessions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("30 */5 * * * *", s.enqueueReconcile); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) sweepMemory() {
	now := s.now()

	if s.deps.Stores != nil {
		if n := s.deps.Stores.Sweep(now, now.Add(-s.cfg.Security.SessionIdleTTL)); n > 0 {
			s.log.Info().Int("count", n).Msg("idle session stores closed")
		}
	}
	if s.deps.Drafts != nil {
		if n := s.deps.Drafts.Sweep(now.Add(-s.cfg.Booking.DraftIdleTTL)); n > 0 {
			s.log.Info().Int("count", n).Msg("idle booking drafts discarded")
		}
	}
}

func (s *Scheduler) expireSessions() {
	if s.deps.Sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.deps.Sessions.ExpireSessions(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expire sessions failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("count", n).Msg("expired sessions removed")
	}
}

func (s *Scheduler) enqueueReconcile() {
	if s.deps.Bookings == nil || s.deps.Queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stale, err := s.deps.Bookings.ListAwaitingPayment(ctx, s.now().Add(-s.cfg.Payment.ReconcileAfter), reconcileBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("list bookings awaiting payment failed")
		return
	}

	queued := 0
	for _, b := range stale {
		task := queue.Task{
			Type:          queue.TaskReconcilePayment,
			BookingNumber: b.Number,
			Source:        "schedule",
		}
		if b.PurchaseID != nil {
			task.PurchaseID = *b.PurchaseID
		}
		if _, err := s.deps.Queue.Enqueue(ctx, task); err != nil {
			s.log.Error().Err(err).Str("booking", b.Number).Msg("enqueue reconcile failed")
			continue
		}
		queued++
	}
	if queued > 0 {
		s.log.Info().Int("count", queued).Msg("payment reconcile queued")
	}
}
