// Package jobs schedules background work.
package jobs

import (
	"context"
	"time"

	"estoquefacil/internal/services"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SalesReconciler is satisfied by *services.Reconciler.
type SalesReconciler interface {
	Run(ctx context.Context, actorID string) (services.SyncSummary, error)
}

// Scheduler runs sales reconciliation on a cron schedule. A run that is still
// going when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron       *cron.Cron
	reconciler SalesReconciler
	logger     *zap.Logger
	timeout    time.Duration
}

func NewScheduler(reconciler SalesReconciler, logger *zap.Logger) *Scheduler {
	logger = logger.Named("jobs")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		reconciler: reconciler,
		logger:     logger,
		timeout:    5 * time.Minute,
	}
}

// ScheduleReconcile registers the reconciliation job. schedule uses the standard
// five-field cron syntax or descriptors such as "@hourly".
func (s *Scheduler) ScheduleReconcile(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.RunReconcile)
	return err
}

// RunReconcile performs one reconciliation pass and logs its summary.
func (s *Scheduler) RunReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	summary, err := s.reconciler.Run(ctx, "")
	if err != nil {
		s.logger.Error("scheduled reconcile failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled reconcile finished",
		zap.Int("total_sessions", summary.TotalSessions),
		zap.Int("attributed_sessions", summary.AttributedSessions),
		zap.Int("already_synced", summary.AlreadySynced),
		zap.Int("synced_sales", summary.SyncedSales),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", time.Since(started)))
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for a running one to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
