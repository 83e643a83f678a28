package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"estoquefacil/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubReconciler struct {
	calls   int32
	actor   atomic.Value
	summary services.SyncSummary
	err     error
	hold    chan struct{}
}

func (s *stubReconciler) Run(ctx context.Context, actorID string) (services.SyncSummary, error) {
	atomic.AddInt32(&s.calls, 1)
	s.actor.Store(actorID)
	if s.hold != nil {
		<-s.hold
	}
	return s.summary, s.err
}

func TestRunReconcileLogsSummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := &stubReconciler{summary: services.SyncSummary{TotalSessions: 100, AttributedSessions: 7, AlreadySynced: 5, SyncedSales: 2}}
	s := NewScheduler(r, zap.New(core))

	s.RunReconcile()

	assert.Equal(t, int32(1), r.calls)
	assert.Equal(t, "", r.actor.Load())
	entries := logs.FilterMessage("scheduled reconcile finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 2, fields["synced_sales"])
	assert.EqualValues(t, 100, fields["total_sessions"])
}

func TestRunReconcileLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewScheduler(&stubReconciler{err: errors.New("stripe down")}, zap.New(core))

	s.RunReconcile()

	assert.Equal(t, 1, logs.FilterMessage("scheduled reconcile failed").Len())
	assert.Equal(t, 0, logs.FilterMessage("scheduled reconcile finished").Len())
}

func TestScheduleRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&stubReconciler{}, zap.NewNop())
	assert.Error(t, s.ScheduleReconcile("not a schedule"))
	assert.NoError(t, s.ScheduleReconcile("@every 1h"))
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	r := &stubReconciler{hold: make(chan struct{})}
	s := NewScheduler(r, zap.NewNop())
	require.NoError(t, s.ScheduleReconcile("@every 1s"))
	s.Start()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&r.calls) == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(2200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.calls))

	close(r.hold)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
}
