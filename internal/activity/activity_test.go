package activity

import (
	"context"
	"testing"

	"estoquefacil/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecorder(t *testing.T) {
	var m Memory
	ctx := context.Background()
	m.Record(ctx, models.ActivityEntry{AccountID: "a", Action: ActionCouponCreated})
	m.Record(ctx, models.ActivityEntry{AccountID: "b", Action: ActionConfigSaved})
	m.Record(ctx, models.ActivityEntry{AccountID: "a", Action: ActionCouponToggled})

	assert.Equal(t, []string{ActionCouponCreated, ActionConfigSaved, ActionCouponToggled}, m.Actions())

	entries, err := m.List(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionCouponToggled, entries[0].Action)

	entries, err = m.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(context.Background(), models.ActivityEntry{Action: ActionSalesSynced})
	entries, err := r.List(context.Background(), "", 10)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
