package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/coalesce"
	"estoquefacil/internal/models"
	"estoquefacil/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedConfigStore blocks the first write until released and records the
// payload of every write in execution order.
type gatedConfigStore struct {
	*store.Memory
	mu      sync.Mutex
	writes  []string
	started chan struct{}
	release chan struct{}
	once    sync.Once
	failOn  string
}

func (g *gatedConfigStore) UpsertConfiguration(ctx context.Context, c models.UserConfiguration) (models.UserConfiguration, error) {
	first := false
	g.once.Do(func() { first = true })
	if first && g.started != nil {
		close(g.started)
		<-g.release
	}
	g.mu.Lock()
	g.writes = append(g.writes, string(c.Payload))
	g.mu.Unlock()
	if g.failOn != "" && string(c.Payload) == g.failOn {
		return models.UserConfiguration{}, errors.New("disk full")
	}
	return g.Memory.UpsertConfiguration(ctx, c)
}

func newConfigs(s ConfigStore, reg *coalesce.Registry) *Configs {
	return &Configs{store: s, serializer: reg, activity: &activity.Memory{}}
}

func TestConfigsBackToBackSavesRunInOrder(t *testing.T) {
	gs := &gatedConfigStore{Memory: store.NewMemory(), started: make(chan struct{}), release: make(chan struct{})}
	reg := coalesce.NewRegistry()
	cfgs := newConfigs(gs, reg)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := cfgs.Save(ctx, "acct", "theme", json.RawMessage(`{"v":1}`))
		assert.NoError(t, err)
	}()
	<-gs.started
	go func() {
		defer wg.Done()
		_, err := cfgs.Save(ctx, "acct", "theme", json.RawMessage(`{"v":2}`))
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return reg.InFlight(configKey("acct", "theme")) == 2 }, time.Second, time.Millisecond)

	close(gs.release)
	wg.Wait()

	assert.Equal(t, []string{`{"v":1}`, `{"v":2}`}, gs.writes)
	saved, err := cfgs.Get(ctx, "acct", "theme")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(saved.Payload))
}

func TestConfigsFailureDoesNotBlockLaterSaves(t *testing.T) {
	gs := &gatedConfigStore{Memory: store.NewMemory(), failOn: `{"bad":true}`}
	reg := coalesce.NewRegistry()
	cfgs := newConfigs(gs, reg)
	ctx := context.Background()

	_, err := cfgs.Save(ctx, "acct", "printer", json.RawMessage(`{"bad":true}`))
	require.Error(t, err)
	assert.Equal(t, 0, reg.InFlight(configKey("acct", "printer")))

	_, err = cfgs.Save(ctx, "acct", "printer", json.RawMessage(`{"ok":true}`))
	require.NoError(t, err)
}

func TestConfigsValidation(t *testing.T) {
	cfgs := newConfigs(store.NewMemory(), coalesce.NewRegistry())
	ctx := context.Background()

	_, err := cfgs.Save(ctx, "acct", "Theme Settings", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = cfgs.Save(ctx, "acct", "theme", json.RawMessage(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = cfgs.Save(ctx, "acct", "theme", nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestConfigsListAndMissing(t *testing.T) {
	cfgs := newConfigs(store.NewMemory(), coalesce.NewRegistry())
	ctx := context.Background()
	_, err := cfgs.Get(ctx, "acct", "theme")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cfgs.Save(ctx, "acct", "theme", json.RawMessage(`{"dark":true}`))
	require.NoError(t, err)
	_, err = cfgs.Save(ctx, "acct", "alerts", json.RawMessage(`[1,2]`))
	require.NoError(t, err)
	_, err = cfgs.Save(ctx, "other", "theme", json.RawMessage(`{}`))
	require.NoError(t, err)

	list, err := cfgs.List(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alerts", list[0].ConfigType)
}

type failingSerializer struct{ err error }

func (s failingSerializer) Do(context.Context, string, func(context.Context) error) error {
	return s.err
}

func TestConfigsLockFailureIsRemote(t *testing.T) {
	cfgs := &Configs{store: store.NewMemory(), serializer: failingSerializer{err: coalesce.ErrLockTimeout}, activity: activity.Nop{}}
	_, err := cfgs.Save(context.Background(), "acct", "theme", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrRemoteService)
	assert.ErrorIs(t, err, coalesce.ErrLockTimeout)
}

type lostLockSerializer struct{}

func (lostLockSerializer) Do(ctx context.Context, _ string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return coalesce.ErrLockLost
}

func TestConfigsLostLockIsRemote(t *testing.T) {
	cfgs := &Configs{store: store.NewMemory(), serializer: lostLockSerializer{}, activity: activity.Nop{}}
	_, err := cfgs.Save(context.Background(), "acct", "theme", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrRemoteService)
	assert.ErrorIs(t, err, coalesce.ErrLockLost)
}
