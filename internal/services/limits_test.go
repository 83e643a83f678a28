package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"estoquefacil/internal/models"
	"estoquefacil/internal/plans"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProducts(t *testing.T, f *fixture, accountID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.store.CreateProduct(context.Background(), models.Product{AccountID: accountID, Name: fmt.Sprintf("p%03d", i)})
		require.NoError(t, err)
	}
}

func TestLimitsCheckProfessionalNearLimit(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "padaria@example.com", models.TierProfessional)
	seedProducts(t, f, acct.ID, 165)

	u, err := f.svc.Limits.Check(context.Background(), acct.ID, plans.ResourceProducts)
	require.NoError(t, err)
	assert.Equal(t, 165, u.Used)
	assert.Equal(t, 200, u.Max)
	assert.Equal(t, "165/200 produtos", u.Label)
	assert.Equal(t, plans.StateNearLimit, u.State)
}

func TestLimitsEnforceBlocksAtCap(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "cheio@example.com", models.TierFree)
	seedProducts(t, f, acct.ID, 50)

	_, err := f.svc.Inventory.CreateProduct(context.Background(), acct.ID, ProductInput{Name: "Açúcar"})
	require.ErrorIs(t, err, ErrPlanLimitReached)
	assert.Equal(t, "plan limit reached: 50/50 produtos", err.Error())

	n, err := f.store.CountResource(context.Background(), acct.ID, plans.ResourceProducts)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestLimitsEnterpriseIsUnlimited(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "grande@example.com", models.TierEnterprise)
	seedProducts(t, f, acct.ID, 250)

	u, err := f.svc.Limits.Check(context.Background(), acct.ID, plans.ResourceProducts)
	require.NoError(t, err)
	assert.True(t, u.Unlimited)
	assert.Nil(t, u.Percent)
	assert.NoError(t, f.svc.Limits.Enforce(context.Background(), acct.ID, plans.ResourceProducts))
}

func TestLimitsConcurrentCreatesStopAtCap(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "corrida@example.com", models.TierFree)
	seedProducts(t, f, acct.ID, 49)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Inventory.CreateProduct(context.Background(), acct.ID, ProductInput{Name: fmt.Sprintf("extra%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	created, blocked := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrPlanLimitReached):
			blocked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, blocked)

	n, err := f.store.CountResource(context.Background(), acct.ID, plans.ResourceProducts)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

type failingCounter struct{}

func (failingCounter) CountResource(context.Context, string, plans.Resource) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLimitsCountFailureIsNeverZero(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "instavel@example.com", models.TierFree)
	l := &Limits{accounts: f.store, usage: failingCounter{}}

	_, err := l.Check(context.Background(), acct.ID, plans.ResourceRecipes)
	assert.ErrorIs(t, err, ErrUsageUnavailable)
	assert.ErrorIs(t, l.Enforce(context.Background(), acct.ID, plans.ResourceRecipes), ErrUsageUnavailable)
}

func TestLimitsOverviewCoversEveryResource(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "visao@example.com", models.TierFree)
	all, err := f.svc.Limits.Overview(context.Background(), acct.ID)
	require.NoError(t, err)
	require.Len(t, all, len(plans.Resources))
	for i, u := range all {
		assert.Equal(t, plans.Resources[i], u.Resource)
		assert.Equal(t, plans.StateOK, u.State)
	}
}

func TestLimitsRejectsUnknownResource(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "x@example.com", models.TierFree)
	_, err := f.svc.Limits.Check(context.Background(), acct.ID, plans.Resource("usuarios"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
