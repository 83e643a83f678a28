package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/config"
	"estoquefacil/internal/models"
	"estoquefacil/internal/payments"
	"estoquefacil/internal/store"

	"github.com/stretchr/testify/require"
)

type fakePayments struct {
	mu            sync.Mutex
	sessions      []payments.CheckoutSession
	listErr       error
	couponErr     error
	checkoutErr   error
	couponCalls   []payments.CouponParams
	checkoutCalls []payments.CheckoutParams
	events        map[string]payments.Event
	parseErr      error
}

func (f *fakePayments) CreateCoupon(_ context.Context, p payments.CouponParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.couponCalls = append(f.couponCalls, p)
	if f.couponErr != nil {
		return "", f.couponErr
	}
	return fmt.Sprintf("co_%d", len(f.couponCalls)), nil
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, p payments.CheckoutParams) (payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkoutCalls = append(f.checkoutCalls, p)
	if f.checkoutErr != nil {
		return payments.CheckoutSession{}, f.checkoutErr
	}
	id := fmt.Sprintf("cs_new_%d", len(f.checkoutCalls))
	return payments.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id, Metadata: p.Metadata}, nil
}

func (f *fakePayments) ListCompletedSessions(_ context.Context, since time.Time, limit int) ([]payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []payments.CheckoutSession
	for _, s := range f.sessions {
		if s.Created.Before(since) {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePayments) ParseEvent(payload []byte, signature string) (payments.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.parseErr != nil {
		return payments.Event{}, f.parseErr
	}
	ev, ok := f.events[signature]
	if !ok {
		return payments.Event{}, &payments.RejectedError{Message: "no signatures found matching the expected signature for payload"}
	}
	return ev, nil
}

type fixture struct {
	svc      *Service
	store    *store.Memory
	payments *fakePayments
	activity *activity.Memory
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemory(),
		payments: &fakePayments{events: map[string]payments.Event{}},
		activity: &activity.Memory{},
		now:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = New(Deps{
		Store:    f.store,
		Payments: f.payments,
		Activity: f.activity,
		Config: config.Config{
			StripeCurrency:        "brl",
			ReconcileLookbackDays: 30,
			ReconcileSessionLimit: 100,
			StripePrices: map[string]string{
				"professional_monthly": "price_pro_m",
				"enterprise_yearly":    "price_ent_y",
			},
		},
		Now: func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) account(t *testing.T, email string, tier models.Tier) models.Account {
	t.Helper()
	a, err := f.store.CreateAccount(context.Background(), models.Account{
		Email:        email,
		Role:         models.RoleUser,
		Tier:         tier,
		BillingCycle: models.CycleMonthly,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) affiliate(t *testing.T, email, code string, rate float64) models.Affiliate {
	t.Helper()
	acct := f.account(t, email, models.TierFree)
	aff, err := f.store.CreateAffiliate(context.Background(), models.Affiliate{
		AccountID:      acct.ID,
		Code:           code,
		Name:           code,
		Email:          email,
		Status:         models.AffiliateActive,
		CommissionRate: rate,
	})
	require.NoError(t, err)
	return aff
}

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }
