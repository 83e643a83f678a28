package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestCouponEligible(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name   string
		coupon AffiliateCoupon
		want   bool
	}{
		{"active no limits", AffiliateCoupon{IsActive: true}, true},
		{"inactive", AffiliateCoupon{IsActive: false}, false},
		{"expired but active", AffiliateCoupon{IsActive: true, ExpiresAt: &past}, false},
		{"expires exactly now", AffiliateCoupon{IsActive: true, ExpiresAt: &now}, false},
		{"not yet expired", AffiliateCoupon{IsActive: true, ExpiresAt: &future}, true},
		{"cap reached", AffiliateCoupon{IsActive: true, MaxRedemptions: intPtr(3), TimesRedeemed: 3}, false},
		{"cap exceeded", AffiliateCoupon{IsActive: true, MaxRedemptions: intPtr(3), TimesRedeemed: 5}, false},
		{"under cap", AffiliateCoupon{IsActive: true, MaxRedemptions: intPtr(3), TimesRedeemed: 2}, true},
		{"nil cap is unlimited", AffiliateCoupon{IsActive: true, TimesRedeemed: 10000}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.coupon.Eligible(now))
		})
	}
}

func TestValuationVariants(t *testing.T) {
	var entries []Valuation
	entries = append(entries,
		StockValuation{ProductID: "p1", Quantity: 4, UnitCost: 2.5},
		ShowcaseValuation{RecipeID: "r1", Quantity: 3, SalePrice: 12},
	)

	assert.Equal(t, OriginStock, entries[0].Origin())
	assert.InDelta(t, 10.0, entries[0].Value(), 1e-9)
	assert.Equal(t, OriginShowcase, entries[1].Origin())
	assert.InDelta(t, 36.0, entries[1].Value(), 1e-9)
}

func TestTierAndCycleValid(t *testing.T) {
	assert.True(t, TierProfessional.Valid())
	assert.False(t, Tier("gold").Valid())
	assert.True(t, CycleYearly.Valid())
	assert.False(t, BillingCycle("weekly").Valid())
}
