package models

import (
	"encoding/json"
	"time"
)

type Tier string

const (
	TierFree         Tier = "free"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

const (
	RoleUser      = "user"
	RoleAffiliate = "affiliate"
	RoleAdmin     = "admin"
)

type Account struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	PasswordHash     string       `json:"-"`
	BusinessName     string       `json:"business_name"`
	Role             string       `json:"role"`
	Tier             Tier         `json:"tier"`
	BillingCycle     BillingCycle `json:"billing_cycle"`
	StripeCustomerID string       `json:"-"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

const (
	AffiliateActive   = "active"
	AffiliateInactive = "inactive"
)

type Affiliate struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Status          string    `json:"status"`
	CommissionRate  float64   `json:"commission_rate"`
	TotalSales      int       `json:"total_sales"`
	TotalCommission int64     `json:"total_commission_cents"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type AffiliateLink struct {
	ID          string    `json:"id"`
	AffiliateID string    `json:"affiliate_id"`
	Slug        string    `json:"slug"`
	Label       string    `json:"label"`
	Clicks      int       `json:"clicks"`
	Conversions int       `json:"conversions"`
	CreatedAt   time.Time `json:"created_at"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type AffiliateCoupon struct {
	ID             string       `json:"id"`
	AffiliateID    string       `json:"affiliate_id"`
	Name           string       `json:"name"`
	DiscountType   DiscountType `json:"discount_type"`
	DiscountValue  float64      `json:"discount_value"`
	MaxRedemptions *int         `json:"max_redemptions"`
	TimesRedeemed  int          `json:"times_redeemed"`
	ExpiresAt      *time.Time   `json:"expires_at"`
	IsActive       bool         `json:"is_active"`
	StripeCouponID string       `json:"stripe_coupon_id"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Eligible reports whether the coupon can be applied at the given instant:
// active, not expired, and under its redemption cap.
func (c AffiliateCoupon) Eligible(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	if c.MaxRedemptions != nil && c.TimesRedeemed >= *c.MaxRedemptions {
		return false
	}
	return true
}

const (
	SaleStatusConfirmed = "confirmed"
	CommissionPending   = "pending"
)

type AffiliateSale struct {
	ID                string    `json:"id"`
	AffiliateID       string    `json:"affiliate_id"`
	LinkID            *string   `json:"link_id"`
	CouponID          *string   `json:"coupon_id"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	CustomerEmail     string    `json:"customer_email"`
	AmountCents       int64     `json:"amount_cents"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type AffiliateCommission struct {
	ID          string    `json:"id"`
	AffiliateID string    `json:"affiliate_id"`
	SaleID      string    `json:"sale_id"`
	AmountCents int64     `json:"amount_cents"`
	Rate        float64   `json:"rate"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserConfiguration struct {
	AccountID  string          `json:"account_id"`
	ConfigType string          `json:"config_type"`
	Payload    json.RawMessage `json:"payload"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type ActivityEntry struct {
	ID         int64          `json:"id"`
	AccountID  string         `json:"account_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
