package services

import (
	"context"
	"math"
	"strings"
	"time"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/models"
	"estoquefacil/internal/numfmt"
	"estoquefacil/internal/payments"

	"go.uber.org/zap"
)

const maxPercentOff = 100

type CreateCouponInput struct {
	AffiliateID    string
	Name           string
	DiscountType   models.DiscountType
	DiscountValue  float64
	MaxRedemptions *int
	ExpiresAt      *time.Time
}

type Coupons struct {
	coupons    CouponStore
	affiliates AffiliateStore
	payments   Payments
	activity   activity.Recorder
	logger     *zap.Logger
	currency   string
	now        func() time.Time
}

func (c *Coupons) validate(in CreateCouponInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	switch in.DiscountType {
	case models.DiscountPercentage:
		if in.DiscountValue <= 0 || in.DiscountValue > maxPercentOff {
			return invalid("discount_value", "percentage must be greater than 0 and at most %d", maxPercentOff)
		}
	case models.DiscountFixed:
		if in.DiscountValue <= 0 {
			return invalid("discount_value", "fixed discount must be greater than 0")
		}
		if math.Abs(in.DiscountValue*100-math.Round(in.DiscountValue*100)) > 1e-6 {
			return invalid("discount_value", "fixed discount allows at most 2 decimal places")
		}
	default:
		return invalid("discount_type", "must be percentage or fixed")
	}
	if in.MaxRedemptions != nil && *in.MaxRedemptions <= 0 {
		return invalid("max_redemptions", "must be positive when set")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(c.now()) {
		return invalid("expires_at", "must be in the future")
	}
	return nil
}

// CreateCoupon validates the input, mints the Stripe coupon and stores the
// local mirror. Nothing is sent to Stripe when validation fails.
func (c *Coupons) CreateCoupon(ctx context.Context, actorID string, in CreateCouponInput) (models.AffiliateCoupon, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := c.validate(in); err != nil {
		return models.AffiliateCoupon{}, err
	}
	aff, err := c.affiliates.GetAffiliate(ctx, in.AffiliateID)
	if err != nil {
		return models.AffiliateCoupon{}, err
	}

	params := payments.CouponParams{
		Name:           in.Name,
		MaxRedemptions: in.MaxRedemptions,
		RedeemBy:       in.ExpiresAt,
		Metadata:       map[string]string{"affiliate_id": aff.ID, "affiliate_code": aff.Code},
	}
	if in.DiscountType == models.DiscountPercentage {
		params.PercentOff = in.DiscountValue
	} else {
		params.AmountOffCents = numfmt.RoundCents(in.DiscountValue)
		params.Currency = c.currency
	}
	stripeID, err := c.payments.CreateCoupon(ctx, params)
	if err != nil {
		c.logger.Warn("stripe coupon creation failed", zap.String("affiliate_id", aff.ID), zap.Error(err))
		return models.AffiliateCoupon{}, stripeError("create coupon", err)
	}

	coupon, err := c.coupons.CreateCoupon(ctx, models.AffiliateCoupon{
		AffiliateID:    aff.ID,
		Name:           in.Name,
		DiscountType:   in.DiscountType,
		DiscountValue:  in.DiscountValue,
		MaxRedemptions: in.MaxRedemptions,
		ExpiresAt:      in.ExpiresAt,
		IsActive:       true,
		StripeCouponID: stripeID,
	})
	if err != nil {
		c.logger.Error("stripe coupon minted but local insert failed",
			zap.String("stripe_coupon_id", stripeID), zap.Error(err))
		return models.AffiliateCoupon{}, err
	}
	c.activity.Record(ctx, models.ActivityEntry{
		AccountID:  actorID,
		Action:     activity.ActionCouponCreated,
		EntityType: "affiliate_coupon",
		EntityID:   coupon.ID,
		Details: map[string]any{
			"affiliate_id":   aff.ID,
			"discount_type":  coupon.DiscountType,
			"discount_value": coupon.DiscountValue,
		},
	})
	return coupon, nil
}

func (c *Coupons) Get(ctx context.Context, couponID string) (models.AffiliateCoupon, error) {
	return c.coupons.GetCoupon(ctx, couponID)
}

func (c *Coupons) List(ctx context.Context, affiliateID string) ([]models.AffiliateCoupon, error) {
	return c.coupons.ListCoupons(ctx, affiliateID)
}

// ToggleCouponStatus flips the local active flag. The Stripe coupon is left
// alone; eligibility is enforced when a checkout is started.
func (c *Coupons) ToggleCouponStatus(ctx context.Context, actorID, couponID string, currentStatus bool) (models.AffiliateCoupon, error) {
	coupon, err := c.coupons.SetCouponActive(ctx, couponID, !currentStatus)
	if err != nil {
		return models.AffiliateCoupon{}, err
	}
	c.activity.Record(ctx, models.ActivityEntry{
		AccountID:  actorID,
		Action:     activity.ActionCouponToggled,
		EntityType: "affiliate_coupon",
		EntityID:   coupon.ID,
		Details:    map[string]any{"is_active": coupon.IsActive},
	})
	return coupon, nil
}

func (c *Coupons) GetActiveCouponsForAffiliate(ctx context.Context, affiliateID string) ([]models.AffiliateCoupon, error) {
	all, err := c.coupons.ListCoupons(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	return EligibleCoupons(all, c.now()), nil
}

// EligibleCoupons keeps the coupons that are active, unexpired and under
// their redemption cap at now.
func EligibleCoupons(coupons []models.AffiliateCoupon, now time.Time) []models.AffiliateCoupon {
	out := make([]models.AffiliateCoupon, 0, len(coupons))
	for _, c := range coupons {
		if c.Eligible(now) {
			out = append(out, c)
		}
	}
	return out
}
