package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/models"
	"estoquefacil/internal/payments"

	"go.uber.org/zap"
)

type StartCheckoutInput struct {
	Tier            models.Tier         `json:"tier"`
	Cycle           models.BillingCycle `json:"cycle"`
	AffiliateCode   string              `json:"affiliate_code"`
	AffiliateLinkID string              `json:"affiliate_link_id"`
	CouponID        string              `json:"coupon_id"`
	SuccessURL      string              `json:"success_url"`
	CancelURL       string              `json:"cancel_url"`
}

type CheckoutResult struct {
	SessionID     string `json:"session_id"`
	URL           string `json:"checkout_url"`
	AffiliateCode string `json:"affiliate_code,omitempty"`
}

type Checkout struct {
	accounts   AccountStore
	affiliates AffiliateStore
	coupons    CouponStore
	payments   Payments
	reconciler *Reconciler
	activity   activity.Recorder
	logger     *zap.Logger
	prices     func(tier, cycle string) (string, bool)
	now        func() time.Time
}

// ownedLink returns linkID when it names one of the affiliate's links and ""
// otherwise, so a stale referral cookie cannot tag a sale with a foreign link.
func (c *Checkout) ownedLink(ctx context.Context, affiliateID, linkID string) (string, error) {
	if linkID == "" {
		return "", nil
	}
	links, err := c.affiliates.ListLinks(ctx, affiliateID)
	if err != nil {
		return "", err
	}
	for _, l := range links {
		if l.ID == linkID {
			return linkID, nil
		}
	}
	c.logger.Info("ignoring referral link", zap.String("link_id", linkID), zap.String("affiliate_id", affiliateID))
	return "", nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Start creates a Stripe subscription checkout for the account. An unknown or
// inactive affiliate code is dropped; a coupon that is not eligible for that
// affiliate is a validation error.
func (c *Checkout) Start(ctx context.Context, accountID string, in StartCheckoutInput) (CheckoutResult, error) {
	if !in.Tier.Valid() || in.Tier == models.TierFree {
		return CheckoutResult{}, invalid("tier", "must be professional or enterprise")
	}
	if !in.Cycle.Valid() {
		return CheckoutResult{}, invalid("cycle", "must be monthly or yearly")
	}
	if !validURL(in.SuccessURL) {
		return CheckoutResult{}, invalid("success_url", "must be an absolute http(s) URL")
	}
	if !validURL(in.CancelURL) {
		return CheckoutResult{}, invalid("cancel_url", "must be an absolute http(s) URL")
	}
	priceID, ok := c.prices(string(in.Tier), string(in.Cycle))
	if !ok {
		return CheckoutResult{}, ErrPaymentsNotConfigured
	}
	acct, err := c.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return CheckoutResult{}, err
	}

	meta := map[string]string{
		MetaAccountID: acct.ID,
		MetaTier:      string(in.Tier),
		MetaCycle:     string(in.Cycle),
	}
	var aff *models.Affiliate
	if code := strings.TrimSpace(in.AffiliateCode); code != "" {
		found, err := c.affiliates.GetAffiliateByCode(ctx, code)
		switch {
		case err == nil && found.Status == models.AffiliateActive && found.AccountID != acct.ID:
			aff = &found
			meta[MetaAffiliateCode] = found.Code
			linkID, err := c.ownedLink(ctx, found.ID, in.AffiliateLinkID)
			if err != nil {
				return CheckoutResult{}, err
			}
			if linkID != "" {
				meta[MetaAffiliateLinkID] = linkID
			}
		case err == nil || isMissing(err):
			c.logger.Info("ignoring affiliate code", zap.String("code", code), zap.String("account_id", acct.ID))
		default:
			return CheckoutResult{}, err
		}
	}

	stripeCouponID := ""
	if in.CouponID != "" {
		coupon, err := c.coupons.GetCoupon(ctx, in.CouponID)
		if err != nil && !isMissing(err) {
			return CheckoutResult{}, err
		}
		if err != nil || aff == nil || coupon.AffiliateID != aff.ID || !coupon.Eligible(c.now()) {
			return CheckoutResult{}, invalid("coupon_id", "coupon is not available")
		}
		stripeCouponID = coupon.StripeCouponID
		meta[MetaCouponID] = coupon.ID
	}

	sess, err := c.payments.CreateCheckoutSession(ctx, payments.CheckoutParams{
		PriceID:        priceID,
		CustomerEmail:  acct.Email,
		AccountID:      acct.ID,
		SuccessURL:     in.SuccessURL,
		CancelURL:      in.CancelURL,
		StripeCouponID: stripeCouponID,
		Metadata:       meta,
	})
	if err != nil {
		c.logger.Warn("checkout session creation failed", zap.String("account_id", acct.ID), zap.Error(err))
		return CheckoutResult{}, stripeError("create checkout session", err)
	}
	c.activity.Record(ctx, models.ActivityEntry{
		AccountID:  acct.ID,
		Action:     activity.ActionCheckoutStarted,
		EntityType: "checkout_session",
		EntityID:   sess.ID,
		Details:    map[string]any{"tier": in.Tier, "cycle": in.Cycle, "affiliate_code": meta[MetaAffiliateCode]},
	})
	return CheckoutResult{SessionID: sess.ID, URL: sess.URL, AffiliateCode: meta[MetaAffiliateCode]}, nil
}

// HandleWebhook verifies and applies a Stripe event. Redelivered events are
// harmless: plan updates are absolute and sales are keyed by session.
func (c *Checkout) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := c.payments.ParseEvent(payload, signature)
	if err != nil {
		return stripeError("verify webhook", err)
	}
	switch ev.Type {
	case payments.EventCheckoutCompleted:
		return c.completed(ctx, ev)
	case payments.EventSubscriptionDeleted:
		if ev.CustomerID == "" {
			return nil
		}
		acct, err := c.accounts.ResetPlanByCustomer(ctx, ev.CustomerID)
		if isMissing(err) {
			c.logger.Info("subscription deleted for unknown customer", zap.String("customer_id", ev.CustomerID))
			return nil
		}
		if err != nil {
			return err
		}
		c.recordPlanChange(ctx, acct.ID, models.TierFree, models.CycleMonthly, ev.ID)
	default:
		c.logger.Debug("ignoring stripe event", zap.String("type", ev.Type))
	}
	return nil
}

func (c *Checkout) completed(ctx context.Context, ev payments.Event) error {
	sess := ev.Session
	if sess == nil {
		return invalid("", "checkout event without session")
	}
	accountID := sess.Metadata[MetaAccountID]
	tier := models.Tier(sess.Metadata[MetaTier])
	cycle := models.BillingCycle(sess.Metadata[MetaCycle])
	if accountID != "" && tier.Valid() && cycle.Valid() {
		err := c.accounts.SetAccountPlan(ctx, accountID, tier, cycle, sess.CustomerID)
		if err != nil && !isMissing(err) {
			return err
		}
		if err == nil {
			c.recordPlanChange(ctx, accountID, tier, cycle, ev.ID)
		}
	}
	if _, err := c.reconciler.Attribute(ctx, *sess); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn("checkout attributed to unknown affiliate",
				zap.String("checkout_session_id", sess.ID), zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

func (c *Checkout) recordPlanChange(ctx context.Context, accountID string, tier models.Tier, cycle models.BillingCycle, eventID string) {
	c.activity.Record(ctx, models.ActivityEntry{
		AccountID:  accountID,
		Action:     activity.ActionPlanChanged,
		EntityType: "account",
		EntityID:   accountID,
		Details:    map[string]any{"tier": tier, "cycle": cycle, "event_id": eventID},
	})
}
