package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/models"
	"estoquefacil/internal/numfmt"
	"estoquefacil/internal/payments"

	"go.uber.org/zap"
)

// Checkout session metadata keys carrying attribution.
const (
	MetaAccountID       = "account_id"
	MetaTier            = "tier"
	MetaCycle           = "cycle"
	MetaAffiliateCode   = "affiliate_code"
	MetaAffiliateLinkID = "affiliate_link_id"
	MetaCouponID        = "coupon_id"
)

type SyncSummary struct {
	TotalSessions      int `json:"total_sessions"`
	AttributedSessions int `json:"attributed_sessions"`
	AlreadySynced      int `json:"already_synced"`
	SyncedSales        int `json:"synced_sales"`
	Errors             int `json:"errors"`
}

// Reconciler repairs affiliate sales whose webhook was missed by scanning
// recent completed checkout sessions.
type Reconciler struct {
	payments   Payments
	affiliates AffiliateStore
	sales      SaleStore
	notifier   Notifier
	activity   activity.Recorder
	logger     *zap.Logger
	lookback   time.Duration
	limit      int
	now        func() time.Time
}

// Run scans the lookback window. A failure on one session is counted and the
// scan continues; only a failure to list sessions fails the run.
func (r *Reconciler) Run(ctx context.Context, actorID string) (SyncSummary, error) {
	lookback := r.lookback
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	sessions, err := r.payments.ListCompletedSessions(ctx, r.now().Add(-lookback), r.limit)
	if err != nil {
		return SyncSummary{}, stripeError("list checkout sessions", err)
	}

	summary := SyncSummary{TotalSessions: len(sessions)}
	for _, sess := range sessions {
		if attributionCode(sess) == "" {
			continue
		}
		summary.AttributedSessions++
		created, err := r.Attribute(ctx, sess)
		switch {
		case err != nil:
			summary.Errors++
			r.logger.Warn("sync affiliate sale failed",
				zap.String("checkout_session_id", sess.ID),
				zap.String("affiliate_code", attributionCode(sess)),
				zap.Error(err))
		case created:
			summary.SyncedSales++
		default:
			summary.AlreadySynced++
		}
	}

	r.logger.Info("affiliate sales reconciled",
		zap.Int("total_sessions", summary.TotalSessions),
		zap.Int("attributed", summary.AttributedSessions),
		zap.Int("synced", summary.SyncedSales),
		zap.Int("errors", summary.Errors))
	r.activity.Record(ctx, models.ActivityEntry{
		AccountID:  actorID,
		Action:     activity.ActionSalesSynced,
		EntityType: "affiliate_sale",
		Details: map[string]any{
			"total_sessions": summary.TotalSessions,
			"synced_sales":   summary.SyncedSales,
			"errors":         summary.Errors,
		},
	})
	return summary, nil
}

func attributionCode(sess payments.CheckoutSession) string {
	return strings.TrimSpace(sess.Metadata[MetaAffiliateCode])
}

// Attribute records the sale and commission for one attributed session. It
// reports false when the session was already recorded. The existence check
// avoids a transaction in the common case; the unique constraint on the
// session id settles concurrent runs.
func (r *Reconciler) Attribute(ctx context.Context, sess payments.CheckoutSession) (bool, error) {
	code := attributionCode(sess)
	if code == "" {
		return false, nil
	}
	exists, err := r.sales.SaleExists(ctx, sess.ID)
	if err != nil {
		return false, fmt.Errorf("check sale %s: %w", sess.ID, err)
	}
	if exists {
		return false, nil
	}
	aff, err := r.affiliates.GetAffiliateByCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("affiliate %q: %w", code, err)
	}

	sale := models.AffiliateSale{
		AffiliateID:       aff.ID,
		CheckoutSessionID: sess.ID,
		CustomerEmail:     sess.CustomerEmail,
		AmountCents:       sess.AmountTotal,
		Currency:          sess.Currency,
		Status:            models.SaleStatusConfirmed,
	}
	if id := sess.Metadata[MetaAffiliateLinkID]; id != "" {
		sale.LinkID = &id
	}
	if id := sess.Metadata[MetaCouponID]; id != "" {
		sale.CouponID = &id
	}
	commission := models.AffiliateCommission{
		AffiliateID: aff.ID,
		AmountCents: commissionCents(sess.AmountTotal, aff.CommissionRate),
		Rate:        aff.CommissionRate,
		Status:      models.CommissionPending,
	}

	_, created, err := r.sales.RecordSale(ctx, sale, commission)
	if err != nil {
		return false, fmt.Errorf("record sale %s: %w", sess.ID, err)
	}
	if created {
		r.notify(ctx, aff, commission.AmountCents)
	}
	return created, nil
}

func commissionCents(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}

func (r *Reconciler) notify(ctx context.Context, aff models.Affiliate, cents int64) {
	if r.notifier == nil || aff.Email == "" {
		return
	}
	amount := numfmt.FormatCurrency(float64(cents) / 100)
	if err := r.notifier.CommissionEarned(ctx, aff.Email, aff.Name, amount); err != nil {
		r.logger.Warn("commission notification failed", zap.String("affiliate_id", aff.ID), zap.Error(err))
	}
}

// isMissing reports whether err is a lookup miss rather than a failure.
func isMissing(err error) bool { return errors.Is(err, ErrNotFound) }
