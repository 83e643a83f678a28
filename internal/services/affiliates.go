package services

import (
	"context"
	"errors"
	"strings"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCommissionRate = 0.3

type Affiliates struct {
	accounts   AccountStore
	affiliates AffiliateStore
	sales      SaleStore
	activity   activity.Recorder
	logger     *zap.Logger
}

type CreateAffiliateInput struct {
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	Code           string   `json:"code"`
	CommissionRate *float64 `json:"commission_rate"`
}

func newAffiliateCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func newLinkSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Create turns an existing account into an affiliate. The store promotes the
// account role in the same transaction as the insert.
func (a *Affiliates) Create(ctx context.Context, actorID string, in CreateAffiliateInput) (models.Affiliate, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateEmail(email); err != nil {
		return models.Affiliate{}, err
	}
	rate := defaultCommissionRate
	if in.CommissionRate != nil {
		rate = *in.CommissionRate
	}
	if rate < 0 || rate > 1 {
		return models.Affiliate{}, invalid("commission_rate", "must be between 0 and 1")
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		code = newAffiliateCode()
	}
	acct, err := a.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if isMissing(err) {
			return models.Affiliate{}, invalid("email", "no account registered for %s", email)
		}
		return models.Affiliate{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = acct.BusinessName
	}
	aff, err := a.affiliates.CreateAffiliate(ctx, models.Affiliate{
		AccountID:      acct.ID,
		Code:           code,
		Name:           name,
		Email:          email,
		Status:         models.AffiliateActive,
		CommissionRate: rate,
	})
	if errors.Is(err, ErrConflict) {
		if rerr := a.ensureRole(ctx, acct); rerr != nil {
			return models.Affiliate{}, rerr
		}
		return models.Affiliate{}, err
	}
	if err != nil {
		return models.Affiliate{}, err
	}
	a.activity.Record(ctx, models.ActivityEntry{
		AccountID:  actorID,
		Action:     activity.ActionAffiliateCreated,
		EntityType: "affiliate",
		EntityID:   aff.ID,
		Details:    map[string]any{"code": aff.Code},
	})
	return aff, nil
}

// ensureRole promotes a user that already owns an affiliate profile, so an
// account left with the user role is repaired by creating it again. A conflict
// on another account's code leaves acct alone.
func (a *Affiliates) ensureRole(ctx context.Context, acct models.Account) error {
	if acct.Role != models.RoleUser {
		return nil
	}
	if _, err := a.affiliates.GetAffiliateByAccount(ctx, acct.ID); err != nil {
		if isMissing(err) {
			return nil
		}
		return err
	}
	return a.accounts.SetAccountRole(ctx, acct.ID, models.RoleAffiliate)
}

type ImportError struct {
	Index   int    `json:"index"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// Import creates affiliates one by one. Existing affiliates are skipped and a
// failing item is recorded without stopping the batch.
func (a *Affiliates) Import(ctx context.Context, actorID string, items []CreateAffiliateInput) ImportResult {
	res := ImportResult{Errors: []ImportError{}}
	for i, in := range items {
		_, err := a.Create(ctx, actorID, in)
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, ErrConflict):
			res.Skipped++
		default:
			res.Errors = append(res.Errors, ImportError{Index: i, Email: in.Email, Message: err.Error()})
			a.logger.Warn("affiliate import item failed", zap.Int("index", i), zap.String("email", in.Email), zap.Error(err))
		}
	}
	a.activity.Record(ctx, models.ActivityEntry{
		AccountID:  actorID,
		Action:     activity.ActionAffiliateImport,
		EntityType: "affiliate",
		Details: map[string]any{
			"imported": res.Imported,
			"skipped":  res.Skipped,
			"errors":   len(res.Errors),
		},
	})
	return res
}

func (a *Affiliates) List(ctx context.Context) ([]models.Affiliate, error) {
	return a.affiliates.ListAffiliates(ctx)
}

func (a *Affiliates) ForAccount(ctx context.Context, accountID string) (models.Affiliate, error) {
	return a.affiliates.GetAffiliateByAccount(ctx, accountID)
}

func (a *Affiliates) Sales(ctx context.Context, affiliateID string) ([]models.AffiliateSale, error) {
	return a.sales.ListSales(ctx, affiliateID)
}

func (a *Affiliates) CreateLink(ctx context.Context, affiliateID, label string) (models.AffiliateLink, error) {
	return a.affiliates.CreateLink(ctx, models.AffiliateLink{
		AffiliateID: affiliateID,
		Slug:        newLinkSlug(),
		Label:       strings.TrimSpace(label),
	})
}

func (a *Affiliates) ListLinks(ctx context.Context, affiliateID string) ([]models.AffiliateLink, error) {
	return a.affiliates.ListLinks(ctx, affiliateID)
}

// TrackClick counts a visit to a referral link and returns the link with its
// affiliate. Links of inactive affiliates resolve to ErrNotFound.
func (a *Affiliates) TrackClick(ctx context.Context, slug string) (models.AffiliateLink, models.Affiliate, error) {
	link, err := a.affiliates.GetLinkBySlug(ctx, slug)
	if err != nil {
		return models.AffiliateLink{}, models.Affiliate{}, err
	}
	aff, err := a.affiliates.GetAffiliate(ctx, link.AffiliateID)
	if err != nil {
		return models.AffiliateLink{}, models.Affiliate{}, err
	}
	if aff.Status != models.AffiliateActive {
		return models.AffiliateLink{}, models.Affiliate{}, ErrNotFound
	}
	if err := a.affiliates.IncrementLinkClicks(ctx, link.ID); err != nil {
		return models.AffiliateLink{}, models.Affiliate{}, err
	}
	link.Clicks++
	return link, aff, nil
}
