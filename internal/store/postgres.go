package store

import (
	"context"
	"errors"
	"fmt"

	"estoquefacil/internal/models"
	"estoquefacil/internal/plans"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// db returns the transaction WithAccountLock put in ctx, or the pool.
func (p *Postgres) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.pool
}

// WithAccountLock runs fn in a transaction that holds the account row with
// FOR UPDATE. Store calls made with the ctx handed to fn join the
// transaction, so a plan count and the insert it guards cannot interleave
// with another writer for the same account.
func (p *Postgres) WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context) error) error {
	tx, err := p.db(ctx).Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `SELECT id::text FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&id)
	if noRow(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const accountColumns = `id::text, email, password_hash, business_name, role, tier, billing_cycle, stripe_customer_id, created_at, updated_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.BusinessName, &a.Role, &a.Tier, &a.BillingCycle, &a.StripeCustomerID, &a.CreatedAt, &a.UpdatedAt)
	if noRow(err) {
		return models.Account{}, ErrNotFound
	}
	return a, err
}

func (p *Postgres) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	created, err := scanAccount(p.db(ctx).QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, business_name, role, tier, billing_cycle)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+accountColumns,
		a.Email, a.PasswordHash, a.BusinessName, a.Role, a.Tier, a.BillingCycle))
	if isUniqueViolation(err) {
		return models.Account{}, fmt.Errorf("account %s: %w", a.Email, ErrConflict)
	}
	return created, err
}

func (p *Postgres) GetAccount(ctx context.Context, id string) (models.Account, error) {
	return scanAccount(p.db(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (p *Postgres) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	return scanAccount(p.db(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
}

func (p *Postgres) SetAccountPlan(ctx context.Context, id string, tier models.Tier, cycle models.BillingCycle, customerID string) error {
	ct, err := p.db(ctx).Exec(ctx, `
		UPDATE accounts
		SET tier = $2, billing_cycle = $3,
			stripe_customer_id = CASE WHEN $4 = '' THEN stripe_customer_id ELSE $4 END,
			updated_at = NOW()
		WHERE id = $1`, id, tier, cycle, customerID)
	if noRow(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetPlanByCustomer moves the account owning a Stripe customer back to the
// free tier.
func (p *Postgres) ResetPlanByCustomer(ctx context.Context, customerID string) (models.Account, error) {
	return scanAccount(p.db(ctx).QueryRow(ctx, `
		UPDATE accounts SET tier = $2, billing_cycle = $3, updated_at = NOW()
		WHERE stripe_customer_id = $1 AND stripe_customer_id <> ''
		RETURNING `+accountColumns, customerID, models.TierFree, models.CycleMonthly))
}

func (p *Postgres) SetAccountRole(ctx context.Context, id, role string) error {
	ct, err := p.db(ctx).Exec(ctx, `UPDATE accounts SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
	if noRow(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) HasRoleOrHigher(ctx context.Context, accountID, role string) (bool, error) {
	var ok bool
	err := p.db(ctx).QueryRow(ctx, `SELECT has_role_or_higher($1::uuid, $2)`, accountID, role).Scan(&ok)
	return ok, err
}

func resourceTable(r plans.Resource) (string, error) {
	switch r {
	case plans.ResourceProducts:
		return "products", nil
	case plans.ResourceRecipes:
		return "recipes", nil
	case plans.ResourceSuppliers:
		return "suppliers", nil
	case plans.ResourceShowcase:
		return "showcase_items", nil
	}
	return "", fmt.Errorf("unknown resource %q", r)
}

// CountResource counts the rows an account owns for a plan resource.
func (p *Postgres) CountResource(ctx context.Context, accountID string, r plans.Resource) (int, error) {
	table, err := resourceTable(r)
	if err != nil {
		return 0, err
	}
	var n int
	err = p.db(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE account_id = $1`, accountID).Scan(&n)
	return n, err
}

const affiliateColumns = `id::text, account_id::text, code, name, email, status, commission_rate::float8, total_sales, total_commission_cents, created_at, updated_at`

func scanAffiliate(row pgx.Row) (models.Affiliate, error) {
	var a models.Affiliate
	err := row.Scan(&a.ID, &a.AccountID, &a.Code, &a.Name, &a.Email, &a.Status, &a.CommissionRate, &a.TotalSales, &a.TotalCommission, &a.CreatedAt, &a.UpdatedAt)
	if noRow(err) {
		return models.Affiliate{}, ErrNotFound
	}
	return a, err
}

// CreateAffiliate inserts the profile and promotes its account from user to
// affiliate in one transaction. Higher roles are kept.
func (p *Postgres) CreateAffiliate(ctx context.Context, a models.Affiliate) (models.Affiliate, error) {
	tx, err := p.db(ctx).Begin(ctx)
	if err != nil {
		return models.Affiliate{}, err
	}
	defer tx.Rollback(ctx)

	created, err := scanAffiliate(tx.QueryRow(ctx, `
		INSERT INTO affiliates (account_id, code, name, email, status, commission_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+affiliateColumns,
		a.AccountID, a.Code, a.Name, a.Email, a.Status, a.CommissionRate))
	if isUniqueViolation(err) {
		return models.Affiliate{}, fmt.Errorf("affiliate for account %s: %w", a.AccountID, ErrConflict)
	}
	if err != nil {
		return models.Affiliate{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET role = $2, updated_at = NOW()
		WHERE id = $1 AND role = $3`, a.AccountID, models.RoleAffiliate, models.RoleUser); err != nil {
		return models.Affiliate{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Affiliate{}, err
	}
	return created, nil
}

func (p *Postgres) GetAffiliate(ctx context.Context, id string) (models.Affiliate, error) {
	return scanAffiliate(p.db(ctx).QueryRow(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE id = $1`, id))
}

func (p *Postgres) GetAffiliateByCode(ctx context.Context, code string) (models.Affiliate, error) {
	return scanAffiliate(p.db(ctx).QueryRow(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE upper(code) = upper($1)`, code))
}

func (p *Postgres) GetAffiliateByAccount(ctx context.Context, accountID string) (models.Affiliate, error) {
	return scanAffiliate(p.db(ctx).QueryRow(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE account_id = $1`, accountID))
}

func (p *Postgres) ListAffiliates(ctx context.Context) ([]models.Affiliate, error) {
	rows, err := p.db(ctx).Query(ctx, `SELECT `+affiliateColumns+` FROM affiliates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Affiliate
	for rows.Next() {
		a, err := scanAffiliate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const linkColumns = `id::text, affiliate_id::text, slug, label, clicks, conversions, created_at`

func scanLink(row pgx.Row) (models.AffiliateLink, error) {
	var l models.AffiliateLink
	err := row.Scan(&l.ID, &l.AffiliateID, &l.Slug, &l.Label, &l.Clicks, &l.Conversions, &l.CreatedAt)
	if noRow(err) {
		return models.AffiliateLink{}, ErrNotFound
	}
	return l, err
}

func (p *Postgres) CreateLink(ctx context.Context, l models.AffiliateLink) (models.AffiliateLink, error) {
	created, err := scanLink(p.db(ctx).QueryRow(ctx, `
		INSERT INTO affiliate_links (affiliate_id, slug, label)
		VALUES ($1, $2, $3)
		RETURNING `+linkColumns, l.AffiliateID, l.Slug, l.Label))
	if isUniqueViolation(err) {
		return models.AffiliateLink{}, fmt.Errorf("link %s: %w", l.Slug, ErrConflict)
	}
	return created, err
}

func (p *Postgres) ListLinks(ctx context.Context, affiliateID string) ([]models.AffiliateLink, error) {
	rows, err := p.db(ctx).Query(ctx, `SELECT `+linkColumns+` FROM affiliate_links WHERE affiliate_id = $1 ORDER BY created_at DESC`, affiliateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AffiliateLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *Postgres) GetLinkBySlug(ctx context.Context, slug string) (models.AffiliateLink, error) {
	return scanLink(p.db(ctx).QueryRow(ctx, `SELECT `+linkColumns+` FROM affiliate_links WHERE slug = $1`, slug))
}

func (p *Postgres) IncrementLinkClicks(ctx context.Context, linkID string) error {
	_, err := p.db(ctx).Exec(ctx, `UPDATE affiliate_links SET clicks = clicks + 1 WHERE id = $1`, linkID)
	return err
}

const couponColumns = `id::text, affiliate_id::text, name, discount_type, discount_value::float8, max_redemptions, times_redeemed, expires_at, is_active, stripe_coupon_id, created_at, updated_at`

func scanCoupon(row pgx.Row) (models.AffiliateCoupon, error) {
	var c models.AffiliateCoupon
	err := row.Scan(&c.ID, &c.AffiliateID, &c.Name, &c.DiscountType, &c.DiscountValue, &c.MaxRedemptions, &c.TimesRedeemed, &c.ExpiresAt, &c.IsActive, &c.StripeCouponID, &c.CreatedAt, &c.UpdatedAt)
	if noRow(err) {
		return models.AffiliateCoupon{}, ErrNotFound
	}
	return c, err
}

func (p *Postgres) CreateCoupon(ctx context.Context, c models.AffiliateCoupon) (models.AffiliateCoupon, error) {
	return scanCoupon(p.db(ctx).QueryRow(ctx, `
		INSERT INTO affiliate_coupons (affiliate_id, name, discount_type, discount_value, max_redemptions, expires_at, is_active, stripe_coupon_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+couponColumns,
		c.AffiliateID, c.Name, c.DiscountType, c.DiscountValue, c.MaxRedemptions, c.ExpiresAt, c.IsActive, c.StripeCouponID))
}

func (p *Postgres) GetCoupon(ctx context.Context, id string) (models.AffiliateCoupon, error) {
	return scanCoupon(p.db(ctx).QueryRow(ctx, `SELECT `+couponColumns+` FROM affiliate_coupons WHERE id = $1`, id))
}

func (p *Postgres) ListCoupons(ctx context.Context, affiliateID string) ([]models.AffiliateCoupon, error) {
	rows, err := p.db(ctx).Query(ctx, `SELECT `+couponColumns+` FROM affiliate_coupons WHERE affiliate_id = $1 ORDER BY created_at DESC`, affiliateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AffiliateCoupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) SetCouponActive(ctx context.Context, id string, active bool) (models.AffiliateCoupon, error) {
	return scanCoupon(p.db(ctx).QueryRow(ctx, `
		UPDATE affiliate_coupons SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+couponColumns, id, active))
}

func (p *Postgres) SaleExists(ctx context.Context, checkoutSessionID string) (bool, error) {
	var exists bool
	err := p.db(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM affiliate_sales WHERE checkout_session_id = $1)`, checkoutSessionID).Scan(&exists)
	return exists, err
}

// RecordSale inserts a sale with its commission and bumps the link, affiliate
// and coupon counters in one transaction. It reports false without writing
// anything when a sale for the checkout session already exists.
func (p *Postgres) RecordSale(ctx context.Context, sale models.AffiliateSale, commission models.AffiliateCommission) (models.AffiliateSale, bool, error) {
	tx, err := p.db(ctx).Begin(ctx)
	if err != nil {
		return models.AffiliateSale{}, false, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO affiliate_sales (affiliate_id, link_id, coupon_id, checkout_session_id, customer_email, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (checkout_session_id) DO NOTHING
		RETURNING id::text, created_at`,
		sale.AffiliateID, sale.LinkID, sale.CouponID, sale.CheckoutSessionID, sale.CustomerEmail, sale.AmountCents, sale.Currency, sale.Status,
	).Scan(&sale.ID, &sale.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AffiliateSale{}, false, nil
	}
	if err != nil {
		return models.AffiliateSale{}, false, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO affiliate_commissions (affiliate_id, sale_id, amount_cents, rate, status)
		VALUES ($1, $2, $3, $4, $5)`,
		sale.AffiliateID, sale.ID, commission.AmountCents, commission.Rate, commission.Status); err != nil {
		return models.AffiliateSale{}, false, err
	}
	if sale.LinkID != nil {
		if _, err := tx.Exec(ctx, `UPDATE affiliate_links SET conversions = conversions + 1 WHERE id = $1`, *sale.LinkID); err != nil {
			return models.AffiliateSale{}, false, err
		}
	}
	if sale.CouponID != nil {
		if _, err := tx.Exec(ctx, `UPDATE affiliate_coupons SET times_redeemed = times_redeemed + 1, updated_at = NOW() WHERE id = $1`, *sale.CouponID); err != nil {
			return models.AffiliateSale{}, false, err
		}
	}
	ct, err := tx.Exec(ctx, `
		UPDATE affiliates
		SET total_sales = total_sales + 1, total_commission_cents = total_commission_cents + $2, updated_at = NOW()
		WHERE id = $1`, sale.AffiliateID, commission.AmountCents)
	if err != nil {
		return models.AffiliateSale{}, false, err
	}
	if ct.RowsAffected() == 0 {
		return models.AffiliateSale{}, false, ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return models.AffiliateSale{}, false, err
	}
	return sale, true, nil
}

func (p *Postgres) ListSales(ctx context.Context, affiliateID string) ([]models.AffiliateSale, error) {
	rows, err := p.db(ctx).Query(ctx, `
		SELECT id::text, affiliate_id::text, link_id::text, coupon_id::text, checkout_session_id, customer_email, amount_cents, currency, status, created_at
		FROM affiliate_sales WHERE affiliate_id = $1 ORDER BY created_at DESC`, affiliateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AffiliateSale
	for rows.Next() {
		var s models.AffiliateSale
		if err := rows.Scan(&s.ID, &s.AffiliateID, &s.LinkID, &s.CouponID, &s.CheckoutSessionID, &s.CustomerEmail, &s.AmountCents, &s.Currency, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertConfiguration(ctx context.Context, c models.UserConfiguration) (models.UserConfiguration, error) {
	err := p.db(ctx).QueryRow(ctx, `
		INSERT INTO user_configurations (account_id, config_type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, config_type)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
		RETURNING updated_at`, c.AccountID, c.ConfigType, []byte(c.Payload),
	).Scan(&c.UpdatedAt)
	return c, err
}

func (p *Postgres) GetConfiguration(ctx context.Context, accountID, configType string) (models.UserConfiguration, error) {
	c := models.UserConfiguration{AccountID: accountID, ConfigType: configType}
	var payload []byte
	err := p.db(ctx).QueryRow(ctx, `
		SELECT payload, updated_at FROM user_configurations
		WHERE account_id = $1 AND config_type = $2`, accountID, configType,
	).Scan(&payload, &c.UpdatedAt)
	if noRow(err) {
		return models.UserConfiguration{}, ErrNotFound
	}
	c.Payload = payload
	return c, err
}

func (p *Postgres) ListConfigurations(ctx context.Context, accountID string) ([]models.UserConfiguration, error) {
	rows, err := p.db(ctx).Query(ctx, `
		SELECT config_type, payload, updated_at FROM user_configurations
		WHERE account_id = $1 ORDER BY config_type`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.UserConfiguration
	for rows.Next() {
		c := models.UserConfiguration{AccountID: accountID}
		var payload []byte
		if err := rows.Scan(&c.ConfigType, &payload, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Payload = payload
		out = append(out, c)
	}
	return out, rows.Err()
}
