package services

import (
	"context"
	"io"
	"time"

	"estoquefacil/internal/models"
	"estoquefacil/internal/payments"
	"estoquefacil/internal/plans"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, a models.Account) (models.Account, error)
	GetAccount(ctx context.Context, id string) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	SetAccountPlan(ctx context.Context, id string, tier models.Tier, cycle models.BillingCycle, customerID string) error
	ResetPlanByCustomer(ctx context.Context, customerID string) (models.Account, error)
	SetAccountRole(ctx context.Context, id, role string) error
	HasRoleOrHigher(ctx context.Context, accountID, role string) (bool, error)
}

type UsageCounter interface {
	CountResource(ctx context.Context, accountID string, r plans.Resource) (int, error)
}

type AffiliateStore interface {
	CreateAffiliate(ctx context.Context, a models.Affiliate) (models.Affiliate, error)
	GetAffiliate(ctx context.Context, id string) (models.Affiliate, error)
	GetAffiliateByCode(ctx context.Context, code string) (models.Affiliate, error)
	GetAffiliateByAccount(ctx context.Context, accountID string) (models.Affiliate, error)
	ListAffiliates(ctx context.Context) ([]models.Affiliate, error)
	CreateLink(ctx context.Context, l models.AffiliateLink) (models.AffiliateLink, error)
	ListLinks(ctx context.Context, affiliateID string) ([]models.AffiliateLink, error)
	GetLinkBySlug(ctx context.Context, slug string) (models.AffiliateLink, error)
	IncrementLinkClicks(ctx context.Context, linkID string) error
}

type CouponStore interface {
	CreateCoupon(ctx context.Context, c models.AffiliateCoupon) (models.AffiliateCoupon, error)
	GetCoupon(ctx context.Context, id string) (models.AffiliateCoupon, error)
	ListCoupons(ctx context.Context, affiliateID string) ([]models.AffiliateCoupon, error)
	SetCouponActive(ctx context.Context, id string, active bool) (models.AffiliateCoupon, error)
}

type SaleStore interface {
	SaleExists(ctx context.Context, checkoutSessionID string) (bool, error)
	RecordSale(ctx context.Context, sale models.AffiliateSale, commission models.AffiliateCommission) (models.AffiliateSale, bool, error)
	ListSales(ctx context.Context, affiliateID string) ([]models.AffiliateSale, error)
}

type ConfigStore interface {
	UpsertConfiguration(ctx context.Context, c models.UserConfiguration) (models.UserConfiguration, error)
	GetConfiguration(ctx context.Context, accountID, configType string) (models.UserConfiguration, error)
	ListConfigurations(ctx context.Context, accountID string) ([]models.UserConfiguration, error)
}

type InventoryStore interface {
	// WithAccountLock serializes fn against other locked calls for the same
	// account. Store calls made with fn's ctx run inside the lock.
	WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context) error) error
	CreateSupplier(ctx context.Context, s models.Supplier) (models.Supplier, error)
	ListSuppliers(ctx context.Context, accountID string) ([]models.Supplier, error)
	DeleteSupplier(ctx context.Context, accountID, id string) error
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	GetProduct(ctx context.Context, accountID, id string) (models.Product, error)
	ListProducts(ctx context.Context, accountID string) ([]models.Product, error)
	DeleteProduct(ctx context.Context, accountID, id string) error
	SetProductPhoto(ctx context.Context, accountID, id, url string) error
	CreateRecipe(ctx context.Context, r models.Recipe) (models.Recipe, error)
	GetRecipe(ctx context.Context, accountID, id string) (models.Recipe, error)
	ListRecipes(ctx context.Context, accountID string) ([]models.Recipe, error)
	DeleteRecipe(ctx context.Context, accountID, id string) error
	CreateShowcaseItem(ctx context.Context, it models.ShowcaseItem) (models.ShowcaseItem, error)
	ListShowcaseItems(ctx context.Context, accountID string) ([]models.ShowcaseItem, error)
	DeleteShowcaseItem(ctx context.Context, accountID, id string) error
}

// Store is everything the services persist. store.Postgres and store.Memory
// both satisfy it.
type Store interface {
	AccountStore
	UsageCounter
	AffiliateStore
	CouponStore
	SaleStore
	ConfigStore
	InventoryStore
}

// Payments is the Stripe surface. payments.Client satisfies it.
type Payments interface {
	CreateCoupon(ctx context.Context, p payments.CouponParams) (string, error)
	CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (payments.CheckoutSession, error)
	ListCompletedSessions(ctx context.Context, since time.Time, limit int) ([]payments.CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (payments.Event, error)
}

// PhotoStore uploads product photos and returns their public URL.
type PhotoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Notifier tells an affiliate about a new commission.
type Notifier interface {
	CommissionEarned(ctx context.Context, to, affiliateName, amount string) error
}
