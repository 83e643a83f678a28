package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"estoquefacil/internal/models"
	"estoquefacil/internal/plans"

	"github.com/google/uuid"
)

// Memory is an in-process store with the same semantics as Postgres,
// including the uniqueness rules the schema enforces.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	accounts    map[string]models.Account
	affiliates  map[string]models.Affiliate
	links       map[string]models.AffiliateLink
	coupons     map[string]models.AffiliateCoupon
	sales       map[string]models.AffiliateSale // by checkout session id
	commissions []models.AffiliateCommission
	configs     map[string]models.UserConfiguration
	suppliers   map[string]models.Supplier
	products    map[string]models.Product
	recipes     map[string]models.Recipe
	showcase    map[string]models.ShowcaseItem
	locks       map[string]*sync.Mutex // per account, see WithAccountLock
}

func NewMemory() *Memory {
	return &Memory{
		now:        time.Now,
		accounts:   map[string]models.Account{},
		affiliates: map[string]models.Affiliate{},
		links:      map[string]models.AffiliateLink{},
		coupons:    map[string]models.AffiliateCoupon{},
		sales:      map[string]models.AffiliateSale{},
		configs:    map[string]models.UserConfiguration{},
		suppliers:  map[string]models.Supplier{},
		products:   map[string]models.Product{},
		recipes:    map[string]models.Recipe{},
		showcase:   map[string]models.ShowcaseItem{},
		locks:      map[string]*sync.Mutex{},
	}
}

func (m *Memory) CreateAccount(_ context.Context, a models.Account) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return models.Account{}, fmt.Errorf("account %s: %w", a.Email, ErrConflict)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = m.now()
	a.UpdatedAt = a.CreatedAt
	m.accounts[a.ID] = a
	return a, nil
}

func (m *Memory) GetAccount(_ context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) GetAccountByEmail(_ context.Context, email string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return models.Account{}, ErrNotFound
}

func (m *Memory) SetAccountPlan(_ context.Context, id string, tier models.Tier, cycle models.BillingCycle, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Tier, a.BillingCycle = tier, cycle
	if customerID != "" {
		a.StripeCustomerID = customerID
	}
	a.UpdatedAt = m.now()
	m.accounts[id] = a
	return nil
}

func (m *Memory) ResetPlanByCustomer(_ context.Context, customerID string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if customerID == "" {
		return models.Account{}, ErrNotFound
	}
	for id, a := range m.accounts {
		if a.StripeCustomerID == customerID {
			a.Tier, a.BillingCycle = models.TierFree, models.CycleMonthly
			a.UpdatedAt = m.now()
			m.accounts[id] = a
			return a, nil
		}
	}
	return models.Account{}, ErrNotFound
}

func (m *Memory) SetAccountRole(_ context.Context, id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Role = role
	m.accounts[id] = a
	return nil
}

// WithAccountLock runs fn while holding the account's lock. Calls are not
// reentrant for the same account.
func (m *Memory) WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	if _, ok := m.accounts[accountID]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	l, ok := m.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[accountID] = l
	}
	m.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func (m *Memory) HasRoleOrHigher(_ context.Context, accountID, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return false, nil
	}
	required := roleRank(role)
	return required > 0 && roleRank(a.Role) >= required, nil
}

func (m *Memory) CountResource(_ context.Context, accountID string, r plans.Resource) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	switch r {
	case plans.ResourceProducts:
		for _, p := range m.products {
			if p.AccountID == accountID {
				n++
			}
		}
	case plans.ResourceRecipes:
		for _, rc := range m.recipes {
			if rc.AccountID == accountID {
				n++
			}
		}
	case plans.ResourceSuppliers:
		for _, s := range m.suppliers {
			if s.AccountID == accountID {
				n++
			}
		}
	case plans.ResourceShowcase:
		for _, it := range m.showcase {
			if it.AccountID == accountID {
				n++
			}
		}
	default:
		return 0, fmt.Errorf("unknown resource %q", r)
	}
	return n, nil
}

func (m *Memory) CreateAffiliate(_ context.Context, a models.Affiliate) (models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.affiliates {
		if existing.AccountID == a.AccountID || strings.EqualFold(existing.Code, a.Code) {
			return models.Affiliate{}, fmt.Errorf("affiliate for account %s: %w", a.AccountID, ErrConflict)
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = m.now()
	a.UpdatedAt = a.CreatedAt
	m.affiliates[a.ID] = a
	if acct, ok := m.accounts[a.AccountID]; ok && acct.Role == models.RoleUser {
		acct.Role = models.RoleAffiliate
		m.accounts[acct.ID] = acct
	}
	return a, nil
}

func (m *Memory) GetAffiliate(_ context.Context, id string) (models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.affiliates[id]
	if !ok {
		return models.Affiliate{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) GetAffiliateByCode(_ context.Context, code string) (models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.affiliates {
		if strings.EqualFold(a.Code, code) {
			return a, nil
		}
	}
	return models.Affiliate{}, ErrNotFound
}

func (m *Memory) GetAffiliateByAccount(_ context.Context, accountID string) (models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.affiliates {
		if a.AccountID == accountID {
			return a, nil
		}
	}
	return models.Affiliate{}, ErrNotFound
}

func (m *Memory) ListAffiliates(context.Context) ([]models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Affiliate, 0, len(m.affiliates))
	for _, a := range m.affiliates {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) CreateLink(_ context.Context, l models.AffiliateLink) (models.AffiliateLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.links {
		if existing.Slug == l.Slug {
			return models.AffiliateLink{}, fmt.Errorf("link %s: %w", l.Slug, ErrConflict)
		}
	}
	l.ID = uuid.NewString()
	l.CreatedAt = m.now()
	m.links[l.ID] = l
	return l, nil
}

func (m *Memory) ListLinks(_ context.Context, affiliateID string) ([]models.AffiliateLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AffiliateLink
	for _, l := range m.links {
		if l.AffiliateID == affiliateID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *Memory) GetLinkBySlug(_ context.Context, slug string) (models.AffiliateLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Slug == slug {
			return l, nil
		}
	}
	return models.AffiliateLink{}, ErrNotFound
}

func (m *Memory) IncrementLinkClicks(_ context.Context, linkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[linkID]
	if !ok {
		return ErrNotFound
	}
	l.Clicks++
	m.links[linkID] = l
	return nil
}

func (m *Memory) CreateCoupon(_ context.Context, c models.AffiliateCoupon) (models.AffiliateCoupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.coupons[c.ID] = c
	return c, nil
}

func (m *Memory) GetCoupon(_ context.Context, id string) (models.AffiliateCoupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return models.AffiliateCoupon{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListCoupons(_ context.Context, affiliateID string) ([]models.AffiliateCoupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AffiliateCoupon
	for _, c := range m.coupons {
		if c.AffiliateID == affiliateID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SetCouponActive(_ context.Context, id string, active bool) (models.AffiliateCoupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return models.AffiliateCoupon{}, ErrNotFound
	}
	c.IsActive = active
	c.UpdatedAt = m.now()
	m.coupons[id] = c
	return c, nil
}

// PutCoupon stores a coupon as given; tests use it to seed redeemed or expired
// coupons.
func (m *Memory) PutCoupon(c models.AffiliateCoupon) models.AffiliateCoupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.coupons[c.ID] = c
	return c
}

func (m *Memory) SaleExists(_ context.Context, checkoutSessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sales[checkoutSessionID]
	return ok, nil
}

func (m *Memory) RecordSale(_ context.Context, sale models.AffiliateSale, commission models.AffiliateCommission) (models.AffiliateSale, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[sale.CheckoutSessionID]; ok {
		return models.AffiliateSale{}, false, nil
	}
	a, ok := m.affiliates[sale.AffiliateID]
	if !ok {
		return models.AffiliateSale{}, false, ErrNotFound
	}
	sale.ID = uuid.NewString()
	sale.CreatedAt = m.now()
	m.sales[sale.CheckoutSessionID] = sale

	commission.ID = uuid.NewString()
	commission.AffiliateID = sale.AffiliateID
	commission.SaleID = sale.ID
	commission.CreatedAt = sale.CreatedAt
	m.commissions = append(m.commissions, commission)

	if sale.LinkID != nil {
		if l, ok := m.links[*sale.LinkID]; ok {
			l.Conversions++
			m.links[l.ID] = l
		}
	}
	if sale.CouponID != nil {
		if c, ok := m.coupons[*sale.CouponID]; ok {
			c.TimesRedeemed++
			m.coupons[c.ID] = c
		}
	}
	a.TotalSales++
	a.TotalCommission += commission.AmountCents
	m.affiliates[a.ID] = a
	return sale, true, nil
}

func (m *Memory) ListSales(_ context.Context, affiliateID string) ([]models.AffiliateSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AffiliateSale
	for _, s := range m.sales {
		if s.AffiliateID == affiliateID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckoutSessionID < out[j].CheckoutSessionID })
	return out, nil
}

// SeedSale stores a sale without touching counters, as if it had been
// recorded by an earlier run.
func (m *Memory) SeedSale(sale models.AffiliateSale) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	m.sales[sale.CheckoutSessionID] = sale
}

// Counts reports the number of stored sales and commissions.
func (m *Memory) Counts() (sales, commissions int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales), len(m.commissions)
}

func (m *Memory) UpsertConfiguration(_ context.Context, c models.UserConfiguration) (models.UserConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.UpdatedAt = m.now()
	m.configs[c.AccountID+"\x00"+c.ConfigType] = c
	return c, nil
}

func (m *Memory) GetConfiguration(_ context.Context, accountID, configType string) (models.UserConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[accountID+"\x00"+configType]
	if !ok {
		return models.UserConfiguration{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListConfigurations(_ context.Context, accountID string) ([]models.UserConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserConfiguration
	for _, c := range m.configs {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConfigType < out[j].ConfigType })
	return out, nil
}

func (m *Memory) CreateSupplier(_ context.Context, s models.Supplier) (models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.NewString()
	s.CreatedAt = m.now()
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *Memory) ListSuppliers(_ context.Context, accountID string) ([]models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Supplier
	for _, s := range m.suppliers {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteSupplier(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.suppliers[id]; !ok || s.AccountID != accountID {
		return ErrNotFound
	}
	delete(m.suppliers, id)
	return nil
}

func (m *Memory) CreateProduct(_ context.Context, p models.Product) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) GetProduct(_ context.Context, accountID, id string) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.AccountID != accountID {
		return models.Product{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListProducts(_ context.Context, accountID string) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, p := range m.products {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteProduct(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; !ok || p.AccountID != accountID {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) SetProductPhoto(_ context.Context, accountID, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.AccountID != accountID {
		return ErrNotFound
	}
	p.PhotoURL = url
	m.products[id] = p
	return nil
}

func (m *Memory) CreateRecipe(_ context.Context, r models.Recipe) (models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.NewString()
	r.CreatedAt = m.now()
	r.Ingredients = append([]models.RecipeIngredient(nil), r.Ingredients...)
	m.recipes[r.ID] = r
	return r, nil
}

func (m *Memory) GetRecipe(_ context.Context, accountID, id string) (models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipes[id]
	if !ok || r.AccountID != accountID {
		return models.Recipe{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRecipes(_ context.Context, accountID string) ([]models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Recipe
	for _, r := range m.recipes {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteRecipe(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recipes[id]; !ok || r.AccountID != accountID {
		return ErrNotFound
	}
	delete(m.recipes, id)
	return nil
}

func (m *Memory) CreateShowcaseItem(_ context.Context, it models.ShowcaseItem) (models.ShowcaseItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it.ID = uuid.NewString()
	it.CreatedAt = m.now()
	m.showcase[it.ID] = it
	return it, nil
}

func (m *Memory) ListShowcaseItems(_ context.Context, accountID string) ([]models.ShowcaseItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ShowcaseItem
	for _, it := range m.showcase {
		if it.AccountID == accountID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteShowcaseItem(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.showcase[id]; !ok || it.AccountID != accountID {
		return ErrNotFound
	}
	delete(m.showcase, id)
	return nil
}
