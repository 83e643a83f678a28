package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"estoquefacil/internal/models"
	"estoquefacil/internal/plans"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestNoRow(t *testing.T) {
	assert.True(t, noRow(pgx.ErrNoRows))
	assert.True(t, noRow(fmt.Errorf("get product: %w", pgx.ErrNoRows)))
	assert.True(t, noRow(&pgconn.PgError{Code: "22P02"}))
	assert.False(t, noRow(&pgconn.PgError{Code: "23505"}))
	assert.False(t, noRow(nil))
}

func TestResourceTable(t *testing.T) {
	for _, r := range plans.Resources {
		table, err := resourceTable(r)
		require.NoError(t, err)
		assert.NotEmpty(t, table)
	}
	_, err := resourceTable("usuarios")
	assert.Error(t, err)
}

func TestMemoryRecordSaleIsIdempotentPerSession(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	acct, err := m.CreateAccount(ctx, models.Account{Email: "a@example.com", Role: models.RoleAffiliate})
	require.NoError(t, err)
	aff, err := m.CreateAffiliate(ctx, models.Affiliate{AccountID: acct.ID, Code: "ANA1", Status: models.AffiliateActive, CommissionRate: 0.3})
	require.NoError(t, err)
	link, err := m.CreateLink(ctx, models.AffiliateLink{AffiliateID: aff.ID, Slug: "ana"})
	require.NoError(t, err)

	sale := models.AffiliateSale{AffiliateID: aff.ID, LinkID: &link.ID, CheckoutSessionID: "cs_1", AmountCents: 9900, Currency: "brl"}
	commission := models.AffiliateCommission{AmountCents: 2970, Rate: 0.3}

	_, created, err := m.RecordSale(ctx, sale, commission)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = m.RecordSale(ctx, sale, commission)
	require.NoError(t, err)
	assert.False(t, created)

	sales, commissions := m.Counts()
	assert.Equal(t, 1, sales)
	assert.Equal(t, 1, commissions)

	got, err := m.GetAffiliate(ctx, aff.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalSales)
	assert.Equal(t, int64(2970), got.TotalCommission)

	gotLink, err := m.GetLinkBySlug(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, gotLink.Conversions)
}

func TestMemoryHasRoleOrHigher(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	admin, _ := m.CreateAccount(ctx, models.Account{Email: "admin@example.com", Role: models.RoleAdmin})
	user, _ := m.CreateAccount(ctx, models.Account{Email: "user@example.com", Role: models.RoleUser})

	cases := []struct {
		account string
		role    string
		want    bool
	}{
		{admin.ID, models.RoleAdmin, true},
		{admin.ID, models.RoleAffiliate, true},
		{user.ID, models.RoleUser, true},
		{user.ID, models.RoleAffiliate, false},
		{user.ID, "owner", false},
		{"missing", models.RoleUser, false},
	}
	for _, tc := range cases {
		ok, err := m.HasRoleOrHigher(ctx, tc.account, tc.role)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "%s/%s", tc.account, tc.role)
	}
}

func TestMemoryAccountEmailUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreateAccount(ctx, models.Account{Email: "dup@example.com"})
	require.NoError(t, err)
	_, err = m.CreateAccount(ctx, models.Account{Email: "DUP@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryOwnedRowsAreScoped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p, err := m.CreateProduct(ctx, models.Product{AccountID: "a", Name: "Farinha"})
	require.NoError(t, err)
	_, err = m.GetProduct(ctx, "b", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.DeleteProduct(ctx, "b", p.ID), ErrNotFound)

	n, err := m.CountResource(ctx, "a", plans.ResourceProducts)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryCreateAffiliatePromotesOnlyUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	user, _ := m.CreateAccount(ctx, models.Account{Email: "user@example.com", Role: models.RoleUser})
	admin, _ := m.CreateAccount(ctx, models.Account{Email: "admin@example.com", Role: models.RoleAdmin})

	_, err := m.CreateAffiliate(ctx, models.Affiliate{AccountID: user.ID, Code: "USR"})
	require.NoError(t, err)
	_, err = m.CreateAffiliate(ctx, models.Affiliate{AccountID: admin.ID, Code: "ADM"})
	require.NoError(t, err)

	got, _ := m.GetAccount(ctx, user.ID)
	assert.Equal(t, models.RoleAffiliate, got.Role)
	got, _ = m.GetAccount(ctx, admin.ID)
	assert.Equal(t, models.RoleAdmin, got.Role)
}

func TestMemoryWithAccountLock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	acct, _ := m.CreateAccount(ctx, models.Account{Email: "a@example.com"})
	other, _ := m.CreateAccount(ctx, models.Account{Email: "b@example.com"})

	err := m.WithAccountLock(ctx, "missing", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("boom")
	assert.ErrorIs(t, m.WithAccountLock(ctx, acct.ID, func(context.Context) error { return boom }), boom)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.WithAccountLock(ctx, acct.ID, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// other accounts and plain store calls are not blocked
	require.NoError(t, m.WithAccountLock(ctx, other.ID, func(ctx context.Context) error {
		_, err := m.GetAccount(ctx, acct.ID)
		return err
	}))

	second := make(chan struct{})
	go func() {
		_ = m.WithAccountLock(ctx, acct.ID, func(context.Context) error {
			close(second)
			return nil
		})
	}()
	select {
	case <-second:
		t.Fatal("second locked call ran while the first held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second locked call never ran")
	}
}
