package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"estoquefacil/internal/models"

	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const minPasswordLength = 8

type Accounts struct {
	store AccountStore
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	if !emailPattern.MatchString(email) {
		return invalid("email", "invalid format")
	}
	return nil
}

// Signup creates a free-tier account with the user role.
func (a *Accounts) Signup(ctx context.Context, email, password, businessName string) (models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return models.Account{}, err
	}
	if len(password) < minPasswordLength {
		return models.Account{}, invalid("password", "must have at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, err
	}
	return a.store.CreateAccount(ctx, models.Account{
		Email:        email,
		PasswordHash: string(hash),
		BusinessName: strings.TrimSpace(businessName),
		Role:         models.RoleUser,
		Tier:         models.TierFree,
		BillingCycle: models.CycleMonthly,
	})
}

// Authenticate checks the password and returns the account. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return models.Account{}, invalid("", "email and password are required")
	}
	acct, err := a.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return models.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return models.Account{}, ErrInvalidCredentials
	}
	return acct, nil
}

func (a *Accounts) Get(ctx context.Context, id string) (models.Account, error) {
	return a.store.GetAccount(ctx, id)
}

// HasRoleOrHigher delegates to the has_role_or_higher database function.
func (a *Accounts) HasRoleOrHigher(ctx context.Context, accountID, role string) (bool, error) {
	return a.store.HasRoleOrHigher(ctx, accountID, role)
}
