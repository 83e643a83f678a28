package services

import (
	"context"
	"fmt"

	"estoquefacil/internal/plans"
)

// Limits answers "how much of its plan has this account used". Usage is
// counted fresh on every call.
type Limits struct {
	accounts AccountStore
	usage    UsageCounter
}

// Check returns the usage of one resource. When the row count cannot be read
// it fails with ErrUsageUnavailable instead of reporting zero.
func (l *Limits) Check(ctx context.Context, accountID string, resource plans.Resource) (plans.Usage, error) {
	if !resource.Valid() {
		return plans.Usage{}, invalid("resource", "unknown resource %q", resource)
	}
	acct, err := l.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return plans.Usage{}, err
	}
	max := plans.Cap(acct.Tier, resource)
	used, err := l.usage.CountResource(ctx, accountID, resource)
	if err != nil {
		return plans.Usage{}, fmt.Errorf("%w: count %s: %v", ErrUsageUnavailable, resource, err)
	}
	return plans.Evaluate(resource, used, max), nil
}

// Enforce fails with a LimitError when one more row would exceed the cap.
func (l *Limits) Enforce(ctx context.Context, accountID string, resource plans.Resource) error {
	u, err := l.Check(ctx, accountID, resource)
	if err != nil {
		return err
	}
	if u.Blocking() {
		return &LimitError{Usage: u}
	}
	return nil
}

func (l *Limits) Overview(ctx context.Context, accountID string) ([]plans.Usage, error) {
	out := make([]plans.Usage, 0, len(plans.Resources))
	for _, r := range plans.Resources {
		u, err := l.Check(ctx, accountID, r)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
