package services

import (
	"time"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/coalesce"
	"estoquefacil/internal/config"

	"go.uber.org/zap"
)

// Deps are the collaborators shared by every service. Photos and Notifier
// may be nil.
type Deps struct {
	Store      Store
	Payments   Payments
	Serializer coalesce.Serializer
	Activity   activity.Recorder
	Photos     PhotoStore
	Notifier   Notifier
	Logger     *zap.Logger
	Config     config.Config
	Now        func() time.Time
}

type Service struct {
	Accounts   *Accounts
	Limits     *Limits
	Coupons    *Coupons
	Reconciler *Reconciler
	Configs    *Configs
	Inventory  *Inventory
	Affiliates *Affiliates
	Checkout   *Checkout
	Activity   activity.Recorder
}

func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Activity == nil {
		d.Activity = activity.Nop{}
	}
	if d.Serializer == nil {
		d.Serializer = coalesce.NewRegistry()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	limits := &Limits{accounts: d.Store, usage: d.Store}
	reconciler := &Reconciler{
		payments:   d.Payments,
		affiliates: d.Store,
		sales:      d.Store,
		notifier:   d.Notifier,
		activity:   d.Activity,
		logger:     d.Logger.Named("reconcile"),
		lookback:   d.Config.ReconcileLookback(),
		limit:      d.Config.ReconcileSessionLimit,
		now:        d.Now,
	}
	return &Service{
		Accounts: &Accounts{store: d.Store},
		Limits:   limits,
		Coupons: &Coupons{
			coupons:    d.Store,
			affiliates: d.Store,
			payments:   d.Payments,
			activity:   d.Activity,
			logger:     d.Logger.Named("coupons"),
			currency:   d.Config.StripeCurrency,
			now:        d.Now,
		},
		Reconciler: reconciler,
		Configs: &Configs{
			store:      d.Store,
			serializer: d.Serializer,
			activity:   d.Activity,
		},
		Inventory: &Inventory{
			store:    d.Store,
			limits:   limits,
			photos:   d.Photos,
			activity: d.Activity,
		},
		Affiliates: &Affiliates{
			accounts:   d.Store,
			affiliates: d.Store,
			sales:      d.Store,
			activity:   d.Activity,
			logger:     d.Logger.Named("affiliates"),
		},
		Checkout: &Checkout{
			accounts:   d.Store,
			affiliates: d.Store,
			coupons:    d.Store,
			payments:   d.Payments,
			reconciler: reconciler,
			activity:   d.Activity,
			logger:     d.Logger.Named("checkout"),
			prices:     d.Config.StripePriceFor,
			now:        d.Now,
		},
		Activity: d.Activity,
	}
}
