// Package payments wraps the Stripe API calls the service makes: checkout
// sessions, coupons and webhook verification.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/coupon"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrNotConfigured = errors.New("stripe not configured")

// ErrMalformedEvent is a correctly signed event whose object cannot be
// decoded. Redelivering it cannot succeed.
var ErrMalformedEvent = errors.New("malformed webhook event")

// RejectedError is returned when Stripe refuses the request parameters. Its
// message is Stripe's own and safe to show to the caller.
type RejectedError struct {
	Param   string
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

// CheckoutSession is the subset of a Stripe checkout session the service uses.
type CheckoutSession struct {
	ID             string
	URL            string
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string
	AmountTotal    int64
	Currency       string
	Metadata       map[string]string
	Created        time.Time
}

type CouponParams struct {
	Name           string
	PercentOff     float64
	AmountOffCents int64
	Currency       string
	MaxRedemptions *int
	RedeemBy       *time.Time
	Metadata       map[string]string
}

type CheckoutParams struct {
	PriceID        string
	CustomerEmail  string
	AccountID      string
	SuccessURL     string
	CancelURL      string
	StripeCouponID string
	Metadata       map[string]string
}

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is a verified webhook event. Session is set for checkout events and
// CustomerID for subscription events.
type Event struct {
	ID         string
	Type       string
	Session    *CheckoutSession
	CustomerID string
}

type Client struct {
	secretKey     string
	webhookSecret string
}

func NewClient(secretKey, webhookSecret string) *Client {
	if secretKey != "" {
		stripe.Key = secretKey
	}
	return &Client{secretKey: secretKey, webhookSecret: webhookSecret}
}

func (c *Client) Configured() bool { return c.secretKey != "" }

// CreateCoupon mints a one-time Stripe coupon and returns its ID.
func (c *Client) CreateCoupon(ctx context.Context, p CouponParams) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.CouponParams{
		Name:     stripe.String(p.Name),
		Duration: stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx
	if p.PercentOff > 0 {
		params.PercentOff = stripe.Float64(p.PercentOff)
	} else {
		params.AmountOff = stripe.Int64(p.AmountOffCents)
		params.Currency = stripe.String(p.Currency)
	}
	if p.MaxRedemptions != nil {
		params.MaxRedemptions = stripe.Int64(int64(*p.MaxRedemptions))
	}
	if p.RedeemBy != nil {
		params.RedeemBy = stripe.Int64(p.RedeemBy.Unix())
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(ulid.Make().String())

	cp, err := coupon.New(params)
	if err != nil {
		return "", classify(err)
	}
	return cp.ID, nil
}

// CreateCheckoutSession starts a subscription checkout for one price.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error) {
	if !c.Configured() {
		return CheckoutSession{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.AccountID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: p.Metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		},
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	if p.StripeCouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(p.StripeCouponID)},
		}
	}
	params.SetIdempotencyKey(ulid.Make().String())

	sess, err := session.New(params)
	if err != nil {
		return CheckoutSession{}, classify(err)
	}
	return toCheckoutSession(sess), nil
}

// ListCompletedSessions returns up to limit completed checkout sessions
// created at or after since, newest first.
func (c *Client) ListCompletedSessions(ctx context.Context, since time.Time, limit int) ([]CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.Single = true
	params.Filters.AddFilter("status", "", string(stripe.CheckoutSessionStatusComplete))
	params.Filters.AddFilter("created", "gte", strconv.FormatInt(since.Unix(), 10))

	var out []CheckoutSession
	it := session.List(params)
	for it.Next() {
		sess := it.CheckoutSession()
		if sess.Status != stripe.CheckoutSessionStatusComplete || sess.Created < since.Unix() {
			continue
		}
		out = append(out, toCheckoutSession(sess))
		if len(out) == limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ParseEvent verifies the Stripe-Signature header and decodes the payload.
func (c *Client) ParseEvent(payload []byte, signature string) (Event, error) {
	if c.webhookSecret == "" {
		return Event{}, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, &RejectedError{Message: err.Error()}
	}
	return decodeEvent(ev)
}

func decodeEvent(ev stripe.Event) (Event, error) {
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	switch out.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("%w: decode checkout session %s: %v", ErrMalformedEvent, ev.ID, err)
		}
		cs := toCheckoutSession(&sess)
		out.Session = &cs
		out.CustomerID = cs.CustomerID
	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("%w: decode subscription %s: %v", ErrMalformedEvent, ev.ID, err)
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
	}
	return out, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) CheckoutSession {
	cs := CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		CustomerEmail: s.CustomerEmail,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
		Created:       time.Unix(s.Created, 0).UTC(),
	}
	if cs.CustomerEmail == "" && s.CustomerDetails != nil {
		cs.CustomerEmail = s.CustomerDetails.Email
	}
	if s.Customer != nil {
		cs.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		cs.SubscriptionID = s.Subscription.ID
	}
	if cs.Metadata == nil {
		cs.Metadata = map[string]string{}
	}
	return cs
}

// classify turns parameter rejections into RejectedError and leaves every
// other failure (network, auth, rate limit) wrapped as is.
func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
		return &RejectedError{Param: stripeErr.Param, Message: stripeErr.Msg}
	}
	return fmt.Errorf("stripe: %w", err)
}
