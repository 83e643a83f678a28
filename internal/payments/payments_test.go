package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func signedHeader(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestParseEventCheckoutCompleted(t *testing.T) {
	c := NewClient("", "whsec_test")
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_123",
			"object": "checkout.session",
			"amount_total": 9900,
			"currency": "brl",
			"customer": "cus_9",
			"customer_details": {"email": "buyer@example.com"},
			"metadata": {"affiliate_code": "ANA1", "tier": "professional"},
			"created": 1700000000
		}}
	}`)

	ev, err := c.ParseEvent(payload, signedHeader(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "cs_123", ev.Session.ID)
	assert.Equal(t, int64(9900), ev.Session.AmountTotal)
	assert.Equal(t, "buyer@example.com", ev.Session.CustomerEmail)
	assert.Equal(t, "cus_9", ev.CustomerID)
	assert.Equal(t, "ANA1", ev.Session.Metadata["affiliate_code"])
}

func TestParseEventRejectsBadSignature(t *testing.T) {
	c := NewClient("", "whsec_test")
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)
	_, err := c.ParseEvent(payload, signedHeader(payload, "other", time.Now()))
	var rejected *RejectedError
	assert.ErrorAs(t, err, &rejected)
}

func TestParseEventUndecodableObjectIsMalformed(t *testing.T) {
	c := NewClient("", "whsec_test")
	payload := []byte(`{
		"id": "evt_bad",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "object": "checkout.session", "amount_total": "lots"}}
	}`)

	_, err := c.ParseEvent(payload, signedHeader(payload, "whsec_test", time.Now()))
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Contains(t, err.Error(), "evt_bad")
	var rejected *RejectedError
	assert.False(t, errors.As(err, &rejected))
}

func TestParseEventSubscriptionDeleted(t *testing.T) {
	ev, err := decodeEvent(stripe.Event{
		ID:   "evt_2",
		Type: "customer.subscription.deleted",
		Data: &stripe.EventData{Raw: []byte(`{"id":"sub_1","object":"subscription","customer":"cus_42"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_42", ev.CustomerID)
	assert.Nil(t, ev.Session)
}

func TestUnconfiguredClient(t *testing.T) {
	c := &Client{}
	ctx := context.Background()
	_, err := c.CreateCoupon(ctx, CouponParams{Name: "x", PercentOff: 10})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.ListCompletedSessions(ctx, time.Now(), 10)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.CreateCheckoutSession(ctx, CheckoutParams{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.ParseEvent(nil, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClassify(t *testing.T) {
	rejected := classify(&stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Param: "percent_off", Msg: "Invalid percent_off"})
	var re *RejectedError
	require.ErrorAs(t, rejected, &re)
	assert.Equal(t, "Invalid percent_off", re.Error())
	assert.Equal(t, "percent_off", re.Param)

	apiErr := &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "upstream"}
	wrapped := classify(apiErr)
	assert.False(t, errors.As(wrapped, &re))
	assert.ErrorIs(t, wrapped, apiErr)
}

func TestToCheckoutSessionDefaults(t *testing.T) {
	cs := toCheckoutSession(&stripe.CheckoutSession{ID: "cs_1", Created: 1700000000})
	assert.NotNil(t, cs.Metadata)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), cs.Created)
	assert.Empty(t, cs.CustomerID)
}
