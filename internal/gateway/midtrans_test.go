package gateway

import (
	"testing"
	"time"

	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMidtransRequiresKey(t *testing.T) {
	_, err := NewMidtrans("  ", "sandbox", zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSnapRequestCarriesTypedMetadata(t *testing.T) {
	m, err := NewMidtrans("SB-Mid-server-test", "sandbox", zerolog.Nop())
	require.NoError(t, err)

	req := CheckoutRequest{
		Reference:   "TIP-123",
		AmountCents: 2500,
		Item:        LineItem{ID: "tip", Name: "Tip for speedy", AmountCents: 2500},
		Customer:    Customer{ID: 1},
		FinishURL:   "https://app.example/support/success?kind=tip",
		Metadata:    Metadata{Kind: "tip", PayerID: 1, PayeeID: 7, CorrelationID: "123"},
	}

	sr := m.snapRequest(req)
	assert.Equal(t, "TIP-123", sr.TransactionDetails.OrderID)
	assert.Equal(t, int64(2500), sr.TransactionDetails.GrossAmt)
	require.NotNil(t, sr.Items)
	assert.Equal(t, "tip", (*sr.Items)[0].ID)
	assert.Equal(t, "Anonymous", sr.CustomerDetail.FName)
	assert.Equal(t, "tip", sr.CustomField1)
	assert.Equal(t, "7", sr.CustomField2)
	assert.Equal(t, "123", sr.CustomField3)
	require.NotNil(t, sr.Callbacks)
	assert.Equal(t, req.FinishURL, sr.Callbacks.Finish)
	assert.Equal(t, req.Metadata, sr.Metadata)
	assert.Nil(t, sr.CreditCard, "one-time checkouts never save the card")
	assert.Empty(t, sr.EnabledPayments)
}

func TestSubscriptionSnapRequestSavesCard(t *testing.T) {
	m, err := NewMidtrans("SB-Mid-server-test", "sandbox", zerolog.Nop())
	require.NoError(t, err)

	req := CheckoutRequest{
		Reference:   "SUBSCRIPTION-1",
		AmountCents: 500,
		Item:        LineItem{ID: "tier-1", Name: "Paddock subscription", AmountCents: 500},
		Metadata:    Metadata{Kind: "subscription", PayerID: 1, PayeeID: 7, TierID: 1},
	}

	sr := subscriptionSnapRequest(m.snapRequest(req), "price_paddock")
	assert.Equal(t, "price_paddock", (*sr.Items)[0].ID)
	require.NotNil(t, sr.CreditCard)
	assert.True(t, sr.CreditCard.SaveCard)
	assert.True(t, sr.CreditCard.Secure)
	assert.Equal(t, []snap.SnapPaymentType{snap.PaymentTypeCreditCard}, sr.EnabledPayments)

	sr = subscriptionSnapRequest(m.snapRequest(req), "")
	assert.Equal(t, "tier-1", (*sr.Items)[0].ID)
}

func TestRecurringRequestBillsSavedCardMonthly(t *testing.T) {
	start := time.Date(2026, 11, 17, 12, 0, 0, 0, time.UTC)
	req := RecurringRequest{
		Reference:   "SUBSCRIPTION-1",
		Name:        "Paddock",
		AmountCents: 500,
		CardToken:   "481111-1114-saved",
		Customer:    Customer{ID: 1, DisplayName: "Kimi"},
		Metadata:    Metadata{Kind: "subscription", PayerID: 1, PayeeID: 7, TierID: 1},
		StartAt:     start,
	}

	sr := recurringRequest(req)
	assert.Equal(t, "Paddock", sr.Name)
	assert.EqualValues(t, 500, sr.Amount)
	assert.Equal(t, "IDR", sr.Currency)
	assert.Equal(t, coreapi.PaymentTypeCreditCard, sr.PaymentType)
	assert.Equal(t, "481111-1114-saved", sr.Token)
	assert.EqualValues(t, 1, sr.Schedule.Interval)
	assert.Equal(t, "month", sr.Schedule.IntervalUnit)
	assert.Equal(t, "2026-11-17 12:00:00 +0000", sr.Schedule.StartTime)
	assert.Equal(t, req.Metadata, sr.Metadata)
	require.NotNil(t, sr.CustomerDetails)
	assert.Equal(t, "Kimi", sr.CustomerDetails.FName)
}
