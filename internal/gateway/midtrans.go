package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog"
)

// Midtrans talks to Snap for hosted checkouts and to the Core API for status checks.
type Midtrans struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
	logger     zerolog.Logger
}

// NewMidtrans returns ErrNotConfigured when serverKey is empty so callers can
// disable monetization instead of failing on every click.
func NewMidtrans(serverKey, env string, logger zerolog.Logger) (*Midtrans, error) {
	if strings.TrimSpace(serverKey) == "" {
		return nil, ErrNotConfigured
	}
	environment := midtrans.Sandbox
	if env == "production" {
		environment = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, environment)

	var c coreapi.Client
	c.New(serverKey, environment)

	return &Midtrans{SnapClient: s, CoreClient: c, logger: logger}, nil
}

// recurringCurrency is the only currency Midtrans bills subscriptions in.
const recurringCurrency = "IDR"

// startTimeLayout is the schedule start format the subscription API expects.
const startTimeLayout = "2006-01-02 15:04:05 -0700"

func (m *Midtrans) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error) {
	resp, err := m.createTransaction(ctx, m.snapRequest(req))
	if err != nil {
		return nil, err
	}
	if resp.RedirectURL == "" {
		return nil, fmt.Errorf("snap transaction %s: no redirect url", req.Reference)
	}
	return &Session{RedirectURL: resp.RedirectURL}, nil
}

// CreateSubscription opens the card-only first payment of a subscription with
// save_card set, so the settlement notification carries a saved token for
// StartRecurring. It prefers the hosted redirect and falls back to the Snap
// token, which the client confirms inline with the Snap popup.
func (m *Midtrans) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Session, error) {
	resp, err := m.createTransaction(ctx, subscriptionSnapRequest(m.snapRequest(req.CheckoutRequest), req.PriceRef))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.RedirectURL != "":
		return &Session{RedirectURL: resp.RedirectURL}, nil
	case resp.Token != "":
		return &Session{ConfirmationSecret: resp.Token}, nil
	}
	return nil, fmt.Errorf("snap subscription %s: neither redirect url nor token", req.Reference)
}

func (m *Midtrans) TransactionStatus(ctx context.Context, reference string) (*TransactionStatus, error) {
	type result struct {
		resp *coreapi.TransactionStatusResponse
		err  *midtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := m.CoreClient.CheckTransaction(reference)
		done <- result{resp, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}

	if r.resp == nil {
		if r.err != nil && r.err.StatusCode == http.StatusNotFound {
			// Midtrans has no record until the payer picks a payment method.
			return &TransactionStatus{Reference: reference, Status: StatePending}, nil
		}
		return nil, fmt.Errorf("check transaction %s: %w", reference, toError(r.err))
	}
	if r.err != nil {
		m.logger.Warn().Err(r.err).Str("reference", reference).
			Msg("midtrans core api returned a valid response but also a non-nil error")
	}
	return &TransactionStatus{
		Reference:     r.resp.OrderID,
		TransactionID: r.resp.TransactionID,
		Status:        r.resp.TransactionStatus,
	}, nil
}

// StartRecurring creates a Core API subscription billing the saved card every
// month from req.StartAt.
func (m *Midtrans) StartRecurring(ctx context.Context, req RecurringRequest) (*Recurring, error) {
	type result struct {
		resp *coreapi.CreateSubscriptionResponse
		err  *midtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := m.CoreClient.CreateSubscription(recurringRequest(req))
		done <- result{resp, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}

	if r.resp == nil {
		return nil, fmt.Errorf("create subscription for %s: %w", req.Reference, toError(r.err))
	}
	if r.resp.ID == "" {
		return nil, fmt.Errorf("create subscription for %s: no subscription id", req.Reference)
	}
	if r.err != nil {
		m.logger.Warn().Err(r.err).Str("reference", req.Reference).
			Msg("midtrans subscription api returned a valid response but also a non-nil error")
	}
	return &Recurring{ID: r.resp.ID, Status: r.resp.Status}, nil
}

func (m *Midtrans) createTransaction(ctx context.Context, req *snap.Request) (*snap.Response, error) {
	type result struct {
		resp *snap.Response
		err  *midtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := m.SnapClient.CreateTransaction(req)
		done <- result{resp, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}

	if r.resp == nil {
		return nil, fmt.Errorf("create snap transaction %s: %w", req.TransactionDetails.OrderID, toError(r.err))
	}
	if r.err != nil {
		m.logger.Warn().Err(r.err).Str("reference", req.TransactionDetails.OrderID).
			Msg("midtrans returned a valid response but also a non-nil error")
	}
	return r.resp, nil
}

func (m *Midtrans) snapRequest(req CheckoutRequest) *snap.Request {
	sr := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: req.AmountCents,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.Item.ID,
				Price: req.Item.AmountCents,
				Qty:   1,
				Name:  req.Item.Name,
			},
		},
		CustomerDetail: customerDetails(req.Customer),
		CustomField1:   req.Metadata.Kind,
		CustomField2:   strconv.FormatInt(req.Metadata.PayeeID, 10),
		CustomField3:   req.Metadata.CorrelationID,
		Metadata:       req.Metadata,
	}
	if req.FinishURL != "" {
		sr.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}
	return sr
}

// subscriptionSnapRequest restricts the first payment to cards and asks Snap to
// save the card for the recurring schedule.
func subscriptionSnapRequest(sr *snap.Request, priceRef string) *snap.Request {
	sr.EnabledPayments = []snap.SnapPaymentType{snap.PaymentTypeCreditCard}
	sr.CreditCard = &snap.CreditCardDetails{Secure: true, SaveCard: true}
	if priceRef != "" {
		(*sr.Items)[0].ID = priceRef
	}
	return sr
}

func recurringRequest(req RecurringRequest) *coreapi.SubscriptionReq {
	return &coreapi.SubscriptionReq{
		Name:        req.Name,
		Amount:      req.AmountCents,
		Currency:    recurringCurrency,
		PaymentType: coreapi.PaymentTypeCreditCard,
		Token:       req.CardToken,
		Schedule: coreapi.ScheduleDetails{
			Interval:     1,
			IntervalUnit: "month",
			StartTime:    req.StartAt.Format(startTimeLayout),
		},
		Metadata:        req.Metadata,
		CustomerDetails: customerDetails(req.Customer),
	}
}

// customerDetails is the customer record Midtrans keeps per transaction.
func customerDetails(c Customer) *midtrans.CustomerDetails {
	name := c.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	return &midtrans.CustomerDetails{
		FName: name,
		Email: c.Email,
	}
}

func toError(err *midtrans.Error) error {
	if err == nil {
		return errors.New("nil response")
	}
	return err
}
