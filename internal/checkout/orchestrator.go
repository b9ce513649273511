// Package checkout turns a fan's support click into a processor checkout and
// later folds the processor's confirmation back into charges, earnings and fan
// status.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"racer-platform/internal/fanstatus"
	"racer-platform/internal/gateway"
	"racer-platform/internal/metrics"
	"racer-platform/internal/models"
	"racer-platform/internal/pending"
	"racer-platform/internal/revenue"
	"racer-platform/internal/store"
	"racer-platform/internal/websocket"
)

// MinTipCents is the smallest tip the processor accepts ($1.00).
const MinTipCents = 100

// MaxChargeCents caps a single charge ($1,000,000).
const MaxChargeCents = 100_000_000

const (
	defaultPendingTTL     = 24 * time.Hour
	defaultGatewayTimeout = 15 * time.Second
)

// AlertPublisher delivers support alerts to creator overlays.
type AlertPublisher interface {
	Publish(alert websocket.SupportAlert) bool
}

// Config holds the orchestrator settings taken from the service config.
type Config struct {
	BaseURL        string
	PendingTTL     time.Duration
	GatewayTimeout time.Duration
}

// InitiateRequest is one support click. AmountCents is the tip or sponsorship
// amount; subscriptions may leave it zero and use the tier price.
type InitiateRequest struct {
	PayerID     int64 // account id of the signed-in fan
	PayerEmail  string
	PayeeID     int64 // creator row id
	AmountCents int64
	Payload     Payload
}

// ChargeHandle tells the client where to go next. Exactly one of RedirectURL
// and ConfirmationSecret is set.
type ChargeHandle struct {
	Reference          string            `json:"reference"`
	CorrelationID      string            `json:"correlation_id"`
	Kind               models.ChargeKind `json:"kind"`
	AmountCents        int64             `json:"amount_cents"`
	RedirectURL        string            `json:"redirect_url,omitempty"`
	ConfirmationSecret string            `json:"confirmation_secret,omitempty"`
	SuccessURL         string            `json:"success_url"`
	CancelURL          string            `json:"cancel_url"`
	Split              revenue.Split     `json:"split"`
}

// ChargeResult is what finalization observed. Applied is true only for the
// call that moved the charge out of pending.
type ChargeResult struct {
	Reference        string              `json:"reference"`
	Kind             models.ChargeKind   `json:"kind"`
	Status           models.ChargeStatus `json:"status"`
	PayerID          int64               `json:"payer_id"`
	PayeeID          int64               `json:"payee_id"`
	AmountCents      int64               `json:"amount_cents"`
	Split            revenue.Split       `json:"split"`
	FanStatus        *fanstatus.Status   `json:"fan_status,omitempty"`
	FanCounts        *models.FanCounts   `json:"fan_counts,omitempty"`
	AlreadyFinalized bool                `json:"already_finalized"`
	Applied          bool                `json:"applied"`
	RecurringID      string              `json:"recurring_id,omitempty"`
}

// Notification is a processor callback. SavedCardToken is only present when
// the payment saved the card, which subscriptions always request.
type Notification struct {
	Reference      string
	SavedCardToken string
}

// Orchestrator opens processor checkouts and finalizes them into earnings and
// fan status.
type Orchestrator struct {
	store     *store.Store
	processor gateway.Processor
	pending   pending.Store
	fans      *fanstatus.Service
	alerts    AlertPublisher
	metrics   *metrics.Recorder
	logger    zerolog.Logger
	cfg       Config
	now       func() time.Time
}

// New builds an orchestrator. processor may be nil, in which case every
// charge operation reports ErrConfiguration. alerts may be nil.
func New(
	st *store.Store,
	processor gateway.Processor,
	pend pending.Store,
	fans *fanstatus.Service,
	alerts AlertPublisher,
	rec *metrics.Recorder,
	logger zerolog.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultPendingTTL
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Orchestrator{
		store:     st,
		processor: processor,
		pending:   pend,
		fans:      fans,
		alerts:    alerts,
		metrics:   rec,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether a payment processor is configured.
func (o *Orchestrator) Enabled() bool {
	return o.processor != nil
}

// plan is a validated request with everything resolved from the catalog.
type plan struct {
	kind        models.ChargeKind
	amountCents int64
	label       string
	itemID      string
	priceRef    string
	tierName    string
	tierID      int64
	packageID   int64
	supporter   string
	message     string
}

// InitiateCharge validates the request, opens a processor session and records
// the pending charge. Nothing is persisted unless the session was created.
func (o *Orchestrator) InitiateCharge(ctx context.Context, req InitiateRequest) (*ChargeHandle, error) {
	if o.processor == nil {
		return nil, ErrConfiguration
	}
	p, err := o.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	reference := strings.ToUpper(string(p.kind)) + "-" + uuid.NewString()
	successURL, cancelURL := o.continuationURLs(p, req.PayeeID, reference, correlationID)

	checkout := gateway.CheckoutRequest{
		Reference:   reference,
		AmountCents: p.amountCents,
		Item: gateway.LineItem{
			ID:          p.itemID,
			Name:        p.label,
			AmountCents: p.amountCents,
		},
		Customer: gateway.Customer{
			ID:          req.PayerID,
			DisplayName: p.supporter,
			Email:       req.PayerEmail,
		},
		FinishURL: successURL,
		Metadata: gateway.Metadata{
			Kind:          string(p.kind),
			PayerID:       req.PayerID,
			PayeeID:       req.PayeeID,
			CorrelationID: correlationID,
			TierID:        p.tierID,
			PackageID:     p.packageID,
		},
	}

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	defer cancel()

	var session *gateway.Session
	if p.kind == models.KindSubscription {
		session, err = o.processor.CreateSubscription(gctx, gateway.SubscriptionRequest{
			CheckoutRequest: checkout,
			PriceRef:        p.priceRef,
		})
	} else {
		session, err = o.processor.CreateCheckout(gctx, checkout)
	}
	if errors.Is(err, gateway.ErrNotConfigured) {
		return nil, ErrConfiguration
	}
	if err == nil {
		err = checkSession(p.kind, session)
	}
	if err != nil {
		o.metrics.ChargeInitiationFailed("processor")
		o.logger.Error().Err(err).Str("kind", string(p.kind)).Int64("payee_id", req.PayeeID).
			Msg("failed to create checkout session")
		return nil, fmt.Errorf("%w: %v", ErrCheckoutInitiationFailed, err)
	}
	if session.RedirectURL != "" {
		session.ConfirmationSecret = ""
	}

	charge := &models.Charge{
		PayerID:           req.PayerID,
		PayeeID:           req.PayeeID,
		AmountCents:       p.amountCents,
		Kind:              p.kind,
		Status:            models.StatusPending,
		ExternalReference: reference,
		CorrelationID:     correlationID,
		SupporterName:     p.supporter,
		Message:           p.message,
		CreatedAt:         o.now(),
	}
	if p.tierID != 0 {
		charge.TierID.Int64, charge.TierID.Valid = p.tierID, true
	}
	if p.packageID != 0 {
		charge.PackageID.Int64, charge.PackageID.Valid = p.packageID, true
	}
	if err := o.store.InsertCharge(ctx, charge); err != nil {
		// The processor session is abandoned; it expires on the processor side.
		o.metrics.ChargeInitiationFailed("store")
		o.logger.Error().Err(err).Str("reference", reference).Msg("failed to save pending charge")
		return nil, fmt.Errorf("%w: %v", ErrCheckoutInitiationFailed, err)
	}

	pc := pending.Context{
		CorrelationID: correlationID,
		Reference:     reference,
		Kind:          string(p.kind),
		PayerID:       req.PayerID,
		PayeeID:       req.PayeeID,
		AmountCents:   p.amountCents,
		Label:         p.label,
	}
	if err := o.pending.Put(ctx, pc, o.cfg.PendingTTL); err != nil {
		o.logger.Warn().Err(err).Str("correlation_id", correlationID).Msg("failed to store pending checkout context")
	}

	o.metrics.ChargeInitiated(string(p.kind))
	o.logger.Info().Str("reference", reference).Str("kind", string(p.kind)).
		Int64("payer_id", req.PayerID).Int64("payee_id", req.PayeeID).Int64("amount_cents", p.amountCents).
		Msg("checkout initiated")

	return &ChargeHandle{
		Reference:          reference,
		CorrelationID:      correlationID,
		Kind:               p.kind,
		AmountCents:        p.amountCents,
		RedirectURL:        session.RedirectURL,
		ConfirmationSecret: session.ConfirmationSecret,
		SuccessURL:         successURL,
		CancelURL:          cancelURL,
		Split:              revenue.Compute(p.amountCents),
	}, nil
}

func (o *Orchestrator) validate(ctx context.Context, req InitiateRequest) (*plan, error) {
	if req.Payload == nil {
		return nil, invalid("payload", "missing")
	}
	if req.PayerID <= 0 {
		return nil, invalid("payer", "must be signed in")
	}
	creator, err := o.store.CreatorByID(ctx, req.PayeeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid("creator", "not found")
	}
	if err != nil {
		o.metrics.ChargeInitiationFailed("store")
		return nil, fmt.Errorf("%w: %v", ErrCheckoutInitiationFailed, err)
	}
	// PayerID is an account id and PayeeID a creator row id; ownership links them.
	if creator.UserID == req.PayerID {
		return nil, invalid("creator", "cannot support yourself")
	}

	p := &plan{kind: req.Payload.Kind()}
	switch pl := req.Payload.(type) {
	case TipPayload:
		if req.AmountCents < MinTipCents {
			return nil, invalid("amount_cents", "tips start at %s", formatCents(MinTipCents))
		}
		if req.AmountCents > MaxChargeCents {
			return nil, invalid("amount_cents", "tips are capped at %s", formatCents(MaxChargeCents))
		}
		p.amountCents = req.AmountCents
		p.label = "Tip for " + creator.DisplayName
		p.itemID = "tip"
		p.supporter = strings.TrimSpace(pl.DisplayName)
		p.message = strings.TrimSpace(pl.Message)

	case SubscriptionPayload:
		tier, err := o.store.TierByID(ctx, pl.TierID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("tier_id", "not found")
		}
		if err != nil {
			o.metrics.ChargeInitiationFailed("store")
			return nil, fmt.Errorf("%w: %v", ErrCheckoutInitiationFailed, err)
		}
		if tier.CreatorID != req.PayeeID || !tier.Active {
			return nil, invalid("tier_id", "not offered by this creator")
		}
		if req.AmountCents != 0 && req.AmountCents != tier.PriceCents {
			return nil, invalid("amount_cents", "tier price is %s", formatCents(tier.PriceCents))
		}
		p.amountCents = tier.PriceCents
		p.label = tier.Name + " subscription to " + creator.DisplayName
		p.itemID = "tier-" + strconv.FormatInt(tier.ID, 10)
		p.priceRef = tier.ExternalPriceRef
		p.tierName = tier.Name
		p.tierID = tier.ID

	case SponsorshipPayload:
		pkg, err := o.store.PackageByID(ctx, pl.PackageID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("package_id", "not found")
		}
		if err != nil {
			o.metrics.ChargeInitiationFailed("store")
			return nil, fmt.Errorf("%w: %v", ErrCheckoutInitiationFailed, err)
		}
		if pkg.CreatorID != req.PayeeID || !pkg.Active {
			return nil, invalid("package_id", "not offered by this creator")
		}
		amount := req.AmountCents
		if amount == 0 {
			amount = pkg.PriceCents
		}
		if amount < pkg.PriceCents {
			return nil, invalid("amount_cents", "package starts at %s", formatCents(pkg.PriceCents))
		}
		if amount > MaxChargeCents {
			return nil, invalid("amount_cents", "sponsorships are capped at %s", formatCents(MaxChargeCents))
		}
		p.amountCents = amount
		p.label = pkg.Name + " sponsorship of " + creator.DisplayName
		p.itemID = "package-" + strconv.FormatInt(pkg.ID, 10)
		p.packageID = pkg.ID
		p.message = strings.TrimSpace(pl.Note)

	default:
		return nil, invalid("payload", "unsupported kind %q", p.kind)
	}
	return p, nil
}

func checkSession(kind models.ChargeKind, s *gateway.Session) error {
	switch {
	case s == nil:
		return errors.New("empty session")
	case kind == models.KindSubscription && (s.RedirectURL != "" || s.ConfirmationSecret != ""):
		return nil
	case s.RedirectURL != "":
		return nil
	}
	return errors.New("session carries no redirect url")
}

// continuationURLs builds the success and cancel pages the processor and the
// client return to.
func (o *Orchestrator) continuationURLs(p *plan, payeeID int64, reference, correlationID string) (string, string) {
	q := url.Values{}
	q.Set("kind", string(p.kind))
	q.Set("creator", strconv.FormatInt(payeeID, 10))
	if p.tierName != "" {
		q.Set("tier", p.tierName)
	} else {
		q.Set("amount", formatCents(p.amountCents))
	}
	q.Set("ref", reference)
	q.Set("cid", correlationID)
	enc := q.Encode()
	return o.cfg.BaseURL + "/support/success?" + enc, o.cfg.BaseURL + "/support/cancel?" + enc
}

// formatCents renders 2500 as "25.00".
func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// FinalizeCharge confirms a charge with the processor and applies its side
// effects exactly once, however often it is called.
func (o *Orchestrator) FinalizeCharge(ctx context.Context, reference string) (*ChargeResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrFinalizationAmbiguous
	}
	charge, err := o.store.ChargeByReference(ctx, reference)
	if errors.Is(err, store.ErrNotFound) {
		o.logger.Warn().Str("reference", reference).Msg("finalize for unknown charge")
		return nil, ErrFinalizationAmbiguous
	}
	if err != nil {
		return nil, err
	}
	if charge.PayerID <= 0 || charge.PayeeID <= 0 || charge.AmountCents <= 0 {
		o.logger.Warn().Str("reference", reference).Msg("charge lacks payer, payee or amount")
		return nil, ErrFinalizationAmbiguous
	}

	if charge.Status.Terminal() {
		return o.cached(ctx, charge), nil
	}
	if o.processor == nil {
		return nil, ErrConfiguration
	}

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	defer cancel()
	ts, err := o.processor.TransactionStatus(gctx, reference)
	if err != nil {
		return nil, fmt.Errorf("check status of %s: %w", reference, err)
	}

	switch ts.Status {
	case gateway.StateSettlement, gateway.StateCapture:
		return o.settle(ctx, charge)
	case gateway.StateDeny, gateway.StateFailure:
		return o.closeCharge(ctx, charge, models.StatusFailed)
	case gateway.StateCancel, gateway.StateExpire:
		return o.closeCharge(ctx, charge, models.StatusCanceled)
	}

	o.metrics.ChargeFinalized(string(models.StatusPending), false)
	return resultFrom(charge), nil
}

// FinalizeNotification finalizes the charge named by a processor callback. A
// succeeded subscription whose callback carries a saved card token also gets its
// recurring schedule created with the processor, once per charge.
func (o *Orchestrator) FinalizeNotification(ctx context.Context, n Notification) (*ChargeResult, error) {
	res, err := o.FinalizeCharge(ctx, n.Reference)
	if err != nil {
		return nil, err
	}
	if res.Kind == models.KindSubscription && res.Status == models.StatusSucceeded && n.SavedCardToken != "" {
		if id := o.startRecurring(ctx, res.Reference, n.SavedCardToken); id != "" {
			res.RecurringID = id
		}
	}
	return res, nil
}

// startRecurring claims the charge and creates the processor subscription for
// the following periods. Failures release the claim so the next callback
// retries; the first payment stands either way.
func (o *Orchestrator) startRecurring(ctx context.Context, reference, cardToken string) string {
	if o.processor == nil {
		return ""
	}
	claimed, err := o.store.ClaimRecurring(ctx, reference)
	if err != nil || !claimed {
		if err != nil {
			o.logger.Error().Err(err).Str("reference", reference).Msg("failed to claim recurring setup")
		}
		return ""
	}

	charge, err := o.store.ChargeByReference(ctx, reference)
	if err != nil {
		o.releaseRecurring(ctx, reference, err)
		return ""
	}
	name := "subscription"
	if charge.TierID.Valid {
		if tier, err := o.store.TierByID(ctx, charge.TierID.Int64); err == nil {
			name = tier.Name
		}
	}

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	defer cancel()
	rec, err := o.processor.StartRecurring(gctx, gateway.RecurringRequest{
		Reference:   reference,
		Name:        name,
		AmountCents: charge.AmountCents,
		CardToken:   cardToken,
		Customer:    gateway.Customer{ID: charge.PayerID, DisplayName: charge.SupporterName},
		Metadata: gateway.Metadata{
			Kind:          string(charge.Kind),
			PayerID:       charge.PayerID,
			PayeeID:       charge.PayeeID,
			CorrelationID: charge.CorrelationID,
			TierID:        charge.TierID.Int64,
		},
		StartAt: o.now().AddDate(0, 1, 0),
	})
	if err != nil {
		o.releaseRecurring(ctx, reference, err)
		return ""
	}
	if err := o.store.SetRecurringID(ctx, reference, rec.ID); err != nil {
		o.logger.Error().Err(err).Str("reference", reference).Str("recurring_id", rec.ID).
			Msg("processor subscription created but not saved")
		return rec.ID
	}
	o.logger.Info().Str("reference", reference).Str("recurring_id", rec.ID).Msg("recurring subscription started")
	return rec.ID
}

func (o *Orchestrator) releaseRecurring(ctx context.Context, reference string, cause error) {
	o.logger.Error().Err(cause).Str("reference", reference).Msg("failed to start recurring subscription")
	if err := o.store.ReleaseRecurring(ctx, reference); err != nil {
		o.logger.Error().Err(err).Str("reference", reference).Msg("failed to release recurring claim")
	}
}

func (o *Orchestrator) settle(ctx context.Context, charge *models.Charge) (*ChargeResult, error) {
	split := revenue.Compute(charge.AmountCents)
	var (
		applied bool
		status  fanstatus.Status
	)
	err := o.store.InTx(ctx, func(tx *store.Tx) error {
		won, err := tx.MarkChargeSucceeded(ctx, charge.ExternalReference, split, o.now())
		if err != nil || !won {
			return err
		}
		status, err = o.fans.WithRepository(tx).RecordSpend(ctx, charge.PayerID, charge.PayeeID, charge.AmountCents)
		if err != nil {
			return fmt.Errorf("record spend: %w", err)
		}
		if err := tx.AddEarnings(ctx, charge.PayeeID, split); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		o.logger.Error().Err(err).Str("reference", charge.ExternalReference).Msg("failed to apply succeeded charge")
		return nil, err
	}
	if !applied {
		return o.reload(ctx, charge)
	}

	o.metrics.ChargeFinalized(string(models.StatusSucceeded), true)
	o.metrics.ChargeSettled(string(charge.Kind), charge.AmountCents)
	o.logger.Info().Str("reference", charge.ExternalReference).Int64("creator_cents", split.CreatorCents).
		Int64("platform_cents", split.PlatformCents).Str("fan_state", string(status.State)).
		Msg("charge succeeded")

	charge.Status = models.StatusSucceeded
	charge.CreatorCents, charge.PlatformCents = split.CreatorCents, split.PlatformCents
	res := resultFrom(charge)
	res.Applied = true
	res.FanStatus = &status

	// Secondary effects. The charge is committed whatever happens below.
	o.publish(charge, split, status.IsSuperfan)
	o.dropPending(ctx, charge.CorrelationID)
	counts, stale := o.fans.Counts(ctx, charge.PayeeID)
	if !stale {
		res.FanCounts = &counts
	}
	return res, nil
}

func (o *Orchestrator) closeCharge(ctx context.Context, charge *models.Charge, status models.ChargeStatus) (*ChargeResult, error) {
	won, err := o.store.MarkChargeClosed(ctx, charge.ExternalReference, status, o.now())
	if err != nil {
		return nil, err
	}
	if !won {
		return o.reload(ctx, charge)
	}
	o.metrics.ChargeFinalized(string(status), true)
	o.logger.Info().Str("reference", charge.ExternalReference).Str("status", string(status)).Msg("charge closed")
	o.dropPending(ctx, charge.CorrelationID)

	charge.Status = status
	res := resultFrom(charge)
	res.Applied = true
	return res, nil
}

// reload answers a caller that lost the race to another finalizer.
func (o *Orchestrator) reload(ctx context.Context, charge *models.Charge) (*ChargeResult, error) {
	fresh, err := o.store.ChargeByReference(ctx, charge.ExternalReference)
	if err != nil {
		return nil, err
	}
	return o.cached(ctx, fresh), nil
}

func (o *Orchestrator) cached(ctx context.Context, charge *models.Charge) *ChargeResult {
	o.metrics.ChargeFinalized(string(charge.Status), false)
	res := resultFrom(charge)
	res.AlreadyFinalized = true
	if charge.Status == models.StatusSucceeded {
		if st, err := o.fans.GetStatus(ctx, charge.PayerID, charge.PayeeID); err == nil {
			res.FanStatus = &st
		}
	}
	return res
}

func (o *Orchestrator) publish(charge *models.Charge, split revenue.Split, superfan bool) {
	if o.alerts == nil {
		return
	}
	name := charge.SupporterName
	if name == "" {
		name = "Anonymous"
	}
	o.alerts.Publish(websocket.SupportAlert{
		TargetCreatorID: charge.PayeeID,
		Kind:            string(charge.Kind),
		SupporterID:     charge.PayerID,
		DisplayName:     name,
		Message:         charge.Message,
		AmountCents:     charge.AmountCents,
		CreatorCents:    split.CreatorCents,
		IsSuperfan:      superfan,
	})
}

func (o *Orchestrator) dropPending(ctx context.Context, correlationID string) {
	if correlationID == "" {
		return
	}
	if err := o.pending.Delete(ctx, correlationID); err != nil {
		o.logger.Warn().Err(err).Str("correlation_id", correlationID).Msg("failed to drop pending checkout context")
	}
}

func resultFrom(c *models.Charge) *ChargeResult {
	res := &ChargeResult{
		Reference:   c.ExternalReference,
		Kind:        c.Kind,
		Status:      c.Status,
		PayerID:     c.PayerID,
		PayeeID:     c.PayeeID,
		AmountCents: c.AmountCents,
		Split: revenue.Split{
			GrossCents:    c.CreatorCents + c.PlatformCents,
			CreatorCents:  c.CreatorCents,
			PlatformCents: c.PlatformCents,
		},
	}
	if c.RecurringID != store.RecurringStarting {
		res.RecurringID = c.RecurringID
	}
	return res
}

// PendingContext returns what the success page shows while a charge is pending.
func (o *Orchestrator) PendingContext(ctx context.Context, correlationID string) (*pending.Context, error) {
	return o.pending.Get(ctx, correlationID)
}
