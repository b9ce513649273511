package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"racer-platform/internal/models"
	"racer-platform/internal/revenue"
)

const chargeColumns = `id, payer_id, payee_id, amount_cents, kind, status, external_reference,
	correlation_id, tier_id, package_id, supporter_name, message, creator_cents, platform_cents, created_at, finalized_at,
	recurring_id`

// InsertCharge saves a pending charge and fills in its ID.
func (q queries) InsertCharge(ctx context.Context, c *models.Charge) error {
	query := `
		INSERT INTO charges
		  (payer_id, payee_id, amount_cents, kind, status, external_reference,
		   correlation_id, tier_id, package_id, supporter_name, message, created_at)
		VALUES
		  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := q.get(ctx, &c.ID, query,
		c.PayerID, c.PayeeID, c.AmountCents, c.Kind, c.Status, c.ExternalReference,
		c.CorrelationID, c.TierID, c.PackageID, c.SupporterName, c.Message, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert charge %s: %w", c.ExternalReference, err)
	}
	return nil
}

func (q queries) ChargeByReference(ctx context.Context, ref string) (*models.Charge, error) {
	var c models.Charge
	if err := q.get(ctx, &c, `SELECT `+chargeColumns+` FROM charges WHERE external_reference = ?`, ref); err != nil {
		return nil, fmt.Errorf("fetch charge %s: %w", ref, err)
	}
	return &c, nil
}

// MarkChargeSucceeded moves a pending charge to succeeded and records its split.
// It reports false when the charge was not pending, so only one caller ever
// wins the transition.
func (q queries) MarkChargeSucceeded(ctx context.Context, ref string, split revenue.Split, at time.Time) (bool, error) {
	query := `
		UPDATE charges
		SET status = ?, creator_cents = ?, platform_cents = ?, finalized_at = ?
		WHERE external_reference = ? AND status = ?
	`
	n, err := q.exec(ctx, query,
		models.StatusSucceeded, split.CreatorCents, split.PlatformCents, at, ref, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark charge %s succeeded: %w", ref, err)
	}
	return n == 1, nil
}

// MarkChargeClosed moves a pending charge to failed or canceled.
func (q queries) MarkChargeClosed(ctx context.Context, ref string, status models.ChargeStatus, at time.Time) (bool, error) {
	query := `UPDATE charges SET status = ?, finalized_at = ? WHERE external_reference = ? AND status = ?`
	n, err := q.exec(ctx, query, status, at, ref, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark charge %s %s: %w", ref, status, err)
	}
	return n == 1, nil
}

// RecurringStarting marks a subscription whose processor schedule is being created.
const RecurringStarting = "starting"

// ClaimRecurring reserves a succeeded subscription charge for recurring setup.
// Only one caller gets true until ReleaseRecurring or SetRecurringID runs.
func (q queries) ClaimRecurring(ctx context.Context, ref string) (bool, error) {
	query := `
		UPDATE charges SET recurring_id = ?
		WHERE external_reference = ? AND kind = ? AND status = ? AND recurring_id = ''
	`
	n, err := q.exec(ctx, query, RecurringStarting, ref, models.KindSubscription, models.StatusSucceeded)
	if err != nil {
		return false, fmt.Errorf("claim recurring setup for %s: %w", ref, err)
	}
	return n == 1, nil
}

// SetRecurringID stores the processor subscription id on a claimed charge.
func (q queries) SetRecurringID(ctx context.Context, ref, recurringID string) error {
	query := `UPDATE charges SET recurring_id = ? WHERE external_reference = ? AND recurring_id = ?`
	if _, err := q.exec(ctx, query, recurringID, ref, RecurringStarting); err != nil {
		return fmt.Errorf("set recurring id for %s: %w", ref, err)
	}
	return nil
}

// ReleaseRecurring drops a claim so a later notification can retry the setup.
func (q queries) ReleaseRecurring(ctx context.Context, ref string) error {
	return q.SetRecurringID(ctx, ref, "")
}

// AddEarnings folds a succeeded charge into the creator's running totals.
func (q queries) AddEarnings(ctx context.Context, creatorID int64, split revenue.Split) error {
	query := `
		INSERT INTO creator_earnings (creator_id, gross_cents, creator_cents, platform_cents, supporter_charges)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (creator_id) DO UPDATE SET
		  gross_cents = creator_earnings.gross_cents + excluded.gross_cents,
		  creator_cents = creator_earnings.creator_cents + excluded.creator_cents,
		  platform_cents = creator_earnings.platform_cents + excluded.platform_cents,
		  supporter_charges = creator_earnings.supporter_charges + 1
	`
	if _, err := q.exec(ctx, query, creatorID, split.GrossCents, split.CreatorCents, split.PlatformCents); err != nil {
		return fmt.Errorf("add earnings for creator %d: %w", creatorID, err)
	}
	return nil
}

// Earnings returns zeroed totals for creators without succeeded charges.
func (q queries) Earnings(ctx context.Context, creatorID int64) (models.CreatorEarnings, error) {
	e := models.CreatorEarnings{CreatorID: creatorID}
	query := `
		SELECT creator_id, gross_cents, creator_cents, platform_cents, supporter_charges
		FROM creator_earnings WHERE creator_id = ?
	`
	err := q.get(ctx, &e, query, creatorID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return e, fmt.Errorf("fetch earnings for creator %d: %w", creatorID, err)
	}
	return e, nil
}

// SucceededCharges lists a creator's confirmed support, newest first.
func (q queries) SucceededCharges(ctx context.Context, payeeID int64, limit int) ([]models.Charge, error) {
	charges := []models.Charge{}
	query := `SELECT ` + chargeColumns + ` FROM charges
		WHERE payee_id = ? AND status = ?
		ORDER BY finalized_at DESC, id DESC LIMIT ?`
	if err := q.selectAll(ctx, &charges, query, payeeID, models.StatusSucceeded, limit); err != nil {
		return nil, fmt.Errorf("list charges for creator %d: %w", payeeID, err)
	}
	return charges, nil
}
