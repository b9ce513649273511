package store

import (
	"context"
	"encoding/json"
	"fmt"

	"racer-platform/internal/models"
)

const creatorColumns = `id, user_id, username, display_name, widget_secret_token, created_at`

func (q queries) CreatorByID(ctx context.Context, id int64) (*models.Creator, error) {
	var c models.Creator
	if err := q.get(ctx, &c, `SELECT `+creatorColumns+` FROM creators WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("fetch creator %d: %w", id, err)
	}
	return &c, nil
}

func (q queries) CreatorByUsername(ctx context.Context, username string) (*models.Creator, error) {
	var c models.Creator
	if err := q.get(ctx, &c, `SELECT `+creatorColumns+` FROM creators WHERE username = ?`, username); err != nil {
		return nil, fmt.Errorf("fetch creator %q: %w", username, err)
	}
	return &c, nil
}

// CreatorByUserID finds the creator profile owned by a signed-in account.
func (q queries) CreatorByUserID(ctx context.Context, userID int64) (*models.Creator, error) {
	var c models.Creator
	if err := q.get(ctx, &c, `SELECT `+creatorColumns+` FROM creators WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("fetch creator for user %d: %w", userID, err)
	}
	return &c, nil
}

// CreatorByWidgetToken resolves the secret token embedded in an overlay URL.
func (q queries) CreatorByWidgetToken(ctx context.Context, token string) (*models.Creator, error) {
	var c models.Creator
	if err := q.get(ctx, &c, `SELECT `+creatorColumns+` FROM creators WHERE widget_secret_token = ?`, token); err != nil {
		return nil, fmt.Errorf("fetch creator by widget token: %w", err)
	}
	return &c, nil
}

const tierColumns = `id, creator_id, name, price_cents, benefits, external_price_ref, active`

func (q queries) TierByID(ctx context.Context, id int64) (*models.SubscriptionTier, error) {
	var t models.SubscriptionTier
	if err := q.get(ctx, &t, `SELECT `+tierColumns+` FROM subscription_tiers WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("fetch tier %d: %w", id, err)
	}
	if err := decodeBenefits(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ActiveTiers lists a creator's active tiers, cheapest first.
func (q queries) ActiveTiers(ctx context.Context, creatorID int64) ([]models.SubscriptionTier, error) {
	var tiers []models.SubscriptionTier
	query := `SELECT ` + tierColumns + ` FROM subscription_tiers
		WHERE creator_id = ? AND active = ? ORDER BY price_cents, id`
	if err := q.selectAll(ctx, &tiers, query, creatorID, true); err != nil {
		return nil, fmt.Errorf("list tiers for creator %d: %w", creatorID, err)
	}
	for i := range tiers {
		if err := decodeBenefits(&tiers[i]); err != nil {
			return nil, err
		}
	}
	return tiers, nil
}

func decodeBenefits(t *models.SubscriptionTier) error {
	t.Benefits = []string{}
	if t.BenefitsJSON == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(t.BenefitsJSON), &t.Benefits); err != nil {
		return fmt.Errorf("unmarshal benefits for tier %d: %w", t.ID, err)
	}
	return nil
}

func (q queries) PackageByID(ctx context.Context, id int64) (*models.SponsorshipPackage, error) {
	var p models.SponsorshipPackage
	query := `SELECT id, creator_id, name, price_cents, active FROM sponsorship_packages WHERE id = ?`
	if err := q.get(ctx, &p, query, id); err != nil {
		return nil, fmt.Errorf("fetch sponsorship package %d: %w", id, err)
	}
	return &p, nil
}
