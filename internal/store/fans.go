package store

import (
	"context"
	"fmt"
	"time"

	"racer-platform/internal/models"
)

func (q queries) Relationship(ctx context.Context, fanID, creatorID int64) (*models.FanRelationship, error) {
	var rel models.FanRelationship
	query := `
		SELECT fan_id, creator_id, since, is_following, is_superfan, cumulative_spend_cents, updated_at
		FROM fan_relationships WHERE fan_id = ? AND creator_id = ?
	`
	if err := q.get(ctx, &rel, query, fanID, creatorID); err != nil {
		return nil, fmt.Errorf("fetch relationship %d->%d: %w", fanID, creatorID, err)
	}
	return &rel, nil
}

// SaveRelationship upserts the follow and superfan flags. Spend is only ever
// changed through AddSpend.
func (q queries) SaveRelationship(ctx context.Context, rel *models.FanRelationship) error {
	query := `
		INSERT INTO fan_relationships
		  (fan_id, creator_id, since, is_following, is_superfan, cumulative_spend_cents, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (fan_id, creator_id) DO UPDATE SET
		  is_following = excluded.is_following,
		  is_superfan = excluded.is_superfan,
		  updated_at = excluded.updated_at
	`
	_, err := q.exec(ctx, query, rel.FanID, rel.CreatorID, rel.Since, rel.IsFollowing, rel.IsSuperfan, rel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save relationship %d->%d: %w", rel.FanID, rel.CreatorID, err)
	}
	return nil
}

// AddSpend increments cumulative spend, creating the row if needed.
func (q queries) AddSpend(ctx context.Context, fanID, creatorID, amountCents int64, at time.Time) error {
	query := `
		INSERT INTO fan_relationships
		  (fan_id, creator_id, since, is_following, is_superfan, cumulative_spend_cents, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fan_id, creator_id) DO UPDATE SET
		  cumulative_spend_cents = fan_relationships.cumulative_spend_cents + excluded.cumulative_spend_cents,
		  updated_at = excluded.updated_at
	`
	_, err := q.exec(ctx, query, fanID, creatorID, at, false, false, amountCents, at)
	if err != nil {
		return fmt.Errorf("add spend %d->%d: %w", fanID, creatorID, err)
	}
	return nil
}

// FanCounts derives follower totals from the relationship rows.
func (q queries) FanCounts(ctx context.Context, creatorID int64) (models.FanCounts, error) {
	var counts models.FanCounts
	query := `
		SELECT
		  COUNT(*) AS fans,
		  COALESCE(SUM(CASE WHEN is_superfan THEN 1 ELSE 0 END), 0) AS superfans
		FROM fan_relationships
		WHERE creator_id = ? AND is_following = ?
	`
	if err := q.get(ctx, &counts, query, creatorID, true); err != nil {
		return counts, fmt.Errorf("count fans for creator %d: %w", creatorID, err)
	}
	return counts, nil
}
