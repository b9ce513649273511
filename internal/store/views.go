package store

import (
	"context"
	"errors"
	"fmt"

	"racer-platform/internal/models"
)

// InsertView stores a view event unless one already exists for the same
// profile, viewer and day. It reports whether a new row was written.
// Errors that mean the table cannot be used at all wrap ErrUnavailable.
func (q queries) InsertView(ctx context.Context, ev models.ProfileViewEvent) (bool, error) {
	query := `
		INSERT INTO profile_views (profile_id, viewer_id, day_date, user_agent)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile_id, viewer_id, day_date) DO NOTHING
	`
	n, err := q.exec(ctx, query, ev.ProfileID, ev.ViewerID, ev.DayDate, ev.UserAgent)
	if err != nil {
		return false, fmt.Errorf("insert view %d by %d: %w", ev.ProfileID, ev.ViewerID, classify(err))
	}
	return n == 1, nil
}

// CountViews returns the number of de-duplicated view events for a profile.
func (q queries) CountViews(ctx context.Context, profileID int64) (int64, error) {
	var n int64
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM profile_views WHERE profile_id = ?`, profileID); err != nil {
		return 0, fmt.Errorf("count views for profile %d: %w", profileID, classify(err))
	}
	return n, nil
}

// ViewAggregate reads the legacy per-profile counter, zero when absent.
func (q queries) ViewAggregate(ctx context.Context, profileID int64) (int64, error) {
	var n int64
	err := q.get(ctx, &n, `SELECT view_count FROM profile_view_counts WHERE profile_id = ?`, profileID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read view aggregate for profile %d: %w", profileID, err)
	}
	return n, nil
}

// SetViewAggregate overwrites the legacy counter.
func (q queries) SetViewAggregate(ctx context.Context, profileID, count int64) error {
	query := `
		INSERT INTO profile_view_counts (profile_id, view_count) VALUES (?, ?)
		ON CONFLICT (profile_id) DO UPDATE SET view_count = excluded.view_count
	`
	if _, err := q.exec(ctx, query, profileID, count); err != nil {
		return fmt.Errorf("write view aggregate for profile %d: %w", profileID, err)
	}
	return nil
}
