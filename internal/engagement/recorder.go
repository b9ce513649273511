// Package engagement records profile views at most once per viewer per day.
package engagement

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"racer-platform/internal/metrics"
	"racer-platform/internal/models"
	"racer-platform/internal/store"
)

// Outcome says what RecordView did. Callers never see an error.
type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFallback  Outcome = "fallback"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

const dayLayout = "2006-01-02"

// ViewStore is satisfied by *store.Store.
type ViewStore interface {
	InsertView(ctx context.Context, ev models.ProfileViewEvent) (bool, error)
	CountViews(ctx context.Context, profileID int64) (int64, error)
	ViewAggregate(ctx context.Context, profileID int64) (int64, error)
	SetViewAggregate(ctx context.Context, profileID, count int64) error
}

// Recorder writes profile views and reads the displayed view totals.
type Recorder struct {
	store   ViewStore
	logger  zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

func NewRecorder(s ViewStore, logger zerolog.Logger, rec *metrics.Recorder) *Recorder {
	return &Recorder{
		store:   s,
		logger:  logger,
		metrics: rec,
		now:     time.Now,
	}
}

// RecordView stores one view of profileID by viewerID for the current UTC day.
// Both are account ids: a profile belongs to an account, not to a creator row.
//
// When the view table cannot be used the legacy per-profile counter is bumped
// instead with a plain read, increment, write. That path is not de-duplicated
// and not locked; it only exists to keep counting while the primary is down.
func (r *Recorder) RecordView(ctx context.Context, profileID, viewerID int64, userAgent string) Outcome {
	out := r.record(ctx, profileID, viewerID, userAgent)
	r.metrics.ViewRecorded(string(out))
	return out
}

func (r *Recorder) record(ctx context.Context, profileID, viewerID int64, userAgent string) Outcome {
	if viewerID <= 0 || profileID <= 0 || viewerID == profileID {
		return OutcomeSkipped
	}

	ev := models.ProfileViewEvent{
		ProfileID: profileID,
		ViewerID:  viewerID,
		DayDate:   r.now().UTC().Format(dayLayout),
		UserAgent: userAgent,
	}
	inserted, err := r.store.InsertView(ctx, ev)
	switch {
	case err == nil && inserted:
		return OutcomeRecorded
	case err == nil:
		return OutcomeDuplicate
	case !store.IsUnavailable(err):
		r.logger.Error().Err(err).Int64("profile_id", profileID).Msg("failed to record profile view")
		return OutcomeFailed
	}

	r.logger.Warn().Err(err).Int64("profile_id", profileID).
		Msg("view table unavailable, falling back to aggregate counter")

	count, err := r.store.ViewAggregate(ctx, profileID)
	if err != nil {
		r.logger.Error().Err(err).Int64("profile_id", profileID).Msg("failed to read view aggregate")
		return OutcomeFailed
	}
	if err := r.store.SetViewAggregate(ctx, profileID, count+1); err != nil {
		r.logger.Error().Err(err).Int64("profile_id", profileID).Msg("failed to write view aggregate")
		return OutcomeFailed
	}
	return OutcomeFallback
}

// ViewCount is the displayed total: unique events plus fallback increments.
// Read failures count as zero and set stale.
func (r *Recorder) ViewCount(ctx context.Context, profileID int64) (int64, bool) {
	stale := false
	unique, err := r.store.CountViews(ctx, profileID)
	if err != nil {
		r.logger.Warn().Err(err).Int64("profile_id", profileID).Msg("failed to count profile views")
		unique, stale = 0, true
	}
	legacy, err := r.store.ViewAggregate(ctx, profileID)
	if err != nil {
		r.logger.Warn().Err(err).Int64("profile_id", profileID).Msg("failed to read view aggregate")
		legacy, stale = 0, true
	}
	return unique + legacy, stale
}
