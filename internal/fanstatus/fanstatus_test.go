package fanstatus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racer-platform/internal/models"
	"racer-platform/internal/store"
	"racer-platform/internal/store/storetest"
)

const (
	fanID     = int64(1)
	creatorID = int64(7)
	// ownerID is the account behind creator row 7.
	ownerID = int64(70)
)

func newService(t *testing.T) (*Service, *store.Store) {
	db := storetest.Open(t)
	storetest.SeedCreator(t, db, creatorID, ownerID, "speedy", "widget-7")
	s := store.New(db)
	return New(s, DefaultSuperfanThresholdCents, zerolog.Nop(), nil), s
}

func TestUnknownPairIsVisitor(t *testing.T) {
	svc, _ := newService(t)
	st, err := svc.GetStatus(context.Background(), fanID, creatorID)
	require.NoError(t, err)
	assert.Equal(t, Visitor, st.State)
	assert.False(t, st.IsFollowing)
	assert.False(t, st.IsSuperfan)
}

func TestFollowIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first, err := svc.Follow(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.True(t, first.Confirmed)
	assert.Equal(t, Fan, first.Status.State)
	assert.Equal(t, int64(1), first.FanCounts.Fans)

	second, err := svc.Follow(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, int64(1), second.FanCounts.Fans, "double follow must not double count")
}

func TestUnfollowWhenNotFollowingIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	res, err := svc.Unfollow(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, int64(0), res.FanCounts.Fans)

	_, err = svc.Follow(ctx, fanID, creatorID)
	require.NoError(t, err)
	res, err = svc.Unfollow(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, Visitor, res.Status.State)

	res, err = svc.Unfollow(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, int64(0), res.FanCounts.Fans, "counts never go negative")
}

func TestSelfFollowRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Follow(ctx, ownerID, creatorID)
	assert.ErrorIs(t, err, ErrSelfRelationship)
	_, err = svc.RecordSpend(ctx, ownerID, creatorID, 500)
	assert.ErrorIs(t, err, ErrSelfRelationship)
}

func TestUserWhoseIDMatchesCreatorRowCanFollow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	// User 7 is not the owner of creator row 7.
	res, err := svc.Follow(ctx, creatorID, creatorID)
	require.NoError(t, err)
	assert.Equal(t, Fan, res.Status.State)

	st, err := svc.RecordSpend(ctx, creatorID, creatorID, 6000)
	require.NoError(t, err)
	assert.Equal(t, Superfan, st.State)
}

func TestFollowUnknownCreator(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Follow(context.Background(), fanID, 404)
	assert.ErrorIs(t, err, ErrUnknownCreator)
}

func TestFirstSpendAutoFollows(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	st, err := svc.RecordSpend(ctx, fanID, creatorID, 1000)
	require.NoError(t, err)
	assert.Equal(t, Fan, st.State)
	assert.Equal(t, int64(1000), st.CumulativeSpendCents)

	st, err = svc.RecordSpend(ctx, fanID, creatorID, 4000)
	require.NoError(t, err)
	assert.Equal(t, Superfan, st.State, "crossing the threshold promotes")
	assert.Equal(t, int64(5000), st.CumulativeSpendCents)

	counts, stale := svc.Counts(ctx, creatorID)
	assert.False(t, stale)
	assert.Equal(t, models.FanCounts{Fans: 1, Superfans: 1}, counts)
}

func TestSpendAfterUnfollowDoesNotRefollow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Follow(ctx, fanID, creatorID)
	require.NoError(t, err)
	_, err = svc.Unfollow(ctx, fanID, creatorID)
	require.NoError(t, err)

	st, err := svc.RecordSpend(ctx, fanID, creatorID, 6000)
	require.NoError(t, err)
	assert.Equal(t, Visitor, st.State)
	assert.Equal(t, int64(6000), st.CumulativeSpendCents)
}

func TestUnfollowDropsSuperfanAndRefollowRestoresIt(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.RecordSpend(ctx, fanID, creatorID, 7500)
	require.NoError(t, err)

	res, err := svc.Unfollow(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.False(t, res.Status.IsSuperfan)
	assert.Equal(t, int64(7500), res.Status.CumulativeSpendCents, "spend is retained")

	res, err = svc.Follow(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.Equal(t, Superfan, res.Status.State)
}

func TestRecordSpendRejectsNonPositive(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.RecordSpend(context.Background(), fanID, creatorID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.RecordSpend(context.Background(), fanID, creatorID, -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordSpendInsideTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *store.Tx) error {
		_, err := svc.WithRepository(tx).RecordSpend(ctx, fanID, creatorID, 2500)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	st, err := svc.GetStatus(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.Equal(t, Visitor, st.State)
	assert.Zero(t, st.CumulativeSpendCents)
}

// flakyCounts fails fan count reads after the first success.
type flakyCounts struct {
	Repository
	calls int
}

func (f *flakyCounts) FanCounts(ctx context.Context, creatorID int64) (models.FanCounts, error) {
	f.calls++
	if f.calls > 1 {
		return models.FanCounts{}, errors.New("connection reset")
	}
	return f.Repository.FanCounts(ctx, creatorID)
}

func TestFollowWithFailedRefreshStillApplies(t *testing.T) {
	ctx := context.Background()
	base, s := newService(t)
	svc := base.WithRepository(&flakyCounts{Repository: s})

	res, err := svc.Follow(ctx, fanID, creatorID)
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, int64(1), res.FanCounts.Fans)

	res, err = svc.Follow(ctx, 2, creatorID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Confirmed, "refresh failed, result stays pending")
	assert.Equal(t, int64(1), res.FanCounts.Fans, "last known count is served")

	rel, err := s.Relationship(ctx, 2, creatorID)
	require.NoError(t, err)
	assert.True(t, rel.IsFollowing, "primary write is not rolled back")
}

func TestCountsWithoutHistoryDefaultToZero(t *testing.T) {
	base, s := newService(t)
	f := &flakyCounts{Repository: s, calls: 1}
	svc := base.WithRepository(f)

	counts, stale := svc.Counts(context.Background(), 99)
	assert.True(t, stale)
	assert.Equal(t, models.FanCounts{}, counts)
}

func TestThresholdIsConfigurable(t *testing.T) {
	db := storetest.Open(t)
	storetest.SeedCreator(t, db, creatorID, ownerID, "speedy", "widget-7")
	svc := New(store.New(db), 100, zerolog.Nop(), nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	st, err := svc.RecordSpend(context.Background(), fanID, creatorID, 100)
	require.NoError(t, err)
	assert.Equal(t, Superfan, st.State)
	assert.Equal(t, int64(100), svc.Threshold())
}
