// Package fanstatus tracks the Visitor, Fan and Superfan state of every
// (fan, creator) pair.
//
// Follow and unfollow are idempotent and fan counts are always derived from the
// relationship rows, so repeated clicks can neither double count nor go negative.
// Every mutation is followed by a fresh read of the state it changed.
package fanstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"racer-platform/internal/metrics"
	"racer-platform/internal/models"
	"racer-platform/internal/store"
)

// DefaultSuperfanThresholdCents is $50 of cumulative support.
const DefaultSuperfanThresholdCents = 5000

// ErrInvalidAmount is returned for non-positive spend.
var ErrInvalidAmount = errors.New("fanstatus: spend must be positive")

// ErrSelfRelationship is returned when the fan is the account that owns the
// creator profile.
var ErrSelfRelationship = errors.New("fanstatus: fan and creator are the same account")

// ErrUnknownCreator is returned when the creator row does not exist.
var ErrUnknownCreator = errors.New("fanstatus: creator not found")

// State is the relationship level of a fan towards a creator.
type State string

const (
	Visitor  State = "visitor"
	Fan      State = "fan"
	Superfan State = "superfan"
)

// Status is the read model returned to callers.
type Status struct {
	FanID                int64 `json:"fan_id"`
	CreatorID            int64 `json:"creator_id"`
	State                State `json:"state"`
	IsFollowing          bool  `json:"is_following"`
	IsSuperfan           bool  `json:"is_superfan"`
	CumulativeSpendCents int64 `json:"cumulative_spend_cents"`
}

// FollowResult carries the post-write status and the re-read fan count.
// Confirmed is false when the count could not be re-read; FanCount then holds
// the last known value and the client should keep its pending state.
type FollowResult struct {
	Status    Status           `json:"status"`
	Changed   bool             `json:"changed"`
	FanCounts models.FanCounts `json:"fan_counts"`
	Confirmed bool             `json:"confirmed"`
}

// Repository is satisfied by *store.Store and *store.Tx.
//
// Fan ids are user account ids; creator ids are creator row ids. The two are
// linked through Creator.UserID.
type Repository interface {
	CreatorByID(ctx context.Context, id int64) (*models.Creator, error)
	Relationship(ctx context.Context, fanID, creatorID int64) (*models.FanRelationship, error)
	SaveRelationship(ctx context.Context, rel *models.FanRelationship) error
	AddSpend(ctx context.Context, fanID, creatorID, amountCents int64, at time.Time) error
	FanCounts(ctx context.Context, creatorID int64) (models.FanCounts, error)
}

// Service applies follow, unfollow and spend transitions and serves fan counts.
type Service struct {
	repo       Repository
	threshold  int64
	logger     zerolog.Logger
	metrics    *metrics.Recorder
	now        func() time.Time
	lastCounts *xsync.Map[int64, models.FanCounts]
}

func New(repo Repository, thresholdCents int64, logger zerolog.Logger, rec *metrics.Recorder) *Service {
	if thresholdCents <= 0 {
		thresholdCents = DefaultSuperfanThresholdCents
	}
	return &Service{
		repo:       repo,
		threshold:  thresholdCents,
		logger:     logger,
		metrics:    rec,
		now:        func() time.Time { return time.Now().UTC() },
		lastCounts: xsync.NewMap[int64, models.FanCounts](),
	}
}

// WithRepository returns a copy bound to repo, typically a *store.Tx, so the
// transitions commit together with the caller's other writes.
func (s *Service) WithRepository(repo Repository) *Service {
	cp := *s
	cp.repo = repo
	return &cp
}

// Threshold is the cumulative spend that promotes a fan to superfan.
func (s *Service) Threshold() int64 {
	return s.threshold
}

func (s *Service) GetStatus(ctx context.Context, fanID, creatorID int64) (Status, error) {
	rel, err := s.relationship(ctx, fanID, creatorID)
	if err != nil {
		return Status{}, err
	}
	return toStatus(rel), nil
}

func (s *Service) Follow(ctx context.Context, fanID, creatorID int64) (*FollowResult, error) {
	return s.setFollowing(ctx, fanID, creatorID, true)
}

func (s *Service) Unfollow(ctx context.Context, fanID, creatorID int64) (*FollowResult, error) {
	return s.setFollowing(ctx, fanID, creatorID, false)
}

func (s *Service) setFollowing(ctx context.Context, fanID, creatorID int64, follow bool) (*FollowResult, error) {
	if err := s.checkOwner(ctx, fanID, creatorID); err != nil {
		return nil, err
	}
	rel, err := s.relationship(ctx, fanID, creatorID)
	if err != nil {
		return nil, err
	}

	changed := rel.IsFollowing != follow
	if changed {
		now := s.now()
		if rel.Since.IsZero() {
			rel.Since = now
		}
		rel.IsFollowing = follow
		rel.UpdatedAt = now
		s.evaluate(rel)
		if err := s.repo.SaveRelationship(ctx, rel); err != nil {
			return nil, err
		}
		action := "unfollow"
		if follow {
			action = "follow"
		}
		s.metrics.FollowChanged(action)
	}

	status, err := s.GetStatus(ctx, fanID, creatorID)
	if err != nil {
		// The write stands; report what we wrote.
		s.logger.Warn().Err(err).Int64("fan_id", fanID).Int64("creator_id", creatorID).
			Msg("re-read of fan status failed after follow change")
		status = toStatus(rel)
	}

	counts, stale := s.Counts(ctx, creatorID)
	return &FollowResult{
		Status:    status,
		Changed:   changed,
		FanCounts: counts,
		Confirmed: !stale,
	}, nil
}

// RecordSpend adds a succeeded charge to the relationship. The first support
// from a fan with no relationship auto-follows; a fan who explicitly unfollowed
// stays unfollowed.
func (s *Service) RecordSpend(ctx context.Context, fanID, creatorID, amountCents int64) (Status, error) {
	if amountCents <= 0 {
		return Status{}, ErrInvalidAmount
	}
	if err := s.checkOwner(ctx, fanID, creatorID); err != nil {
		return Status{}, err
	}

	_, err := s.repo.Relationship(ctx, fanID, creatorID)
	firstSupport := errors.Is(err, store.ErrNotFound)
	if err != nil && !firstSupport {
		return Status{}, err
	}

	now := s.now()
	if err := s.repo.AddSpend(ctx, fanID, creatorID, amountCents, now); err != nil {
		return Status{}, err
	}

	rel, err := s.repo.Relationship(ctx, fanID, creatorID)
	if err != nil {
		return Status{}, fmt.Errorf("re-read relationship after spend: %w", err)
	}
	before := *rel
	if firstSupport {
		rel.IsFollowing = true
	}
	s.evaluate(rel)
	if rel.IsFollowing != before.IsFollowing || rel.IsSuperfan != before.IsSuperfan {
		rel.UpdatedAt = now
		if err := s.repo.SaveRelationship(ctx, rel); err != nil {
			return Status{}, err
		}
		if firstSupport {
			s.metrics.FollowChanged("auto_follow")
		}
	}

	status, err := s.GetStatus(ctx, fanID, creatorID)
	if err != nil {
		return Status{}, fmt.Errorf("re-read status after spend: %w", err)
	}
	return status, nil
}

// Counts reads the creator's follower totals. When the read fails the last
// known counts (or zeros) are returned with stale set.
func (s *Service) Counts(ctx context.Context, creatorID int64) (models.FanCounts, bool) {
	counts, err := s.repo.FanCounts(ctx, creatorID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("creator_id", creatorID).Msg("fan count read failed, serving last known")
		last, _ := s.lastCounts.Load(creatorID)
		return last, true
	}
	s.lastCounts.Store(creatorID, counts)
	return counts, false
}

// checkOwner rejects a relationship between a creator and its own account.
func (s *Service) checkOwner(ctx context.Context, fanID, creatorID int64) error {
	creator, err := s.repo.CreatorByID(ctx, creatorID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownCreator
	}
	if err != nil {
		return err
	}
	if creator.UserID == fanID {
		return ErrSelfRelationship
	}
	return nil
}

func (s *Service) relationship(ctx context.Context, fanID, creatorID int64) (*models.FanRelationship, error) {
	rel, err := s.repo.Relationship(ctx, fanID, creatorID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.FanRelationship{FanID: fanID, CreatorID: creatorID}, nil
	}
	return rel, err
}

// evaluate applies the superfan rule: following and at or above the threshold.
func (s *Service) evaluate(rel *models.FanRelationship) {
	rel.IsSuperfan = rel.IsFollowing && rel.CumulativeSpendCents >= s.threshold
}

func toStatus(rel *models.FanRelationship) Status {
	st := Status{
		FanID:                rel.FanID,
		CreatorID:            rel.CreatorID,
		State:                Visitor,
		IsFollowing:          rel.IsFollowing,
		IsSuperfan:           rel.IsSuperfan,
		CumulativeSpendCents: rel.CumulativeSpendCents,
	}
	switch {
	case rel.IsFollowing && rel.IsSuperfan:
		st.State = Superfan
	case rel.IsFollowing:
		st.State = Fan
	}
	return st
}
