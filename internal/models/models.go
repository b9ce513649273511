package models

import (
	"database/sql"
	"time"
)

// We use 'db' tags for sqlx to map the snake_case columns onto our Go fields,
// and 'json' tags for the API payloads.

// ChargeKind is the shape of a monetizable action.
type ChargeKind string

const (
	KindTip          ChargeKind = "tip"
	KindSubscription ChargeKind = "subscription"
	KindSponsorship  ChargeKind = "sponsorship"
)

// ChargeStatus mirrors the processor confirmation we observed for a charge.
type ChargeStatus string

const (
	StatusPending   ChargeStatus = "pending"
	StatusSucceeded ChargeStatus = "succeeded"
	StatusFailed    ChargeStatus = "failed"
	StatusCanceled  ChargeStatus = "canceled"
)

// Terminal reports whether no further transition is expected.
func (s ChargeStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Creator represents a creator's public profile and overlay settings.
type Creator struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	Username          string    `db:"username" json:"username"`
	DisplayName       string    `db:"display_name" json:"display_name"`
	WidgetSecretToken string    `db:"widget_secret_token" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Charge is one tip, subscription payment or sponsorship payment.
type Charge struct {
	ID                int64         `db:"id" json:"id"`
	PayerID           int64         `db:"payer_id" json:"payer_id"`
	PayeeID           int64         `db:"payee_id" json:"payee_id"`
	AmountCents       int64         `db:"amount_cents" json:"amount_cents"`
	Kind              ChargeKind    `db:"kind" json:"kind"`
	Status            ChargeStatus  `db:"status" json:"status"`
	ExternalReference string        `db:"external_reference" json:"external_reference"`
	CorrelationID     string        `db:"correlation_id" json:"correlation_id"`
	TierID            sql.NullInt64 `db:"tier_id" json:"-"`
	PackageID         sql.NullInt64 `db:"package_id" json:"-"`
	SupporterName     string        `db:"supporter_name" json:"supporter_name"`
	Message           string        `db:"message" json:"message,omitempty"`
	CreatorCents      int64         `db:"creator_cents" json:"creator_cents"`
	PlatformCents     int64         `db:"platform_cents" json:"platform_cents"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	FinalizedAt       sql.NullTime  `db:"finalized_at" json:"-"`
	RecurringID       string        `db:"recurring_id" json:"recurring_id,omitempty"`
}

// SubscriptionTier is one recurring support level offered by a creator.
type SubscriptionTier struct {
	ID               int64    `db:"id" json:"id"`
	CreatorID        int64    `db:"creator_id" json:"creator_id"`
	Name             string   `db:"name" json:"name"`
	PriceCents       int64    `db:"price_cents" json:"price_cents"`
	Benefits         []string `db:"-" json:"benefits"`
	BenefitsJSON     string   `db:"benefits" json:"-"`
	ExternalPriceRef string   `db:"external_price_ref" json:"external_price_ref"`
	Active           bool     `db:"active" json:"active"`
}

// SponsorshipPackage is a one-time sponsorship offer with a minimum price.
type SponsorshipPackage struct {
	ID         int64  `db:"id" json:"id"`
	CreatorID  int64  `db:"creator_id" json:"creator_id"`
	Name       string `db:"name" json:"name"`
	PriceCents int64  `db:"price_cents" json:"price_cents"`
	Active     bool   `db:"active" json:"active"`
}

// FanRelationship is keyed by (FanID, CreatorID).
type FanRelationship struct {
	FanID                int64     `db:"fan_id" json:"fan_id"`
	CreatorID            int64     `db:"creator_id" json:"creator_id"`
	Since                time.Time `db:"since" json:"since"`
	IsFollowing          bool      `db:"is_following" json:"is_following"`
	IsSuperfan           bool      `db:"is_superfan" json:"is_superfan"`
	CumulativeSpendCents int64     `db:"cumulative_spend_cents" json:"cumulative_spend_cents"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileViewEvent is written at most once per (ProfileID, ViewerID, DayDate).
type ProfileViewEvent struct {
	ProfileID int64  `db:"profile_id" json:"profile_id"`
	ViewerID  int64  `db:"viewer_id" json:"viewer_id"`
	DayDate   string `db:"day_date" json:"day_date"`
	UserAgent string `db:"user_agent" json:"user_agent"`
}

// CreatorEarnings is the creator-facing running total of succeeded charges.
type CreatorEarnings struct {
	CreatorID        int64 `db:"creator_id" json:"creator_id"`
	GrossCents       int64 `db:"gross_cents" json:"gross_cents"`
	CreatorCents     int64 `db:"creator_cents" json:"creator_cents"`
	PlatformCents    int64 `db:"platform_cents" json:"platform_cents"`
	SupporterCharges int64 `db:"supporter_charges" json:"supporter_charges"`
}

// FanCounts is derived from fan_relationships rows, never stored.
type FanCounts struct {
	Fans      int64 `db:"fans" json:"fans"`
	Superfans int64 `db:"superfans" json:"superfans"`
}
