package checkout

import "racer-platform/internal/models"

// Payload is the kind-specific part of a checkout. The set of implementations
// is closed: TipPayload, SubscriptionPayload and SponsorshipPayload.
type Payload interface {
	Kind() models.ChargeKind
	isPayload()
}

// TipPayload is a one-time amount chosen by the fan.
type TipPayload struct {
	DisplayName string
	Message     string
}

// SubscriptionPayload buys a tier; the price comes from the tier, not the request.
type SubscriptionPayload struct {
	TierID int64
}

// SponsorshipPayload buys a package at or above its listed price.
type SponsorshipPayload struct {
	PackageID int64
	Note      string
}

func (TipPayload) Kind() models.ChargeKind          { return models.KindTip }
func (SubscriptionPayload) Kind() models.ChargeKind { return models.KindSubscription }
func (SponsorshipPayload) Kind() models.ChargeKind  { return models.KindSponsorship }

func (TipPayload) isPayload()          {}
func (SubscriptionPayload) isPayload() {}
func (SponsorshipPayload) isPayload()  {}
