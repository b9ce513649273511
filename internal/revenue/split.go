// Package revenue divides a gross charge between the creator and the platform.
package revenue

// PlatformPercent is the platform's share of every charge.
const PlatformPercent = 20

// Split is a gross amount broken down into creator and platform shares.
type Split struct {
	GrossCents    int64 `json:"gross_cents"`
	CreatorCents  int64 `json:"creator_cents"`
	PlatformCents int64 `json:"platform_cents"`
}

// Compute splits grossCents. The platform share is floored and the creator gets
// the remainder, so CreatorCents+PlatformCents always equals GrossCents.
// Earnings previews and settlement bookkeeping must both go through here.
func Compute(grossCents int64) Split {
	if grossCents < 0 {
		grossCents = 0
	}
	// Split whole hundreds from the remainder so large amounts cannot overflow.
	platform := grossCents/100*PlatformPercent + grossCents%100*PlatformPercent/100
	return Split{
		GrossCents:    grossCents,
		CreatorCents:  grossCents - platform,
		PlatformCents: platform,
	}
}
