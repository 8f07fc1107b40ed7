// Package offer holds the normalized offer model, the claim categories and
// the pure classifier that maps one to the other.
package offer

// DeliveryMethod describes how an offer is fulfilled.
type DeliveryMethod string

const (
	DeliveryExternal DeliveryMethod = "EXTERNAL_OFFER"
	DeliveryDirect   DeliveryMethod = "DIRECT_ENTITLEMENT"
	DeliveryInGame   DeliveryMethod = "IN_GAME_LOOT"
	DeliveryUnknown  DeliveryMethod = "UNKNOWN"
)

// ParseDeliveryMethod maps a wire value to a DeliveryMethod. Unrecognized
// values become DeliveryUnknown.
func ParseDeliveryMethod(s string) DeliveryMethod {
	switch m := DeliveryMethod(s); m {
	case DeliveryExternal, DeliveryDirect, DeliveryInGame:
		return m
	default:
		return DeliveryUnknown
	}
}

// Eligibility is the per-account claim state the service reports for an
// offer or sub-offer.
type Eligibility struct {
	CanClaim                   bool
	IsClaimed                  bool
	MissingRequiredAccountLink bool
}

// SubOffer is one entry of a linked journey. Self is nil when the service
// returned no eligibility block for it.
type SubOffer struct {
	ID   string
	Self *Eligibility
}

// Content carries the external claim page and publisher.
type Content struct {
	ExternalURL string
	Publisher   string
}

// Offer is one redeemable entitlement, normalized from either catalog shape.
// At most one of Self and LinkedJourney is populated.
type Offer struct {
	ID             string
	Title          string
	DeliveryMethod DeliveryMethod
	Self           *Eligibility
	LinkedJourney  []SubOffer
	Content        *Content
}

// Publisher returns the offer's publisher, or "" without content.
func (o Offer) Publisher() string {
	if o.Content == nil {
		return ""
	}
	return o.Content.Publisher
}

// ExternalURL returns the offer's claim page, or "" without content.
func (o Offer) ExternalURL() string {
	if o.Content == nil {
		return ""
	}
	return o.Content.ExternalURL
}
