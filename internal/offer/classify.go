package offer

import "fmt"

// Category is the claim strategy an offer is routed to.
type Category int

const (
	NotClaimable Category = iota
	AlreadyClaimed
	ExternalClaimable
	DirectClaimable
	ItemClaimable // in-game loot, claimable through the protocol backend only
	AccountLinkRequired
)

// Categories lists every category in the order a pass handles them.
var Categories = []Category{
	NotClaimable,
	AlreadyClaimed,
	AccountLinkRequired,
	DirectClaimable,
	ExternalClaimable,
	ItemClaimable,
}

func (c Category) String() string {
	switch c {
	case NotClaimable:
		return "not claimable"
	case AlreadyClaimed:
		return "already claimed"
	case ExternalClaimable:
		return "external"
	case DirectClaimable:
		return "direct"
	case ItemClaimable:
		return "item"
	case AccountLinkRequired:
		return "account link required"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Assess returns the aggregate eligibility of o and whether o carries any
// eligibility data at all.
//
// For a linked journey every flag is the OR over the sub-offers: one claimed
// sub-offer marks the whole journey claimed even when siblings are not.
func Assess(o Offer) (Eligibility, bool) {
	if len(o.LinkedJourney) > 0 {
		var agg Eligibility
		for _, sub := range o.LinkedJourney {
			if sub.Self == nil {
				continue
			}
			agg.CanClaim = agg.CanClaim || sub.Self.CanClaim
			agg.IsClaimed = agg.IsClaimed || sub.Self.IsClaimed
			agg.MissingRequiredAccountLink = agg.MissingRequiredAccountLink || sub.Self.MissingRequiredAccountLink
		}
		return agg, true
	}
	if o.Self != nil {
		return *o.Self, true
	}
	return Eligibility{}, false
}

// Classify maps o to its claim category. It has no side effects.
func Classify(o Offer) Category {
	e, ok := Assess(o)
	if !ok {
		return NotClaimable
	}
	if e.IsClaimed {
		return AlreadyClaimed
	}
	if !e.CanClaim {
		if e.MissingRequiredAccountLink {
			return AccountLinkRequired
		}
		return NotClaimable
	}

	switch o.DeliveryMethod {
	case DeliveryExternal:
		return ExternalClaimable
	case DeliveryDirect:
		return DirectClaimable
	case DeliveryInGame:
		return ItemClaimable
	default:
		return NotClaimable
	}
}

// Partition groups offers by category, keeping catalog order within each.
func Partition(offers []Offer) map[Category][]Offer {
	out := make(map[Category][]Offer, len(Categories))
	for _, o := range offers {
		c := Classify(o)
		out[c] = append(out[c], o)
	}
	return out
}
