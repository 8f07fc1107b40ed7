package gql

import (
	"context"
	"encoding/json"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/offer"
)

// Shape selects which catalog query is issued.
type Shape int

const (
	// ShapeItems is the newer response: inGameLoot.items wrapping offers.
	ShapeItems Shape = iota
	// ShapeLegacy is the older response with top-level primeOffers.
	ShapeLegacy
)

type wireEligibility struct {
	CanClaim                   bool `json:"canClaim"`
	IsClaimed                  bool `json:"isClaimed"`
	MissingRequiredAccountLink bool `json:"missingRequiredAccountLink"`
}

type wireSelf struct {
	Eligibility *wireEligibility `json:"eligibility"`
}

type legacyOffer struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	DeliveryMethod string    `json:"deliveryMethod"`
	Self           *wireSelf `json:"self"`
	LinkedJourney  *struct {
		Offers []struct {
			ID   string    `json:"id"`
			Self *wireSelf `json:"self"`
		} `json:"offers"`
	} `json:"linkedJourney"`
	Content *struct {
		ExternalURL string `json:"externalURL"`
		Publisher   string `json:"publisher"`
	} `json:"content"`
}

type item struct {
	ID                  string `json:"id"`
	IsDirectEntitlement bool   `json:"isDirectEntitlement"`
	IsFGWP              bool   `json:"isFGWP"`
	Offers              []struct {
		ID                  string    `json:"id"`
		OfferSelfConnection *wireSelf `json:"offerSelfConnection"`
	} `json:"offers"`
	Game *struct {
		Assets struct {
			Title     string `json:"title"`
			Publisher string `json:"publisher"`
		} `json:"assets"`
	} `json:"game"`
}

type catalogData struct {
	PrimeOffers *[]legacyOffer `json:"primeOffers"`
	InGameLoot  *struct {
		Items *[]item `json:"items"`
	} `json:"inGameLoot"`
}

// Catalog fetches the offer catalog.
type Catalog struct {
	client   *Client
	shape    Shape
	pageSize int
}

// NewCatalog returns a Catalog issuing the query for shape.
func NewCatalog(c *Client, shape Shape, pageSize int) *Catalog {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Catalog{client: c, shape: shape, pageSize: pageSize}
}

// Fetch returns the current offers normalized to offer.Offer. A response
// without the expected top-level field is a *ProtocolError.
func (c *Catalog) Fetch(ctx context.Context) ([]offer.Offer, error) {
	req := itemsRequest(c.pageSize)
	if c.shape == ShapeLegacy {
		req = primeOffersRequest()
	}
	var data json.RawMessage
	if err := c.client.Do(ctx, req, &data); err != nil {
		return nil, err
	}
	return DecodeOffers(data)
}

// DecodeOffers normalizes a catalog data object of either shape.
func DecodeOffers(data []byte) ([]offer.Offer, error) {
	var d catalogData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &ProtocolError{Op: "catalog", Msg: "decode data", Err: err}
	}
	switch {
	case d.PrimeOffers != nil:
		return fromLegacy(*d.PrimeOffers), nil
	case d.InGameLoot != nil && d.InGameLoot.Items != nil:
		return fromItems(*d.InGameLoot.Items), nil
	default:
		return nil, &ProtocolError{Op: "catalog", Msg: "response lacks primeOffers and inGameLoot.items"}
	}
}

func eligibility(s *wireSelf) *offer.Eligibility {
	if s == nil || s.Eligibility == nil {
		return nil
	}
	return &offer.Eligibility{
		CanClaim:                   s.Eligibility.CanClaim,
		IsClaimed:                  s.Eligibility.IsClaimed,
		MissingRequiredAccountLink: s.Eligibility.MissingRequiredAccountLink,
	}
}

func fromLegacy(in []legacyOffer) []offer.Offer {
	out := make([]offer.Offer, 0, len(in))
	for _, lo := range in {
		o := offer.Offer{
			ID:             lo.ID,
			Title:          lo.Title,
			DeliveryMethod: offer.ParseDeliveryMethod(lo.DeliveryMethod),
		}
		if lo.LinkedJourney != nil && len(lo.LinkedJourney.Offers) > 0 {
			for _, sub := range lo.LinkedJourney.Offers {
				o.LinkedJourney = append(o.LinkedJourney, offer.SubOffer{ID: sub.ID, Self: eligibility(sub.Self)})
			}
		} else {
			o.Self = eligibility(lo.Self)
		}
		if lo.Content != nil {
			o.Content = &offer.Content{ExternalURL: lo.Content.ExternalURL, Publisher: lo.Content.Publisher}
		}
		out = append(out, o)
	}
	return out
}

func fromItems(in []item) []offer.Offer {
	out := make([]offer.Offer, 0, len(in))
	for _, it := range in {
		o := offer.Offer{
			ID:             it.ID,
			DeliveryMethod: offer.DeliveryInGame,
		}
		if it.IsDirectEntitlement || it.IsFGWP {
			o.DeliveryMethod = offer.DeliveryDirect
		}
		if len(it.Offers) > 0 {
			o.ID = it.Offers[0].ID
			o.Self = eligibility(it.Offers[0].OfferSelfConnection)
		}
		if it.Game != nil {
			o.Title = it.Game.Assets.Title
			o.Content = &offer.Content{Publisher: it.Game.Assets.Publisher}
		}
		out = append(out, o)
	}
	return out
}
