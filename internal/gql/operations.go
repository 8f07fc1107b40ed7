package gql

import "fmt"

// DefaultPageSize is the catalog page size the portal's own client requests.
const DefaultPageSize = 999

const currentUserQuery = `query currentUser {
  currentUser {
    isSignedIn
    isAmazonPrime
    isTwitchPrime
  }
}
`

const itemsQuery = `query OffersContext_Offers_And_Items($dateOverride: Time, $pageSize: Int) {
  inGameLoot: items(collectionType: LOOT, dateOverride: $dateOverride, pageSize: $pageSize) {
    items {
      ...Item
      __typename
    }
    __typename
  }
}

fragment Item on Item {
  id
  isDirectEntitlement
  requiresLinkBeforeClaim
  grantsCode
  isDeepLink
  isFGWP
  offers {
    ...Item_Offer
    __typename
  }
  game {
    ...Game
    __typename
  }
  __typename
}

fragment Item_Offer on Offer {
  id
  offerSelfConnection {
    eligibility {
      ...Item_Offer_Eligibility
      __typename
    }
    __typename
  }
  __typename
}

fragment Item_Offer_Eligibility on OfferEligibility {
  isClaimed
  canClaim
  missingRequiredAccountLink
}

fragment Game on GameV2 {
  id
  assets {
    title
    publisher
  }
}
`

const primeOffersQuery = `query OffersContext_Offers($dateOverride: Time) {
  primeOffers(dateOverride: $dateOverride) {
    id
    title
    deliveryMethod
    content {
      externalURL
      publisher
    }
    self {
      eligibility {
        canClaim
        isClaimed
        missingRequiredAccountLink
      }
    }
    linkedJourney {
      offers {
        id
        self {
          eligibility {
            canClaim
            isClaimed
            missingRequiredAccountLink
          }
        }
      }
    }
  }
}
`

const placeOrdersMutation = `fragment Place_Orders_Payload_Order_Information on OfferOrderInformation {
  catalogOfferId
  claimCode
  entitledAccountId
  entitledAccountName
  id
  orderDate
  orderState
  __typename
}

mutation placeOrdersDetailPage($input: PlaceOrdersInput!) {
  placeOrders(input: $input) {
    error {
      code
      __typename
    }
    orderInformation {
      ...Place_Orders_Payload_Order_Information
      __typename
    }
    __typename
  }
}
`

func currentUserRequest() Request {
	return Request{OperationName: "currentUser", Query: currentUserQuery}
}

func itemsRequest(pageSize int) Request {
	return Request{
		OperationName: "OffersContext_Offers_And_Items",
		Variables:     map[string]any{"pageSize": pageSize},
		Query:         itemsQuery,
	}
}

func primeOffersRequest() Request {
	return Request{OperationName: "OffersContext_Offers", Query: primeOffersQuery}
}

// placeOrderRequest orders offerID with an attribution payload that embeds it.
func placeOrderRequest(offerID string) Request {
	return Request{
		OperationName: "placeOrdersDetailPage",
		Variables: map[string]any{
			"input": map[string]any{
				"offerIds":           []string{offerID},
				"attributionChannel": fmt.Sprintf(`{"eventId":"ItemDetailRootPage:%s","page":"ItemDetailPage"}`, offerID),
			},
		},
		Query: placeOrdersMutation,
	}
}
