// Package claim holds the claim drivers: the UI driver that walks the claim
// modal in a real browser, and the protocol driver that places orders over
// the GraphQL endpoint. The orchestrator only sees the Driver interface.
package claim

import (
	"context"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/offer"
)

// Driver claims offers. Implementations never return errors for individual
// offers: every failure is folded into the ClaimResult.
type Driver interface {
	// Name identifies the backend in logs and status output.
	Name() string
	// Concurrency is the number of claims the driver tolerates in flight.
	Concurrency() int
	ClaimExternal(ctx context.Context, o offer.Offer) offer.ClaimResult
	// ClaimDirect claims a batch and returns one result per input offer,
	// in input order.
	ClaimDirect(ctx context.Context, offers []offer.Offer) []offer.ClaimResult
	Close() error
}

// ItemClaimer is implemented by drivers that can claim in-game loot items.
type ItemClaimer interface {
	ClaimItem(ctx context.Context, o offer.Offer) offer.ClaimResult
}

// Dumper is implemented by drivers that can capture the landing page markup
// for debugging.
type Dumper interface {
	Dump(ctx context.Context) (string, error)
}
