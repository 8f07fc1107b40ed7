package claim

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/gql"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/logging"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/offer"
)

// Orderer places a claim order for one offer id.
type Orderer interface {
	PlaceOrder(ctx context.Context, offerID string) error
}

// Protocol claims offers with the placeOrders mutation. It holds no
// per-claim state, so claims may run concurrently.
type Protocol struct {
	orders      Orderer
	log         *logging.Logger
	concurrency int
}

// NewProtocol returns a protocol driver. concurrency below 1 is treated as 1.
func NewProtocol(orders Orderer, log *logging.Logger, concurrency int) *Protocol {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Protocol{orders: orders, log: log, concurrency: concurrency}
}

func (p *Protocol) Name() string     { return "protocol" }
func (p *Protocol) Concurrency() int { return p.concurrency }
func (p *Protocol) Close() error     { return nil }

func (p *Protocol) ClaimExternal(ctx context.Context, o offer.Offer) offer.ClaimResult {
	return p.order(ctx, o)
}

func (p *Protocol) ClaimItem(ctx context.Context, o offer.Offer) offer.ClaimResult {
	return p.order(ctx, o)
}

// ClaimDirect places one order per offer, up to Concurrency at a time. A
// failed order never cancels its siblings.
func (p *Protocol) ClaimDirect(ctx context.Context, offers []offer.Offer) []offer.ClaimResult {
	results := make([]offer.ClaimResult, len(offers))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, o := range offers {
		g.Go(func() error {
			results[i] = p.order(ctx, o)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// order places one order. A panic while ordering becomes a Failed result,
// since ClaimDirect runs it on goroutines the caller cannot recover.
func (p *Protocol) order(ctx context.Context, o offer.Offer) (res offer.ClaimResult) {
	log := p.log.With(zap.String("offer", o.Title), zap.String("id", o.ID))
	defer func() {
		if r := recover(); r != nil {
			log.To(logging.Both).Error("Order panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = offer.Failure(o, fmt.Sprintf("panic: %v", r))
		}
	}()
	log.To(logging.Both).Info("Collecting offer")

	err := p.orders.PlaceOrder(ctx, o.ID)
	var oe *gql.OrderError
	switch {
	case err == nil:
		log.To(logging.Both).Info("Claimed offer")
		return offer.Result(o, offer.Claimed)
	case errors.As(err, &oe):
		log.To(logging.Both).Error("Order rejected", zap.String("code", oe.Code))
		return offer.Failure(o, oe.Code)
	default:
		log.To(logging.Both).Error("Order failed", zap.Error(err))
		return offer.Failure(o, err.Error())
	}
}
