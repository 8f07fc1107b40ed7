// Package looter runs one claim pass: verify the session, fetch the
// catalog, classify every offer and dispatch the claimable ones to the
// configured driver.
package looter

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/claim"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/codes"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/logging"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/offer"
)

// AuthGate confirms the session may claim. *gql.AuthGate satisfies this.
type AuthGate interface {
	Verify(ctx context.Context) error
}

// Catalog lists the current offers. *gql.Catalog satisfies this.
type Catalog interface {
	Fetch(ctx context.Context) ([]offer.Offer, error)
}

// Summary describes one finished pass.
type Summary struct {
	PassID       string
	Backend      string
	StartedAt    time.Time
	FinishedAt   time.Time
	Categories   map[offer.Category]int
	Outcomes     map[offer.Outcome]int
	Results      []offer.ClaimResult
	CodesWritten int
}

// Count returns the number of results with outcome.
func (s Summary) Count(outcome offer.Outcome) int {
	return s.Outcomes[outcome]
}

// String renders the outcome counts on one line.
func (s Summary) String() string {
	parts := make([]string, 0, len(offer.Outcomes))
	for _, o := range offer.Outcomes {
		parts = append(parts, fmt.Sprintf("%s: %d", o, s.Outcomes[o]))
	}
	return strings.Join(parts, ", ")
}

// categoryCounts logs one count per category, in dispatch order.
func categoryCounts(counts map[offer.Category]int) zapcore.ObjectMarshalerFunc {
	return func(enc zapcore.ObjectEncoder) error {
		for _, c := range offer.Categories {
			enc.AddInt(c.String(), counts[c])
		}
		return nil
	}
}

// Looter wires the pass together.
type Looter struct {
	Auth       AuthGate
	Catalog    Catalog
	Driver     claim.Driver
	Codes      codes.Sink      // nil drops extracted codes
	Log        *logging.Logger // nil discards
	Publishers []string        // empty claims from every publisher
	Dump       bool            // log the landing page markup when the driver supports it
}

// Pass runs one full pass. Only authentication and catalog errors are
// returned; per-offer failures are recorded in the Summary.
func (l *Looter) Pass(ctx context.Context) (Summary, error) {
	sum := Summary{
		PassID:     uuid.NewString(),
		Backend:    l.Driver.Name(),
		StartedAt:  time.Now(),
		Categories: make(map[offer.Category]int),
		Outcomes:   make(map[offer.Outcome]int),
	}
	log := l.Log.With(zap.String("pass", sum.PassID))
	log.To(logging.Both).Info("Starting pass", zap.String("backend", sum.Backend))

	if err := l.Auth.Verify(ctx); err != nil {
		return sum, fmt.Errorf("looter: verify session: %w", err)
	}
	if l.Dump {
		l.dump(ctx, log)
	}

	offers, err := l.Catalog.Fetch(ctx)
	if err != nil {
		return sum, fmt.Errorf("looter: fetch catalog: %w", err)
	}
	parts := offer.Partition(offers)

	for _, cat := range offer.Categories {
		batch := parts[cat]
		sum.Categories[cat] = len(batch)
		if len(batch) == 0 {
			continue
		}
		sum.Results = append(sum.Results, l.dispatch(ctx, cat, batch, log)...)
	}

	for _, r := range sum.Results {
		sum.Outcomes[r.Outcome]++
		if r.Outcome == offer.Claimed {
			sum.CodesWritten += l.store(r, log)
		}
	}
	sum.FinishedAt = time.Now()
	log.To(logging.Both).Info("Pass complete",
		zap.Int("offers", len(offers)),
		zap.Object("categories", categoryCounts(sum.Categories)),
		zap.String("outcomes", sum.String()),
		zap.Int("codes", sum.CodesWritten),
		zap.Duration("took", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	return sum, nil
}

func (l *Looter) dispatch(ctx context.Context, cat offer.Category, batch []offer.Offer, log *logging.Logger) []offer.ClaimResult {
	switch cat {
	case offer.NotClaimable:
		log.To(logging.Both).Info("Cannot claim these offers", zap.Strings("offers", titles(batch)))
		return resultsFor(batch, offer.SkippedNotClaimable)

	case offer.AlreadyClaimed:
		log.To(logging.Both).Info("Already claimed", zap.Strings("offers", titles(batch)))
		return resultsFor(batch, offer.OutcomeAlreadyClaimed)

	case offer.AccountLinkRequired:
		for _, o := range batch {
			log.To(logging.Both).Warn("Cannot claim offer, account link required", zap.String("offer", o.Title))
		}
		return resultsFor(batch, offer.SkippedAccountLinkRequired)

	case offer.DirectClaimable:
		log.To(logging.Both).Info("Claiming direct offers", zap.Strings("offers", titles(batch)))
		return l.claimBatch(batch, func() []offer.ClaimResult { return l.Driver.ClaimDirect(ctx, batch) })

	case offer.ExternalClaimable:
		return l.claimFiltered(ctx, batch, l.Driver.ClaimExternal, log)

	case offer.ItemClaimable:
		ic, ok := l.Driver.(claim.ItemClaimer)
		if !ok {
			log.To(logging.Both).Info("Backend cannot claim in-game loot", zap.Strings("offers", titles(batch)))
			return resultsFor(batch, offer.SkippedNotClaimable)
		}
		return l.claimFiltered(ctx, batch, ic.ClaimItem, log)

	default:
		results := make([]offer.ClaimResult, 0, len(batch))
		for _, o := range batch {
			results = append(results, offer.Failure(o, "unhandled category "+cat.String()))
		}
		return results
	}
}

// claimFiltered applies the publisher allow-list and fans the remaining
// offers out to fn.
func (l *Looter) claimFiltered(ctx context.Context, batch []offer.Offer, fn func(context.Context, offer.Offer) offer.ClaimResult, log *logging.Logger) []offer.ClaimResult {
	keep, skipped := FilterPublishers(batch, l.Publishers)
	results := make([]offer.ClaimResult, 0, len(batch))
	for _, o := range skipped {
		log.To(logging.File).Debug("Publisher not in allow-list", zap.String("offer", o.Title), zap.String("publisher", o.Publisher()))
		results = append(results, offer.Result(o, offer.SkippedNotClaimable))
	}
	return append(results, l.fanOut(ctx, keep, fn)...)
}

// fanOut claims offers with at most Driver.Concurrency() in flight. A
// failing claim never cancels the others.
func (l *Looter) fanOut(ctx context.Context, offers []offer.Offer, fn func(context.Context, offer.Offer) offer.ClaimResult) []offer.ClaimResult {
	results := make([]offer.ClaimResult, len(offers))
	var g errgroup.Group
	g.SetLimit(max(1, l.Driver.Concurrency()))
	for i, o := range offers {
		g.Go(func() error {
			results[i] = l.claimOne(o, func() offer.ClaimResult { return fn(ctx, o) })
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// claimOne turns a panicking claim into a Failed result.
func (l *Looter) claimOne(o offer.Offer, fn func() offer.ClaimResult) (res offer.ClaimResult) {
	defer func() {
		if r := recover(); r != nil {
			l.Log.To(logging.Both).Error("Claim panicked",
				zap.String("offer", o.Title),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			res = offer.Failure(o, fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn()
}

func (l *Looter) claimBatch(batch []offer.Offer, fn func() []offer.ClaimResult) (results []offer.ClaimResult) {
	defer func() {
		if r := recover(); r != nil {
			l.Log.To(logging.Both).Error("Direct claim panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			results = make([]offer.ClaimResult, len(batch))
			for i, o := range batch {
				results[i] = offer.Failure(o, fmt.Sprintf("panic: %v", r))
			}
		}
	}()
	results = fn()
	if len(results) != len(batch) {
		return fillMissing(batch, results)
	}
	return results
}

// fillMissing pairs results with batch by offer id, failing offers the
// driver did not report on.
func fillMissing(batch []offer.Offer, results []offer.ClaimResult) []offer.ClaimResult {
	byID := make(map[string]offer.ClaimResult, len(results))
	for _, r := range results {
		byID[r.OfferID] = r
	}
	out := make([]offer.ClaimResult, len(batch))
	for i, o := range batch {
		if r, ok := byID[o.ID]; ok {
			out[i] = r
			continue
		}
		out[i] = offer.Failure(o, "no result from driver")
	}
	return out
}

// store appends each of r's codes to the sink and returns how many were
// written.
func (l *Looter) store(r offer.ClaimResult, log *logging.Logger) int {
	if l.Codes == nil {
		return 0
	}
	written := 0
	for _, c := range r.Codes {
		if err := l.Codes.Append(r.Title, c.Code, c.Instructions); err != nil {
			log.To(logging.Both).Warn("Could not record redemption code", zap.String("offer", r.Title), zap.Error(err))
			continue
		}
		written++
	}
	if written > 0 {
		log.To(logging.Both).Info("Recorded redemption code", zap.String("offer", r.Title), zap.Int("codes", written))
	}
	return written
}

func (l *Looter) dump(ctx context.Context, log *logging.Logger) {
	d, ok := l.Driver.(claim.Dumper)
	if !ok {
		log.To(logging.Console).Warn("Backend has no page to dump", zap.String("backend", l.Driver.Name()))
		return
	}
	html, err := d.Dump(ctx)
	if err != nil {
		log.To(logging.Both).Warn("Dump failed", zap.Error(err))
		return
	}
	log.To(logging.File).Info("Landing page markup", zap.String("html", html))
}

// FilterPublishers splits offers into those whose publisher is in allow
// and the rest. The kept offers are grouped in allow-list order, keeping
// catalog order within a publisher. An empty allow keeps everything.
func FilterPublishers(offers []offer.Offer, allow []string) (keep, skipped []offer.Offer) {
	if len(allow) == 0 {
		return offers, nil
	}
	rank := make(map[string]int, len(allow))
	for i, p := range allow {
		key := strings.ToLower(strings.TrimSpace(p))
		if _, dup := rank[key]; !dup {
			rank[key] = i
		}
	}
	buckets := make([][]offer.Offer, len(allow))
	for _, o := range offers {
		i, ok := rank[strings.ToLower(strings.TrimSpace(o.Publisher()))]
		if !ok {
			skipped = append(skipped, o)
			continue
		}
		buckets[i] = append(buckets[i], o)
	}
	for _, b := range buckets {
		keep = append(keep, b...)
	}
	return keep, skipped
}

func resultsFor(batch []offer.Offer, outcome offer.Outcome) []offer.ClaimResult {
	out := make([]offer.ClaimResult, 0, len(batch))
	for _, o := range batch {
		out = append(out, offer.Result(o, outcome))
	}
	return out
}

func titles(batch []offer.Offer) []string {
	out := make([]string, 0, len(batch))
	for _, o := range batch {
		out = append(out, o.Title)
	}
	return out
}
