package offer

import "fmt"

// Outcome is the result of one claim attempt.
type Outcome int

const (
	Claimed Outcome = iota
	OutcomeAlreadyClaimed
	SkippedAccountLinkRequired
	SkippedNotClaimable
	Failed
)

// Outcomes lists every outcome in summary order.
var Outcomes = []Outcome{Claimed, OutcomeAlreadyClaimed, SkippedAccountLinkRequired, SkippedNotClaimable, Failed}

func (o Outcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case OutcomeAlreadyClaimed:
		return "already claimed"
	case SkippedAccountLinkRequired:
		return "skipped (account link required)"
	case SkippedNotClaimable:
		return "skipped (not claimable)"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Reason used when a UI wait for expected markup runs out.
const ReasonUnknownAutomationError = "UnknownAutomationError"

// Redemption is a code shown after a claim, with its redeem instructions.
type Redemption struct {
	Code         string
	Instructions string
}

// ClaimResult is produced once per offer per pass. It is never persisted;
// only Codes are handed to the code sink. A journey page can hold several
// drops, so one claim may yield more than one code.
type ClaimResult struct {
	OfferID string
	Title   string
	Outcome Outcome
	Reason  string // set when Outcome is Failed
	Codes   []Redemption
}

// Result starts a ClaimResult for o.
func Result(o Offer, outcome Outcome) ClaimResult {
	return ClaimResult{OfferID: o.ID, Title: o.Title, Outcome: outcome}
}

// Failure builds a Failed result for o.
func Failure(o Offer, reason string) ClaimResult {
	r := Result(o, Failed)
	r.Reason = reason
	return r
}

// HasCode reports whether the claim produced a redemption code.
func (r ClaimResult) HasCode() bool {
	return len(r.Codes) > 0
}
