package claim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/browser"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/logging"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/offer"
)

// Markup the UI driver keys on.
const (
	selLootCard      = "div[data-a-target=loot-card-available]"
	selLootName      = "h3[data-a-target=LootCardSubtitle]"
	selClaimButton   = "button[data-a-target=AvailableButton]" // within a loot card
	selModal         = "div[data-a-target=gms-base-modal]"
	selConfirmStep   = `div[class*="--current"][data-a-target="Step-3"]`
	selConfirmButton = "button[data-a-target=gms-cta]"
	selSuccess       = "div.gms-success-modal-container"
	selLinkStep      = `div[class*="--current"][data-a-target="Step-2"]`
	selProgressBar   = "div[data-a-target=gms-progress-bar]"
	selCodeSuccess   = "div.get-my-stuff-modal-code-success"
	selCodeInput     = `div.get-my-stuff-modal-code div[data-a-target="copy-code-input"] input`
	selInstructions  = "div[data-a-target=gms-claim-instructions]"
	selCloseModal    = "button[data-a-target=close-modal-button]"

	selGameTab     = `button[data-type="Game"]`
	selDirectCards = "div[data-a-target='offer-list-FGWP_FULL'] > div[class='offer-list__content__grid'] > div[class='tw-block']"
	selDirectClaim = "button[data-a-target='FGWPOffer']"
	selCardTitle   = "div[class='item-card-details__body__primary'] h3"
)

// ReasonDirectNotFound is the failure reason for a direct offer whose card
// was not on the page.
const ReasonDirectNotFound = "direct offer not found on page"

// Pages opens browser tabs.
type Pages interface {
	NewPage(ctx context.Context) (browser.Page, error)
}

// UIOptions configures the UI driver.
type UIOptions struct {
	HomeURL     string
	WaitTimeout time.Duration
}

// UI claims offers by driving the claim modal in a browser. It runs one
// claim at a time.
type UI struct {
	pages Pages
	log   *logging.Logger
	opts  UIOptions
}

// NewUI returns a UI driver. When pages also implements io.Closer, Close
// closes it.
func NewUI(pages Pages, log *logging.Logger, opts UIOptions) *UI {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	return &UI{pages: pages, log: log, opts: opts}
}

func (u *UI) Name() string     { return "browser" }
func (u *UI) Concurrency() int { return 1 }

func (u *UI) Close() error {
	if c, ok := u.pages.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// modalState is what the claim modal currently shows.
type modalState int

const (
	modalUnknown modalState = iota
	modalSuccess
	modalNeedsConfirm
	modalAccountLink
)

// readModal classifies the open modal. Before the confirm click the
// confirmation step wins over the progress bar shown alongside it; after
// it, a remaining progress bar or link step means the account is not linked.
func readModal(p browser.Page, confirmed bool) modalState {
	success := p.Has(selSuccess)
	confirm := p.Has(selConfirmStep)
	link := p.Has(selLinkStep) || p.Has(selProgressBar)
	switch {
	case success:
		return modalSuccess
	case confirm && !confirmed:
		return modalNeedsConfirm
	case link:
		return modalAccountLink
	case confirm:
		return modalNeedsConfirm
	default:
		return modalUnknown
	}
}

// ClaimExternal opens the offer's detail page in a fresh tab and claims
// every available loot card on it, walking the claim modal for each: click
// claim, optionally confirm once, read the outcome, close the modal.
func (u *UI) ClaimExternal(ctx context.Context, o offer.Offer) offer.ClaimResult {
	log := u.log.With(zap.String("offer", o.Title), zap.String("publisher", o.Publisher()))

	url := o.ExternalURL()
	if !strings.Contains(url, "loot") {
		log.To(logging.Both).Warn("Skipping offer, detail URL is not a loot page", zap.String("url", url))
		return offer.Result(o, offer.SkippedNotClaimable)
	}

	page, err := u.pages.NewPage(ctx)
	if err != nil {
		return offer.Failure(o, err.Error())
	}
	defer func() { _ = page.Close() }()

	log.To(logging.Both).Info("Collecting offer")
	res := u.claimCards(page, o, url, log)
	switch res.Outcome {
	case offer.Claimed:
		log.To(logging.Both).Info("Claimed offer", zap.Int("codes", len(res.Codes)))
	case offer.SkippedAccountLinkRequired:
		log.To(logging.Both).Error("Cannot claim offer, account link required")
	case offer.SkippedNotClaimable:
		log.To(logging.Both).Warn("Offer has no claim button")
	case offer.Failed:
		log.To(logging.Both).Error("Failed to claim offer", zap.String("reason", res.Reason))
	}
	return res
}

// claimCards claims each available card on the journey page. The offer
// counts as claimed when any card was claimed; otherwise an account-link
// step wins over a failure, and a page without claim buttons is not
// claimable.
func (u *UI) claimCards(page browser.Page, o offer.Offer, url string, log *logging.Logger) offer.ClaimResult {
	if err := page.Navigate(url); err != nil {
		return failure(o, err)
	}
	if err := page.WaitFor(selLootCard, u.opts.WaitTimeout); err != nil {
		return failure(o, err)
	}
	cards, err := page.Elements(selLootCard)
	if err != nil {
		return failure(o, err)
	}

	var (
		claimed      bool
		linkRequired bool
		failReason   string
		codes        []offer.Redemption
	)
	for _, card := range cards {
		name, _ := card.Text(selLootName)
		clog := log.With(zap.String("loot", strings.TrimSpace(name)))
		if !card.Has(selClaimButton) {
			clog.To(logging.Both).Warn("Loot card has no claim button")
			continue
		}

		state, code, err := u.claimCard(page, card, clog)
		switch {
		case err != nil:
			clog.To(logging.Both).Warn("Could not claim loot", zap.Error(err))
			if failReason == "" {
				failReason = reason(err)
			}
		case state == modalSuccess:
			clog.To(logging.Both).Info("Claimed loot")
			claimed = true
			if code != nil {
				codes = append(codes, *code)
			}
		case state == modalAccountLink:
			clog.To(logging.Both).Warn("Could not claim loot, account not connected")
			linkRequired = true
		default:
			clog.To(logging.Both).Warn("Could not claim loot, unknown modal state")
			if failReason == "" {
				failReason = offer.ReasonUnknownAutomationError
			}
		}
	}

	switch {
	case claimed:
		res := offer.Result(o, offer.Claimed)
		res.Codes = codes
		return res
	case linkRequired:
		return offer.Result(o, offer.SkippedAccountLinkRequired)
	case failReason != "":
		return offer.Failure(o, failReason)
	default:
		return offer.Result(o, offer.SkippedNotClaimable)
	}
}

// claimCard clicks card's claim button and walks the modal it opens. The
// modal is closed before returning so the next card can be clicked.
func (u *UI) claimCard(page browser.Page, card browser.Element, log *logging.Logger) (modalState, *offer.Redemption, error) {
	wait := u.opts.WaitTimeout

	if err := card.Click(selClaimButton); err != nil {
		return modalUnknown, nil, err
	}
	if err := page.WaitFor(selModal, wait); err != nil {
		return modalUnknown, nil, err
	}
	defer closeModal(page, log)

	confirmed := false
	for {
		state := readModal(page, confirmed)
		switch state {
		case modalSuccess:
			if !page.Has(selCodeSuccess) {
				return state, nil, nil
			}
			code, instr, err := extractCode(page)
			if err != nil {
				log.To(logging.Both).Warn("Could not read redemption code", zap.Error(err))
				return state, nil, nil
			}
			return state, &offer.Redemption{Code: code, Instructions: instr}, nil
		case modalNeedsConfirm:
			if confirmed {
				return modalUnknown, nil, nil
			}
			confirmed = true
			if err := page.Click(selConfirmButton); err != nil {
				return modalUnknown, nil, err
			}
			outcome := strings.Join([]string{selSuccess, selLinkStep, selProgressBar}, ", ")
			if err := page.WaitFor(outcome, wait); err != nil {
				return modalUnknown, nil, err
			}
		default:
			return state, nil, nil
		}
	}
}

func extractCode(page browser.Page) (code, instructions string, err error) {
	code, err = page.Attribute(selCodeInput, "value")
	if err != nil {
		return "", "", err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", "", errors.New("empty code field")
	}
	instructions, err = page.Text(selInstructions)
	if err != nil {
		return "", "", err
	}
	return code, strings.TrimSpace(instructions), nil
}

func closeModal(page browser.Page, log *logging.Logger) {
	if !page.Has(selCloseModal) {
		return
	}
	if err := page.Click(selCloseModal); err != nil {
		log.To(logging.File).Debug("close modal", zap.Error(err))
	}
}

// ClaimDirect opens the landing page once, switches to the game tab and
// clicks every direct claim button it finds. Offers whose card is absent
// fail with ReasonDirectNotFound.
func (u *UI) ClaimDirect(ctx context.Context, offers []offer.Offer) []offer.ClaimResult {
	results := make([]offer.ClaimResult, len(offers))
	failAll := func(reason string) []offer.ClaimResult {
		for i, o := range offers {
			results[i] = offer.Failure(o, reason)
		}
		return results
	}

	page, err := u.pages.NewPage(ctx)
	if err != nil {
		return failAll(err.Error())
	}
	defer func() { _ = page.Close() }()

	if err := u.openGameTab(page); err != nil {
		return failAll(reason(err))
	}
	if err := page.WaitFor(selDirectCards, u.opts.WaitTimeout); err != nil {
		u.log.To(logging.Both).Error("No direct offers found on page", zap.Error(err))
		return failAll(ReasonDirectNotFound)
	}
	cards, err := page.Elements(selDirectCards)
	if err != nil {
		return failAll(reason(err))
	}

	// Outcome per normalized card title.
	clicked := make(map[string]error, len(cards))
	for _, card := range cards {
		if !card.Has(selDirectClaim) {
			continue
		}
		title, err := card.Text(selCardTitle)
		if err != nil {
			continue
		}
		key := normalizeTitle(title)
		err = card.Click(selDirectClaim)
		clicked[key] = err
		if err != nil {
			u.log.To(logging.Both).Error("Failed to claim direct offer", zap.String("offer", title), zap.Error(err))
			continue
		}
		u.log.To(logging.Both).Info("Claimed direct offer", zap.String("offer", title))
	}

	for i, o := range offers {
		err, ok := clicked[normalizeTitle(o.Title)]
		switch {
		case !ok:
			u.log.To(logging.Both).Warn("Direct offer not found on page", zap.String("offer", o.Title))
			results[i] = offer.Failure(o, ReasonDirectNotFound)
		case err != nil:
			results[i] = failure(o, err)
		default:
			results[i] = offer.Result(o, offer.Claimed)
		}
	}
	return results
}

func (u *UI) openGameTab(page browser.Page) error {
	if err := page.Navigate(u.opts.HomeURL); err != nil {
		return err
	}
	if err := page.WaitFor(selGameTab, u.opts.WaitTimeout); err != nil {
		return err
	}
	return page.Click(selGameTab)
}

// Dump returns the landing page markup.
func (u *UI) Dump(ctx context.Context) (string, error) {
	page, err := u.pages.NewPage(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()
	if err := page.Navigate(u.opts.HomeURL); err != nil {
		return "", err
	}
	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("claim: dump: %w", err)
	}
	return html, nil
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// reason maps automation errors to a ClaimResult reason. Timeouts waiting
// for markup become ReasonUnknownAutomationError.
func reason(err error) string {
	if errors.Is(err, browser.ErrTimeout) || errors.Is(err, browser.ErrNotFound) {
		return offer.ReasonUnknownAutomationError
	}
	return err.Error()
}

func failure(o offer.Offer, err error) offer.ClaimResult {
	return offer.Failure(o, reason(err))
}
