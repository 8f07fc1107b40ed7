// Package browser drives a Chromium instance through go-rod for the UI
// claim backend. It exposes the small Page and Element surface the claim
// state machine needs so that tests can substitute fakes.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrTimeout is returned when expected markup does not appear in time.
var ErrTimeout = errors.New("browser: timed out waiting for markup")

// ErrNotFound is returned when a selector matches nothing on the page.
var ErrNotFound = errors.New("browser: element not found")

// Page is one browser tab.
type Page interface {
	Navigate(url string) error
	// WaitFor blocks until selector matches or timeout elapses.
	WaitFor(selector string, timeout time.Duration) error
	Has(selector string) bool
	Click(selector string) error
	Attribute(selector, name string) (string, error)
	Text(selector string) (string, error)
	Elements(selector string) ([]Element, error)
	HTML() (string, error)
	Close() error
}

// Element is a node whose descendants can be queried and clicked.
type Element interface {
	Has(selector string) bool
	Text(selector string) (string, error)
	Click(selector string) error
}

// Options configures Launch.
type Options struct {
	Bin         string // empty uses the launcher's managed Chromium
	Headless    bool
	WaitTimeout time.Duration
	Cookies     []*proto.NetworkCookieParam
}

// Browser owns a launched Chromium process.
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	wait     time.Duration
}

// Launch starts Chromium, connects to it and installs the session cookies.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	l := launcher.New().Headless(opts.Headless)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	rb := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if len(opts.Cookies) > 0 {
		if err := rb.SetCookies(opts.Cookies); err != nil {
			_ = rb.Close()
			l.Kill()
			return nil, fmt.Errorf("browser: set cookies: %w", err)
		}
	}

	wait := opts.WaitTimeout
	if wait <= 0 {
		wait = 30 * time.Second
	}
	return &Browser{rod: rb, launcher: l, wait: wait}, nil
}

// NewPage opens a blank tab bound to ctx.
func (b *Browser) NewPage(ctx context.Context) (Page, error) {
	p, err := b.rod.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("browser: new page: %w", err)
	}
	return &rodPage{page: p.Context(ctx), wait: b.wait}, nil
}

// Close shuts the browser down and removes its profile directory.
func (b *Browser) Close() error {
	err := b.rod.Close()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page *rod.Page
	wait time.Duration
}

// timed runs fn on a clone of page bounded by d and releases the timer
// when fn returns.
func timed(page *rod.Page, d time.Duration, fn func(pg *rod.Page) error) error {
	pg := page.Timeout(d)
	defer pg.CancelTimeout()
	return fn(pg)
}

func (p *rodPage) Navigate(url string) error {
	return timed(p.page, p.wait, func(pg *rod.Page) error {
		if err := pg.Navigate(url); err != nil {
			return mapErr(err, url)
		}
		return mapErr(pg.WaitLoad(), url)
	})
}

func (p *rodPage) WaitFor(selector string, timeout time.Duration) error {
	return timed(p.page, timeout, func(pg *rod.Page) error {
		_, err := pg.Element(selector)
		return mapErr(err, selector)
	})
}

func (p *rodPage) Has(selector string) bool {
	ok, _, err := p.page.Has(selector)
	return err == nil && ok
}

func (p *rodPage) Click(selector string) error {
	return timed(p.page, p.wait, func(pg *rod.Page) error {
		el, err := pg.Element(selector)
		if err != nil {
			return mapErr(err, selector)
		}
		return mapErr(el.Click(proto.InputMouseButtonLeft, 1), selector)
	})
}

func (p *rodPage) Attribute(selector, name string) (string, error) {
	el, err := p.find(selector)
	if err != nil {
		return "", err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", mapErr(err, selector)
	}
	if v != nil && *v != "" {
		return *v, nil
	}
	// Inputs filled by script carry the value as a property only.
	prop, err := el.Property(name)
	if err != nil {
		return "", mapErr(err, selector)
	}
	return prop.Str(), nil
}

func (p *rodPage) Text(selector string) (string, error) {
	el, err := p.find(selector)
	if err != nil {
		return "", err
	}
	s, err := el.Text()
	return s, mapErr(err, selector)
}

func (p *rodPage) Elements(selector string) ([]Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, mapErr(err, selector)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, wait: p.wait})
	}
	return out, nil
}

func (p *rodPage) HTML() (string, error) {
	return p.page.HTML()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

func (p *rodPage) find(selector string) (*rod.Element, error) {
	ok, el, err := p.page.Has(selector)
	if err != nil {
		return nil, mapErr(err, selector)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return el, nil
}

type rodElement struct {
	el   *rod.Element
	wait time.Duration
}

func (e *rodElement) Has(selector string) bool {
	ok, _, err := e.el.Has(selector)
	return err == nil && ok
}

func (e *rodElement) Text(selector string) (string, error) {
	child, err := e.find(selector)
	if err != nil {
		return "", err
	}
	s, err := child.Text()
	return s, mapErr(err, selector)
}

func (e *rodElement) Click(selector string) error {
	child, err := e.find(selector)
	if err != nil {
		return err
	}
	if e.wait > 0 {
		child = child.Timeout(e.wait)
		defer child.CancelTimeout()
	}
	return mapErr(child.Click(proto.InputMouseButtonLeft, 1), selector)
}

func (e *rodElement) find(selector string) (*rod.Element, error) {
	ok, child, err := e.el.Has(selector)
	if err != nil {
		return nil, mapErr(err, selector)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return child, nil
}

// mapErr turns rod's deadline errors into ErrTimeout.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, what)
	}
	return fmt.Errorf("browser: %s: %w", what, err)
}
