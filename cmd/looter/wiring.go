package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/browser"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/claim"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/codes"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/config"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/gql"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/logging"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/looter"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/session"
)

// launchBrowser is replaced in tests.
var launchBrowser = func(ctx context.Context, opts browser.Options) (claim.Pages, error) {
	return browser.Launch(ctx, opts)
}

func newClient(cfg *config.Config, cookies []*http.Cookie) (*gql.Client, error) {
	jar, err := session.Jar(cookies)
	if err != nil {
		return nil, err
	}
	return gql.New(gql.Options{
		Endpoint:          cfg.Protocol.Endpoint,
		HomeURL:           cfg.Protocol.HomeURL,
		UserAgent:         cfg.Protocol.UserAgent,
		Timeout:           cfg.Protocol.Timeout(),
		RequestsPerSecond: cfg.Protocol.RequestsPerSecond,
		Jar:               jar,
	}), nil
}

// catalogShape picks the catalog query matching the backend: the UI driver
// navigates to legacy offer pages, the protocol driver orders items.
func catalogShape(backend string) gql.Shape {
	if backend == config.BackendBrowser {
		return gql.ShapeLegacy
	}
	return gql.ShapeItems
}

// newDriver builds the claim driver for cfg.Run.Backend.
func newDriver(ctx context.Context, cfg *config.Config, client *gql.Client, cookies []*http.Cookie, log *logging.Logger) (claim.Driver, error) {
	switch cfg.Run.Backend {
	case config.BackendBrowser:
		pages, err := launchBrowser(ctx, browser.Options{
			Bin:         cfg.Browser.Bin,
			Headless:    cfg.Browser.Headless,
			WaitTimeout: cfg.Browser.WaitTimeout(),
			Cookies:     session.BrowserCookies(cookies),
		})
		if err != nil {
			return nil, err
		}
		return claim.NewUI(pages, log, claim.UIOptions{
			HomeURL:     cfg.Protocol.HomeURL,
			WaitTimeout: cfg.Browser.WaitTimeout(),
		}), nil
	case config.BackendProtocol:
		return claim.NewProtocol(client, log, cfg.Protocol.Concurrency), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Run.Backend)
	}
}

// buildLooter assembles the pass for cfg. The caller closes the driver.
func buildLooter(ctx context.Context, cfg *config.Config, cookies []*http.Cookie, publishers []string, log *logging.Logger) (*looter.Looter, claim.Driver, error) {
	client, err := newClient(cfg, cookies)
	if err != nil {
		return nil, nil, err
	}
	drv, err := newDriver(ctx, cfg, client, cookies, log)
	if err != nil {
		return nil, nil, err
	}
	return &looter.Looter{
		Auth:       gql.NewAuthGate(client),
		Catalog:    gql.NewCatalog(client, catalogShape(cfg.Run.Backend), cfg.Protocol.PageSize),
		Driver:     drv,
		Codes:      codes.NewFile(cfg.Codes.Path, cfg.Codes.Separator),
		Log:        log,
		Publishers: publishers,
		Dump:       cfg.Browser.Dump,
	}, drv, nil
}
