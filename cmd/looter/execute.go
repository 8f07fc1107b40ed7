package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/config"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/logging"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/notify"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/offer"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/runner"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/session"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/store"
)

const (
	historyKeep  = 200 // pass records retained in .looter/history.jsonl
	historyShown = 5
)

// loadConfig layers looter.toml, .env, LOOTER_* variables and flags, in
// increasing precedence, then validates the result.
func loadConfig(opts *runOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyFlags(cfg, opts.flags)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// executeRun wires the components for the configured backend and hands the
// pass to the runner. It returns an error only for setup failures and for
// an invalid session.
func executeRun(parent context.Context, opts *runOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{FilePath: cfg.Log.File, Debug: cfg.Log.Debug})
	if err != nil {
		return err
	}
	defer log.Sync()

	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cookies, err := session.ReadFile(cfg.Session.CookieFile)
	if err != nil {
		log.To(logging.Both).Error("Cannot read cookie file", zap.String("path", cfg.Session.CookieFile), zap.Error(err))
		return err
	}
	publishers, err := config.ReadPublishers(cfg.Session.PublishersFile)
	if err != nil {
		return err
	}
	if len(publishers) > 0 {
		log.To(logging.Both).Info("Publisher allow-list active", zap.Strings("publishers", publishers))
	}

	ctx, cancel := signalContext(parent)
	defer cancel()

	lt, drv, err := buildLooter(ctx, cfg, cookies, publishers, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := drv.Close(); closeErr != nil {
			log.To(logging.File).Warn("Closing backend", zap.Error(closeErr))
		}
	}()

	var hook func(runner.Event)
	var notifier *notify.Notifier
	if cfg.Notifications.URL != "" {
		notifier = notify.New(cfg.Notifications.URL, cfg.Notifications.Title, cfg.Notifications.OnComplete, cfg.Notifications.OnError)
		hook = notifier.Hook
	}

	rn := runner.New(runner.Config{
		Loop:     cfg.Run.Loop,
		Interval: cfg.Run.Interval(),
		Cooldown: cfg.Run.Cooldown(),
		Dir:      dir,
		Backend:  drv.Name(),
		History:  store.NewHistory(dir, historyKeep),
	}, log, hook)

	runErr := rn.Run(ctx, lt.Pass)
	if notifier != nil {
		notifier.Wait()
	}
	return runErr
}

// Status rendering.
var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	statusLabelStyle = lipgloss.NewStyle().Width(22).Foreground(lipgloss.Color("#888888"))
	statusPassStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	statusFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	statusRunStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")).Bold(true)
	statusBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Padding(0, 1)
)

// statusResult classifies persisted runner state for display.
type statusResult int

const (
	statusNoState statusResult = iota
	statusRunning
	statusPass
	statusFail
)

func classifyResult(s runner.State) statusResult {
	switch {
	case s.PID == 0 && s.Passes == 0:
		return statusNoState
	case !s.StartedAt.IsZero() && s.FinishedAt.IsZero():
		return statusRunning
	case s.Passed:
		return statusPass
	default:
		return statusFail
	}
}

// showStatus reads .looter/state.json under dir and prints a summary.
func showStatus(w io.Writer, dir string) error {
	state, err := runner.LoadState(dir)
	if err != nil {
		return err
	}

	result := classifyResult(state)
	if result == statusNoState {
		fmt.Fprintln(w, "No runner state found. Run 'looter run' first.")
		return nil
	}

	var rows []string
	row := func(label, value string) {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, statusLabelStyle.Render(label), value))
	}

	row("Backend:", state.Backend)
	mode := "single pass"
	if state.Loop {
		mode = "loop"
	}
	row("Mode:", mode)
	row("Passes:", fmt.Sprintf("%d", state.Passes))
	if !state.LastPassAt.IsZero() {
		row("Last pass:", fmt.Sprintf("%s (%s ago)", state.LastPassAt.Format("2006-01-02 15:04:05"), time.Since(state.LastPassAt).Round(time.Second)))
	}
	if result == statusRunning && !state.NextRunAt.IsZero() {
		row("Next run:", state.NextRunAt.Format("2006-01-02 15:04:05"))
	}
	for _, line := range countLines(state.Outcomes) {
		row("", line)
	}
	if state.CodesWritten > 0 {
		row("Codes written:", fmt.Sprintf("%d", state.CodesWritten))
	}

	switch result {
	case statusRunning:
		row("Result:", statusRunStyle.Render("running"))
	case statusPass:
		row("Result:", statusPassStyle.Render("pass"))
	case statusFail:
		row("Result:", statusFailStyle.Render(fmt.Sprintf("fail (%d consecutive errors)", state.ConsecutiveErrs)))
		if state.LastError != "" {
			row("Last error:", state.LastError)
		}
	}

	recent, err := store.Recent(dir, historyShown)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		row("Recent passes:", "")
		for i := len(recent) - 1; i >= 0; i-- {
			row("", historyLine(recent[i]))
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left, rows...)
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, statusTitleStyle.Render("Looter Status"), statusBoxStyle.Render(body)))
	return nil
}

// historyLine renders one pass record, newest shown first by the caller.
func historyLine(rec store.PassRecord) string {
	when := rec.FinishedAt.Format("2006-01-02 15:04")
	if !rec.Passed {
		return fmt.Sprintf("%s  %s", when, statusFailStyle.Render("failed"))
	}
	return fmt.Sprintf("%s  %d claimed, %d failed, %d codes",
		when, rec.Outcomes[offer.Claimed.String()], rec.Outcomes[offer.Failed.String()], rec.CodesWritten)
}

// countLines renders outcome counts sorted by name.
func countLines(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%-34s %d", strings.TrimSpace(k)+":", counts[k]))
	}
	return out
}
