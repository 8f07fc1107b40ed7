package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/config"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/gql"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/runner"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/store"
)

func TestClassifyResult(t *testing.T) {
	now := time.Now()
	past := now.Add(-10 * time.Minute)

	tests := []struct {
		name  string
		state runner.State
		want  statusResult
	}{
		{
			name:  "no state",
			state: runner.State{},
			want:  statusNoState,
		},
		{
			name:  "running loop",
			state: runner.State{PID: 1, Passes: 2, StartedAt: past, Loop: true},
			want:  statusRunning,
		},
		{
			name:  "pass",
			state: runner.State{PID: 1, Passes: 1, StartedAt: past, FinishedAt: now, Passed: true},
			want:  statusPass,
		},
		{
			name:  "fail",
			state: runner.State{PID: 1, Passes: 1, StartedAt: past, FinishedAt: now, ConsecutiveErrs: 1},
			want:  statusFail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyResult(tt.state); got != tt.want {
				t.Errorf("classifyResult() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShowStatus(t *testing.T) {
	t.Run("no state", func(t *testing.T) {
		var out bytes.Buffer
		if err := showStatus(&out, t.TempDir()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "No runner state found") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("failed pass", func(t *testing.T) {
		dir := t.TempDir()
		now := time.Now()
		err := runner.SaveState(dir, runner.State{
			PID:             7,
			Backend:         "protocol",
			Passes:          2,
			StartedAt:       now.Add(-time.Minute),
			LastPassAt:      now,
			FinishedAt:      now,
			ConsecutiveErrs: 2,
			LastError:       "gql: catalog: response lacks primeOffers and inGameLoot.items",
			Outcomes:        map[string]int{"claimed": 3, "failed": 1},
			CodesWritten:    2,
		})
		if err != nil {
			t.Fatal(err)
		}

		h := store.NewHistory(dir, 0)
		if err := h.Append(store.PassRecord{FinishedAt: now.Add(-time.Hour), Passed: true, Outcomes: map[string]int{"claimed": 4}, CodesWritten: 2}); err != nil {
			t.Fatal(err)
		}
		if err := h.Append(store.PassRecord{FinishedAt: now, Error: "boom"}); err != nil {
			t.Fatal(err)
		}

		var out bytes.Buffer
		if err := showStatus(&out, dir); err != nil {
			t.Fatal(err)
		}
		got := out.String()
		for _, want := range []string{"Looter Status", "protocol", "claimed:", "fail (2 consecutive errors)", "response lacks primeOffers", "Codes written:", "Recent passes:", "4 claimed, 0 failed, 2 codes", "failed"} {
			if !strings.Contains(got, want) {
				t.Errorf("status output missing %q:\n%s", want, got)
			}
		}
	})
}

func TestCountLines_Sorted(t *testing.T) {
	got := countLines(map[string]int{"failed": 1, "claimed": 2})
	if len(got) != 2 || !strings.HasPrefix(got[0], "claimed:") || !strings.HasPrefix(got[1], "failed:") {
		t.Errorf("countLines = %q", got)
	}
}

// portal is a minimal stand-in for the gaming site.
type portal struct {
	user string

	mu     sync.Mutex
	orders []string
}

func (p *portal) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><input name="csrf-key" value="tok"></body></html>`)
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req gql.Request
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.OperationName {
		case "currentUser":
			fmt.Fprintf(w, `{"data":{"currentUser":%s}}`, p.user)
		case "OffersContext_Offers_And_Items":
			fmt.Fprint(w, `{"data":{"inGameLoot":{"items":[
				{"id":"item-1","isDirectEntitlement":true,"offers":[{"id":"offer-1","offerSelfConnection":{"eligibility":{"canClaim":true,"isClaimed":false}}}],"game":{"assets":{"title":"Game One","publisher":"Alpha"}}},
				{"id":"item-2","offers":[{"id":"offer-2","offerSelfConnection":{"eligibility":{"canClaim":false,"isClaimed":true}}}],"game":{"assets":{"title":"Game Two","publisher":"Beta"}}}
			]}}}`)
		case "placeOrdersDetailPage":
			input := req.Variables["input"].(map[string]any)
			p.mu.Lock()
			p.orders = append(p.orders, input["offerIds"].([]any)[0].(string))
			p.mu.Unlock()
			fmt.Fprint(w, `{"data":{"placeOrders":{"error":null}}}`)
		default:
			fmt.Fprint(w, `{"data":null,"errors":[{"message":"unknown operation"}]}`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const signedInPrime = `{"isSignedIn":true,"isAmazonPrime":true,"isTwitchPrime":true}`

// writeProject lays out looter.toml and a cookie file pointing at srv.
func writeProject(t *testing.T, dir string, srv *httptest.Server) string {
	t.Helper()
	cookies := ".gaming.example.com\tTRUE\t/\tTRUE\t0\tsession-id\tabc\n"
	if err := os.WriteFile(filepath.Join(dir, "cookies.txt"), []byte(cookies), 0600); err != nil {
		t.Fatal(err)
	}
	toml := fmt.Sprintf(`[protocol]
endpoint = %q
home_url = %q
requests_per_second = 0

[notifications]
url = ""
`, srv.URL+"/graphql", srv.URL+"/home")
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecuteRun_ProtocolPass(t *testing.T) {
	p := &portal{user: signedInPrime}
	srv := p.start(t)
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := writeProject(t, dir, srv)

	if err := executeRun(context.Background(), &runOptions{configPath: cfgPath}); err != nil {
		t.Fatalf("executeRun: %v", err)
	}

	p.mu.Lock()
	orders := append([]string(nil), p.orders...)
	p.mu.Unlock()
	if len(orders) != 1 || orders[0] != "offer-1" {
		t.Errorf("orders = %v, want [offer-1]", orders)
	}

	state, err := runner.LoadState(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !state.Passed || state.Outcomes["claimed"] != 1 || state.Outcomes["already claimed"] != 1 {
		t.Errorf("state = %+v", state)
	}
	if _, err := os.Stat(filepath.Join(dir, "looter.log")); err != nil {
		t.Errorf("log file not written: %v", err)
	}
}

func TestExecuteRun_AuthFailureIsFatal(t *testing.T) {
	p := &portal{user: `{"isSignedIn":true,"isAmazonPrime":false,"isTwitchPrime":false}`}
	srv := p.start(t)
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := writeProject(t, dir, srv)

	err := executeRun(context.Background(), &runOptions{configPath: cfgPath})
	if !gql.IsAuthError(err) {
		t.Fatalf("executeRun = %v, want auth error", err)
	}
	if len(p.orders) != 0 {
		t.Errorf("orders placed after auth failure: %v", p.orders)
	}
}

func TestExecuteRun_MissingCookies(t *testing.T) {
	p := &portal{user: signedInPrime}
	srv := p.start(t)
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := writeProject(t, dir, srv)
	if err := os.Remove(filepath.Join(dir, "cookies.txt")); err != nil {
		t.Fatal(err)
	}

	if err := executeRun(context.Background(), &runOptions{configPath: cfgPath}); err == nil {
		t.Fatal("expected error for missing cookie file")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte("[run]\nbackend = \"browser\"\n\n[log]\nfile = \"from-toml.log\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LOOTER_CODES_FILE=from-dotenv.txt\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvLogFile, "from-env.log")
	t.Setenv(config.EnvCodesFile, "")
	os.Unsetenv(config.EnvCodesFile)

	cmd := runCmd()
	if err := cmd.ParseFlags([]string{"--cookies", "flag-cookies.txt"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(&runOptions{configPath: path, flags: cmd.Flags()})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Run.Backend != config.BackendBrowser {
		t.Errorf("backend = %q, want value from toml", cfg.Run.Backend)
	}
	if cfg.Log.File != "from-env.log" {
		t.Errorf("log file = %q, want env override", cfg.Log.File)
	}
	if cfg.Codes.Path != "from-dotenv.txt" {
		t.Errorf("codes path = %q, want .env value", cfg.Codes.Path)
	}
	if cfg.Session.CookieFile != "flag-cookies.txt" {
		t.Errorf("cookie file = %q, want flag override", cfg.Session.CookieFile)
	}
}

func TestLoadConfig_InvalidBackend(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvBackend, "carrier-pigeon")

	if _, err := loadConfig(&runOptions{}); err == nil || !strings.Contains(err.Error(), "run.backend") {
		t.Errorf("loadConfig = %v, want run.backend validation error", err)
	}
}
