package notify

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/looter"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/offer"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/runner"
)

// captureServer starts an httptest.Server that records incoming requests.
// It returns the server and a function to collect all captured requests.
func captureServer(t *testing.T) (*httptest.Server, func() []capturedReq) {
	t.Helper()
	var mu sync.Mutex
	var reqs []capturedReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedReq{
			method:      r.Method,
			body:        string(body),
			contentType: r.Header.Get("Content-Type"),
			title:       r.Header.Get("X-Title"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedReq {
		mu.Lock()
		defer mu.Unlock()
		out := make([]capturedReq, len(reqs))
		copy(out, reqs)
		return out
	}
}

type capturedReq struct {
	method      string
	body        string
	contentType string
	title       string
}

// waitForRequests polls until count requests are captured or the deadline is reached.
func waitForRequests(t *testing.T, collect func() []capturedReq, count int) []capturedReq {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := collect(); len(got) >= count {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d request(s)", count)
	return nil
}

func TestHook_OnComplete(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "looter-home", true, false)
	n.Hook(runner.Event{Kind: runner.EventPassComplete, Message: "Pass complete"})

	reqs := waitForRequests(t, collect, 1)
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.method != http.MethodPost {
		t.Errorf("method = %q, want POST", r.method)
	}
	if r.body != "Pass complete" {
		t.Errorf("body = %q, want %q", r.body, "Pass complete")
	}
	if r.contentType != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", r.contentType)
	}
	if r.title != "looter-home" {
		t.Errorf("X-Title = %q, want looter-home", r.title)
	}
}

func TestHook_OnComplete_IncludesSummary(t *testing.T) {
	srv, collect := captureServer(t)

	sum := looter.Summary{
		Outcomes: map[offer.Outcome]int{offer.Claimed: 2, offer.Failed: 1},
		Results: []offer.ClaimResult{
			{Title: "Game A", Outcome: offer.Claimed, Codes: []offer.Redemption{{Code: "XYZ"}}},
			{Title: "Game B", Outcome: offer.Claimed},
		},
	}
	n := New(srv.URL, "", true, false)
	n.Hook(runner.Event{Kind: runner.EventPassComplete, Message: "Pass complete", Summary: &sum})

	body := waitForRequests(t, collect, 1)[0].body
	for _, want := range []string{"Pass complete", "claimed: 2", "failed: 1", "Code received for Game A"} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}
	if strings.Contains(body, "Game B") {
		t.Errorf("body %q mentions a claim without a code", body)
	}
}

func TestHook_OnComplete_Disabled(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "", false, false)
	n.Hook(runner.Event{Kind: runner.EventPassComplete, Message: "Pass complete"})
	n.Wait()

	if got := collect(); len(got) != 0 {
		t.Errorf("expected no requests, got %d", len(got))
	}
}

func TestHook_OnError(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "", false, true)
	n.Hook(runner.Event{Kind: runner.EventPassFailed, Message: "Pass failed: timeout", Err: errors.New("timeout")})
	n.Hook(runner.Event{Kind: runner.EventFatal, Message: "Pass failed: not signed in"})

	reqs := waitForRequests(t, collect, 2)
	bodies := map[string]bool{}
	for _, r := range reqs {
		bodies[r.body] = true
	}
	if !bodies["Pass failed: timeout"] || !bodies["Pass failed: not signed in"] {
		t.Errorf("bodies = %v", bodies)
	}
}

func TestHook_OnError_Disabled(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "", true, false)
	n.Hook(runner.Event{Kind: runner.EventPassFailed, Message: "oops"})
	n.Hook(runner.Event{Kind: runner.EventFatal, Message: "fatal"})
	n.Wait()

	if got := collect(); len(got) != 0 {
		t.Errorf("expected no requests, got %d", len(got))
	}
}

func TestHook_FallbackTitle(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "", true, false)
	n.Hook(runner.Event{Kind: runner.EventPassComplete, Message: "done"})

	reqs := waitForRequests(t, collect, 1)
	if reqs[0].title != "LootKing" {
		t.Errorf("X-Title = %q, want LootKing", reqs[0].title)
	}
}

func TestWait_BlocksUntilDelivered(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "", true, true)
	n.Hook(runner.Event{Kind: runner.EventPassComplete, Message: "a"})
	n.Hook(runner.Event{Kind: runner.EventFatal, Message: "b"})
	n.Wait()

	if got := collect(); len(got) != 2 {
		t.Errorf("after Wait got %d requests, want 2", len(got))
	}
}

func TestHook_PostFailureSilent(t *testing.T) {
	// Point at a server that is already closed → connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := New(srv.URL, "", true, true)
	// None of these should panic or block.
	n.Hook(runner.Event{Kind: runner.EventPassComplete, Message: "done"})
	n.Hook(runner.Event{Kind: runner.EventPassFailed, Message: "err"})
	n.Wait()
}
