// Package notify sends fire-and-forget HTTP notifications for pass events.
// The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/runner"
)

// Notifier posts plain-text HTTP notifications for selected runner events.
type Notifier struct {
	url        string
	title      string
	onComplete bool
	onError    bool
	client     *http.Client
	wg         sync.WaitGroup
}

// New creates a Notifier. title is sent as the X-Title header; if empty,
// "LootKing" is used instead. onError covers both failed passes and fatal
// session errors.
func New(notifURL, title string, onComplete, onError bool) *Notifier {
	if title == "" {
		title = "LootKing"
	}
	return &Notifier{
		url:        notifURL,
		title:      title,
		onComplete: onComplete,
		onError:    onError,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Hook is a runner hook. It fires asynchronous POSTs for events that match
// the configured notification flags.
func (n *Notifier) Hook(ev runner.Event) {
	switch ev.Kind {
	case runner.EventPassComplete:
		if n.onComplete {
			n.send(message(ev))
		}
	case runner.EventPassFailed, runner.EventFatal:
		if n.onError {
			n.send(ev.Message)
		}
	}
}

// Wait blocks until in-flight notifications finish. Call it before exit so
// the last event is not lost.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func message(ev runner.Event) string {
	if ev.Summary == nil {
		return ev.Message
	}
	var b strings.Builder
	b.WriteString(ev.Message)
	b.WriteString("\n")
	b.WriteString(ev.Summary.String())
	for _, r := range ev.Summary.Results {
		if r.HasCode() {
			b.WriteString("\nCode received for ")
			b.WriteString(r.Title)
		}
	}
	return b.String()
}

func (n *Notifier) send(msg string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.post(msg)
	}()
}

// post sends a plain-text POST to the configured URL. Errors are silently
// discarded so notification failures never interrupt the runner.
func (n *Notifier) post(message string) {
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
