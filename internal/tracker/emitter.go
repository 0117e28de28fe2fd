package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"storekriti/internal/ingest"
)

// SessionStart carries the attributes of a session_start payload.
type SessionStart struct {
	LandingPath string
	Referrer    string
	Country     string
	City        string
}

// EmitterOptions configures an Emitter.
type EmitterOptions struct {
	// BaseURL is the server origin, e.g. http://localhost:3000.
	BaseURL string
	Client  *http.Client
	// Headers are added to every request, e.g. User-Agent or Sec-Fetch-Site.
	Headers http.Header
	Logger  *slog.Logger
}

// Emitter sends tracking payloads in the background. Sends are delivered in
// call order on a single goroutine; failures are logged and dropped.
type Emitter struct {
	endpoint string
	client   *http.Client
	headers  http.Header
	logger   *slog.Logger
	identity *IdentityStore

	path atomic.Value // string

	mu       sync.Mutex
	queue    []ingest.Payload
	draining bool
	pending  int
	idle     chan struct{} // closed when pending drops to zero

	sent   atomic.Int64
	failed atomic.Int64
}

func NewEmitter(identity *IdentityStore, opts EmitterOptions) *Emitter {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{
		endpoint: strings.TrimSuffix(opts.BaseURL, "/") + "/api/track",
		client:   client,
		headers:  opts.Headers.Clone(),
		logger:   logger,
		identity: identity,
	}
	e.path.Store("/")
	return e
}

// Identity returns the identity the emitter stamps on payloads.
func (e *Emitter) Identity() *IdentityStore {
	return e.identity
}

// SetPath sets the current path used by payloads that do not name one.
func (e *Emitter) SetPath(path string) {
	if path == "" {
		path = "/"
	}
	e.path.Store(path)
}

func (e *Emitter) currentPath() string {
	return e.path.Load().(string)
}

func (e *Emitter) TrackSessionStart(ctx context.Context, s SessionStart) {
	e.enqueue(ctx, ingest.Payload{
		Type:        string(ingest.TypeSessionStart),
		Path:        e.currentPath(),
		LandingPath: s.LandingPath,
		Referrer:    s.Referrer,
		Country:     s.Country,
		City:        s.City,
	})
}

func (e *Emitter) TrackPageview(ctx context.Context, path, title, referrer string) {
	e.SetPath(path)
	e.enqueue(ctx, ingest.Payload{
		Type:     string(ingest.TypePageview),
		Path:     e.currentPath(),
		Title:    title,
		Referrer: referrer,
	})
}

func (e *Emitter) TrackPageviewEnd(ctx context.Context, path string, durationMS int64, scrollMax int) {
	duration := float64(durationMS)
	scroll := float64(scrollMax)
	e.enqueue(ctx, ingest.Payload{
		Type:       string(ingest.TypePageviewEnd),
		Path:       path,
		DurationMS: &duration,
		ScrollMax:  &scroll,
	})
}

// TrackEvent sends a named event. props must marshal to a JSON object to be kept.
func (e *Emitter) TrackEvent(ctx context.Context, name string, props map[string]any) {
	var raw json.RawMessage
	if props != nil {
		if data, err := json.Marshal(props); err == nil {
			raw = data
		}
	}
	e.enqueue(ctx, ingest.Payload{
		Type:  string(ingest.TypeEvent),
		Path:  e.currentPath(),
		Name:  name,
		Props: raw,
	})
}

// Flush waits until every payload queued before the call has been sent or
// dropped. It is safe to call while other goroutines keep tracking.
func (e *Emitter) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.pending == 0 {
		e.mu.Unlock()
		return nil
	}
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns how many sends succeeded and failed so far.
func (e *Emitter) Stats() (sent, failed int64) {
	return e.sent.Load(), e.failed.Load()
}

func (e *Emitter) enqueue(ctx context.Context, p ingest.Payload) {
	// Ids are resolved now so the activity timestamp follows call order.
	p.VisitorID = e.identity.GetVisitorID()
	p.SessionID = e.identity.GetSessionID()

	e.mu.Lock()
	if e.pending == 0 {
		e.idle = make(chan struct{})
	}
	e.pending++
	e.queue = append(e.queue, p)
	if !e.draining {
		e.draining = true
		// Detached so sends outlive a cancelled caller, like a keepalive fetch.
		go e.drain(context.WithoutCancel(ctx))
	}
	e.mu.Unlock()
}

func (e *Emitter) drain(ctx context.Context) {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		p := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		if err := e.send(ctx, p); err != nil {
			e.failed.Add(1)
			e.logger.Debug("Tracking send failed", slog.String("type", p.Type), slog.Any("error", err))
		} else {
			e.sent.Add(1)
		}
		e.mu.Lock()
		e.pending--
		if e.pending == 0 {
			close(e.idle)
		}
		e.mu.Unlock()
	}
}

func (e *Emitter) send(ctx context.Context, p ingest.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for key, values := range e.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("track %s: status %d", p.Type, resp.StatusCode)
	}
	return nil
}
