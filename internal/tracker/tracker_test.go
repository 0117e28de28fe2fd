package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storekriti/internal/ingest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type collector struct {
	mu       sync.Mutex
	payloads []ingest.Payload
	headers  []http.Header
	status   int
}

func (c *collector) handler(w http.ResponseWriter, r *http.Request) {
	var p ingest.Payload
	_ = json.NewDecoder(r.Body).Decode(&p)

	c.mu.Lock()
	c.payloads = append(c.payloads, p)
	c.headers = append(c.headers, r.Header.Clone())
	status := c.status
	c.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.payloads))
	for i, p := range c.payloads {
		out[i] = p.Type
	}
	return out
}

func newTestEmitter(t *testing.T, clock *fakeClock, headers http.Header) (*Emitter, *collector) {
	t.Helper()
	col := &collector{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/track", col.handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	identity := NewIdentityStore(NewMemoryStore(), WithClock(clock.Now))
	return NewEmitter(identity, EmitterOptions{BaseURL: srv.URL + "/", Client: srv.Client(), Headers: headers}), col
}

func TestVisitorIDIsStable(t *testing.T) {
	store := NewMemoryStore()
	identity := NewIdentityStore(store)

	id := identity.GetVisitorID()
	assert.True(t, strings.HasPrefix(id, "v_"), id)
	assert.Equal(t, id, identity.GetVisitorID())

	stored, ok := store.Get(KeyVisitorID)
	require.True(t, ok)
	assert.Equal(t, id, stored)

	assert.Equal(t, id, NewIdentityStore(store).GetVisitorID(), "a new identity over the same store keeps the visitor")
}

func TestSessionRotation(t *testing.T) {
	clock := newFakeClock()
	identity := NewIdentityStore(NewMemoryStore(), WithClock(clock.Now))

	first := identity.GetSessionID()
	assert.True(t, strings.HasPrefix(first, "s_"), first)
	assert.True(t, identity.IsNewSession())

	clock.Advance(29 * time.Minute)
	assert.Equal(t, first, identity.GetSessionID())
	assert.False(t, identity.IsNewSession())

	// The previous call refreshed the activity timestamp.
	clock.Advance(29 * time.Minute)
	assert.Equal(t, first, identity.GetSessionID())

	clock.Advance(SessionIdle)
	second := identity.GetSessionID()
	assert.NotEqual(t, first, second)
	assert.True(t, identity.IsNewSession())
}

func TestSessionRotatesOnCorruptTimestamp(t *testing.T) {
	store := NewMemoryStore()
	identity := NewIdentityStore(store)

	first := identity.GetSessionID()
	require.NoError(t, store.Set(KeySessionTS, "garbage"))
	assert.NotEqual(t, first, identity.GetSessionID())
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	visitor := NewIdentityStore(store).GetVisitorID()

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, visitor, NewIdentityStore(reopened).GetVisitorID())
}

func TestEmitterSendsInOrderWithIdentity(t *testing.T) {
	clock := newFakeClock()
	headers := http.Header{}
	headers.Set("Sec-Fetch-Site", "cross-site")
	emitter, col := newTestEmitter(t, clock, headers)
	ctx := context.Background()

	emitter.TrackSessionStart(ctx, SessionStart{LandingPath: "/", Referrer: "https://google.com"})
	emitter.TrackPageview(ctx, "/pricing", "Pricing", "")
	emitter.TrackPageviewEnd(ctx, "/pricing", 5000, 80)
	emitter.TrackEvent(ctx, "cta_click", map[string]any{"plan": "pro"})
	require.NoError(t, emitter.Flush(ctx))

	assert.Equal(t, []string{"session_start", "pageview", "pageview_end", "event"}, col.types())

	visitor := emitter.Identity().GetVisitorID()
	for i, p := range col.payloads {
		assert.Equal(t, visitor, p.VisitorID)
		assert.NotEmpty(t, p.SessionID)
		assert.Equal(t, "cross-site", col.headers[i].Get("Sec-Fetch-Site"))
		assert.Equal(t, "application/json", col.headers[i].Get("Content-Type"))
	}

	end := col.payloads[2]
	require.NotNil(t, end.DurationMS)
	require.NotNil(t, end.ScrollMax)
	assert.Equal(t, 5000.0, *end.DurationMS)
	assert.Equal(t, 80.0, *end.ScrollMax)

	event := col.payloads[3]
	assert.Equal(t, "/pricing", event.Path, "events carry the current path")
	assert.JSONEq(t, `{"plan":"pro"}`, string(event.Props))

	sent, failed := emitter.Stats()
	assert.Equal(t, int64(4), sent)
	assert.Zero(t, failed)
}

func TestEmitterSwallowsFailures(t *testing.T) {
	emitter, col := newTestEmitter(t, newFakeClock(), nil)
	col.status = http.StatusInternalServerError

	ctx := context.Background()
	emitter.TrackEvent(ctx, "x", nil)
	require.NoError(t, emitter.Flush(ctx))

	_, failed := emitter.Stats()
	assert.Equal(t, int64(1), failed)

	unreachable := NewEmitter(NewIdentityStore(NewMemoryStore()), EmitterOptions{BaseURL: "http://127.0.0.1:1"})
	unreachable.TrackEvent(ctx, "x", nil)
	require.NoError(t, unreachable.Flush(ctx))
	_, failed = unreachable.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestEmitterFlushWhileTracking(t *testing.T) {
	emitter, col := newTestEmitter(t, newFakeClock(), nil)
	ctx := context.Background()

	require.NoError(t, emitter.Flush(ctx), "nothing queued")

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				emitter.TrackEvent(ctx, "tick", nil)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				assert.NoError(t, emitter.Flush(flushCtx))
				cancel()
			}
		}()
	}
	wg.Wait()

	require.NoError(t, emitter.Flush(ctx))
	sent, failed := emitter.Stats()
	assert.Equal(t, int64(workers*perWorker), sent)
	assert.Zero(t, failed)
	assert.Len(t, col.types(), workers*perWorker)
}

func TestEmitterFlushHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	emitter := NewEmitter(NewIdentityStore(NewMemoryStore()), EmitterOptions{BaseURL: srv.URL, Client: srv.Client()})
	emitter.TrackEvent(context.Background(), "slow", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, emitter.Flush(ctx), context.DeadlineExceeded)
}

func TestLifecycle(t *testing.T) {
	clock := newFakeClock()
	emitter, col := newTestEmitter(t, clock, nil)
	lc := NewLifecycle(emitter, WithLifecycleClock(clock.Now))
	ctx := context.Background()

	lc.Start(ctx, "/", "Home", "https://google.com")
	lc.Start(ctx, "/", "Home", "")

	lc.Scroll(40)
	lc.Scroll(150)
	lc.Scroll(10)
	page, ok := lc.Page()
	require.True(t, ok)
	assert.Equal(t, 100, page.ScrollMax, "scroll is clamped and keeps the max")

	clock.Advance(3 * time.Second)
	lc.Navigate(ctx, "/pricing", "Pricing")

	// A redirect away before the threshold is not flushed.
	clock.Advance(100 * time.Millisecond)
	lc.Navigate(ctx, "/contact", "Contact")

	lc.Scroll(-5)
	clock.Advance(2 * time.Second)
	lc.Suspend(ctx)

	require.NoError(t, emitter.Flush(ctx))

	assert.Equal(t, []string{
		"session_start",
		"event",
		"pageview",
		"pageview_end",
		"pageview",
		"pageview",
		"pageview_end",
	}, col.types())

	col.mu.Lock()
	defer col.mu.Unlock()

	assert.Equal(t, "/", col.payloads[0].LandingPath)
	assert.Equal(t, "session_active", col.payloads[1].Name)

	firstEnd := col.payloads[3]
	assert.Equal(t, "/", firstEnd.Path)
	assert.Equal(t, 3000.0, *firstEnd.DurationMS)
	assert.Equal(t, 100.0, *firstEnd.ScrollMax)

	assert.Equal(t, "/pricing", col.payloads[4].Path)
	assert.Equal(t, "/", col.payloads[4].Referrer)

	lastEnd := col.payloads[6]
	assert.Equal(t, "/contact", lastEnd.Path)
	assert.Equal(t, 2000.0, *lastEnd.DurationMS)
	assert.Equal(t, 0.0, *lastEnd.ScrollMax)

	session := col.payloads[0].SessionID
	for _, p := range col.payloads {
		assert.Equal(t, session, p.SessionID, "one session across the visit")
	}
}
