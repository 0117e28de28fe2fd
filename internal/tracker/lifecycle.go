package tracker

import (
	"context"
	"sync"
	"time"

	"storekriti/internal/events"
)

// MinPageDuration filters out pages left immediately, such as redirects.
const MinPageDuration = 250 * time.Millisecond

// PageContext is the state of the page currently open.
type PageContext struct {
	Path      string
	Title     string
	Start     time.Time
	ScrollMax int
}

// Elapsed is how long the page has been open at now.
func (p PageContext) Elapsed(now time.Time) time.Duration {
	return now.Sub(p.Start)
}

// Lifecycle sequences emitter calls across page navigation.
type Lifecycle struct {
	emitter *Emitter
	now     func() time.Time

	mu      sync.Mutex
	started bool
	page    *PageContext
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithLifecycleClock replaces time.Now.
func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) { l.now = now }
}

func NewLifecycle(emitter *Emitter, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{emitter: emitter, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start sends session_start and the session_active marker, then opens the
// first page. Only the first call has any effect.
func (l *Lifecycle) Start(ctx context.Context, path, title, referrer string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true

	l.emitter.SetPath(path)
	l.emitter.TrackSessionStart(ctx, SessionStart{LandingPath: path, Referrer: referrer})
	l.emitter.TrackEvent(ctx, events.NameSessionActive, nil)
	l.open(ctx, path, title, referrer)
}

// Navigate closes the current page, if it was open long enough to count,
// and opens path.
func (l *Lifecycle) Navigate(ctx context.Context, path, title string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	referrer := ""
	if l.page != nil {
		referrer = l.page.Path
		if l.page.Elapsed(l.now()) > MinPageDuration {
			l.flush(ctx)
		}
	}
	l.open(ctx, path, title, referrer)
}

// Scroll records a scroll depth percentage for the current page.
func (l *Lifecycle) Scroll(percent int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.page == nil {
		return
	}
	percent = min(100, max(0, percent))
	if percent > l.page.ScrollMax {
		l.page.ScrollMax = percent
	}
}

// Suspend flushes pageview_end for the current page, for a hidden tab or an
// unload. The page stays open; repeated flushes overwrite each other server side.
func (l *Lifecycle) Suspend(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.page != nil {
		l.flush(ctx)
	}
}

// Page returns a copy of the current page context.
func (l *Lifecycle) Page() (PageContext, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.page == nil {
		return PageContext{}, false
	}
	return *l.page, true
}

func (l *Lifecycle) open(ctx context.Context, path, title, referrer string) {
	if path == "" {
		path = "/"
	}
	l.page = &PageContext{Path: path, Title: title, Start: l.now()}
	l.emitter.TrackPageview(ctx, path, title, referrer)
}

func (l *Lifecycle) flush(ctx context.Context) {
	elapsed := l.page.Elapsed(l.now())
	l.emitter.TrackPageviewEnd(ctx, l.page.Path, elapsed.Milliseconds(), l.page.ScrollMax)
}
