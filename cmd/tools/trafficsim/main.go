// main.go - Simulated visitor traffic for a running storekriti server
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"storekriti/internal/events"
	"storekriti/internal/tracker"
)

// SimConfig holds the configuration for a simulation run
type SimConfig struct {
	BaseURL     string
	Origin      string
	Visitors    int
	Concurrency int
	MaxPages    int
	Think       time.Duration
	LeadRate    float64
	StateDir    string // persists visitor identity between runs when set
	Timeout     time.Duration
}

// SimStats aggregates what all simulated visitors did
type SimStats struct {
	Visitors    atomic.Int64
	NewSessions atomic.Int64
	Pageviews   atomic.Int64
	Leads       atomic.Int64
	LeadErrors  atomic.Int64
	Sent        atomic.Int64
	Failed      atomic.Int64
	StartTime   time.Time
	EndTime     time.Time
}

var pages = []struct{ path, title string }{
	{"/", "Websites that sell"},
	{"/services", "Services"},
	{"/pricing", "Pricing"},
	{"/portfolio", "Our work"},
	{"/about", "About"},
	{"/testimonials", "What clients say"},
	{"/contact", "Contact us"},
}

var referrers = []string{"", "https://www.google.com/", "https://www.instagram.com/", "https://l.facebook.com/"}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of the server")
	origin := flag.String("origin", "https://example.com", "Origin header sent with every request")
	visitors := flag.Int("n", 50, "Number of visitors to simulate")
	concurrency := flag.Int("c", 10, "Number of visitors browsing at the same time")
	maxPages := flag.Int("pages", 5, "Maximum pages per visit")
	think := flag.Duration("think", 300*time.Millisecond, "Average time spent on a page")
	leadRate := flag.Float64("lead-rate", 0.1, "Share of visitors that submit the lead form")
	stateDir := flag.String("state", "", "Directory for persisted visitor identities (empty keeps them in memory)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg := &SimConfig{
		BaseURL:     *baseURL,
		Origin:      *origin,
		Visitors:    *visitors,
		Concurrency: max(1, *concurrency),
		MaxPages:    max(1, *maxPages),
		Think:       *think,
		LeadRate:    *leadRate,
		StateDir:    *stateDir,
		Timeout:     *timeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		fmt.Printf("Received signal %v, shutting down...\n", sig)
		cancel()
	}()

	fmt.Println("\n=== storekriti traffic simulator ===")
	fmt.Printf("  URL (-url):         %s\n", cfg.BaseURL)
	fmt.Printf("  Visitors (-n):      %d\n", cfg.Visitors)
	fmt.Printf("  Concurrency (-c):   %d\n", cfg.Concurrency)
	fmt.Printf("  Max pages (-pages): %d\n", cfg.MaxPages)
	fmt.Printf("  Think (-think):     %v\n", cfg.Think)
	fmt.Printf("  Lead rate:          %.2f\n", cfg.LeadRate)
	fmt.Println("====================================")

	stats := &SimStats{StartTime: time.Now()}
	run(ctx, cfg, stats, logger)
	stats.EndTime = time.Now()

	printResults(stats)
}

// run simulates cfg.Visitors visits with at most cfg.Concurrency in flight
func run(ctx context.Context, cfg *SimConfig, stats *SimStats, logger *slog.Logger) {
	client := &http.Client{Timeout: cfg.Timeout}
	slots := make(chan struct{}, cfg.Concurrency)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Visitors; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case slots <- struct{}{}:
		}

		wg.Add(1)
		go func(visitor int) {
			defer wg.Done()
			defer func() { <-slots }()
			if err := visit(ctx, cfg, client, visitor, stats, logger); err != nil {
				logger.Warn("visit failed", slog.Int("visitor", visitor), slog.Any("error", err))
			}
		}(i)
	}
	wg.Wait()
}

func openStore(cfg *SimConfig, visitor int) (tracker.Store, error) {
	if cfg.StateDir == "" {
		return tracker.NewMemoryStore(), nil
	}
	return tracker.OpenFileStore(filepath.Join(cfg.StateDir, fmt.Sprintf("visitor-%04d.json", visitor)))
}

// visit walks one visitor through a random journey
func visit(ctx context.Context, cfg *SimConfig, client *http.Client, visitor int, stats *SimStats, logger *slog.Logger) error {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(visitor)))

	store, err := openStore(cfg, visitor)
	if err != nil {
		return err
	}
	identity := tracker.NewIdentityStore(store)

	// Resolving the session up front tells us whether this visit rotated it.
	identity.GetSessionID()
	if identity.IsNewSession() {
		stats.NewSessions.Add(1)
	}
	stats.Visitors.Add(1)

	headers := http.Header{}
	headers.Set("Origin", cfg.Origin)
	headers.Set("Sec-Fetch-Site", "cross-site")
	headers.Set("User-Agent", userAgents[rng.IntN(len(userAgents))])

	emitter := tracker.NewEmitter(identity, tracker.EmitterOptions{
		BaseURL: cfg.BaseURL,
		Client:  client,
		Headers: headers,
		Logger:  logger,
	})
	lc := tracker.NewLifecycle(emitter)

	landing := pages[rng.IntN(len(pages))]
	lc.Start(ctx, landing.path, landing.title, referrers[rng.IntN(len(referrers))])
	stats.Pageviews.Add(1)

	steps := rng.IntN(cfg.MaxPages)
	for step := 0; step <= steps; step++ {
		if !pause(ctx, jitter(rng, cfg.Think)) {
			break
		}
		lc.Scroll(rng.IntN(101))

		if step == steps {
			break
		}
		next := pages[rng.IntN(len(pages))]
		lc.Navigate(ctx, next.path, next.title)
		stats.Pageviews.Add(1)
	}

	if rng.Float64() < cfg.LeadRate {
		id, err := submitLead(ctx, cfg, client, headers, visitor)
		if err != nil {
			stats.LeadErrors.Add(1)
			logger.Debug("lead submission failed", slog.Int("visitor", visitor), slog.Any("error", err))
		} else {
			stats.Leads.Add(1)
			emitter.TrackEvent(ctx, events.NameConversion, map[string]any{"lead_id": id, "source": "trafficsim"})
		}
	}

	lc.Suspend(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := emitter.Flush(flushCtx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	sent, failed := emitter.Stats()
	stats.Sent.Add(sent)
	stats.Failed.Add(failed)
	return nil
}

// submitLead posts the public lead form and returns the created id
func submitLead(ctx context.Context, cfg *SimConfig, client *http.Client, headers http.Header, visitor int) (string, error) {
	body, err := json.Marshal(map[string]string{
		"name":          fmt.Sprintf("Sim Visitor %d", visitor),
		"whatsapp":      fmt.Sprintf("+91 9%09d", visitor),
		"business_type": "Boutique",
		"message":       "Generated by trafficsim",
		"source":        "trafficsim",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/leads", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header = headers.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		OK      bool   `json:"ok"`
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusCreated || !out.OK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, out.Message)
	}
	return out.ID, nil
}

func jitter(rng *rand.Rand, d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rng.Int64N(int64(d)))
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func printResults(stats *SimStats) {
	elapsed := stats.EndTime.Sub(stats.StartTime)
	sent := stats.Sent.Load()

	fmt.Println("\n=== Results ===")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Elapsed:\t%v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Visitors:\t%d\n", stats.Visitors.Load())
	fmt.Fprintf(w, "New sessions:\t%d\n", stats.NewSessions.Load())
	fmt.Fprintf(w, "Pageviews:\t%d\n", stats.Pageviews.Load())
	fmt.Fprintf(w, "Leads:\t%d (%d failed)\n", stats.Leads.Load(), stats.LeadErrors.Load())
	fmt.Fprintf(w, "Tracking calls sent:\t%d\n", sent)
	fmt.Fprintf(w, "Tracking calls failed:\t%d\n", stats.Failed.Load())
	if elapsed > 0 {
		fmt.Fprintf(w, "Throughput:\t%.1f calls/s\n", float64(sent)/elapsed.Seconds())
	}
	w.Flush()
}
