package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"

	"storekriti/internal/events"
	"storekriti/internal/ingest"
	"storekriti/internal/leads"
	"storekriti/internal/pkg/geoip"
)

// Seeder generates realistic landing page traffic and leads. Traffic goes
// through the same collector the tracking endpoint uses, with backdated
// timestamps spread over the last Days days.
type Seeder struct {
	DBManager    cartridge.DBManager
	Logger       *slog.Logger
	SessionCount int
	Days         int
	LeadRate     float64

	rng *rand.Rand
}

// Stats summarizes a seeding run.
type Stats struct {
	Visitors  int
	Sessions  int
	Pageviews int
	Events    int
	Leads     int
}

// NewSeeder creates a seeder producing sessionCount sessions over the last 30 days.
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, sessionCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		SessionCount: sessionCount,
		Days:         30,
		LeadRate:     0.08,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithSeed makes the run deterministic.
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return s
}

var journeyTemplates = [][]string{
	{"/", "/services", "/pricing", "/contact"},
	{"/", "/portfolio", "/portfolio/boutique-store", "/contact"},
	{"/", "/pricing"},
	{"/pricing", "/services", "/contact"},
	{"/", "/about", "/testimonials"},
	{"/blog/launch-your-store", "/", "/pricing", "/contact"},
	{"/", "/services/ecommerce", "/services/seo", "/pricing"},
	{"/"},
}

var pageTitles = map[string]string{
	"/":                         "Websites that sell",
	"/services":                 "Services",
	"/services/ecommerce":       "E-commerce stores",
	"/services/seo":             "SEO",
	"/pricing":                  "Pricing",
	"/contact":                  "Contact us",
	"/portfolio":                "Our work",
	"/portfolio/boutique-store": "Case study: boutique store",
	"/about":                    "About",
	"/testimonials":             "What clients say",
	"/blog/launch-your-store":   "How to launch your store",
}

var referrers = []string{
	"",
	"",
	"https://www.google.com/",
	"https://www.instagram.com/",
	"https://l.facebook.com/",
	"https://www.linkedin.com/",
	"https://duckduckgo.com/",
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
}

var countries = []struct{ code, city string }{
	{"IN", "Mumbai"},
	{"IN", "Bengaluru"},
	{"IN", "Delhi"},
	{"AE", "Dubai"},
	{"US", "New York"},
	{"GB", "London"},
	{"SG", "Singapore"},
}

var businessTypes = []string{"Boutique", "Restaurant", "Clinic", "Coaching", "Bakery", "Real estate"}
var budgets = []string{"< 25k", "25k - 50k", "50k - 1L", "1L+"}
var timelines = []string{"ASAP", "This month", "In 1-3 months", "Just exploring"}

// Run generates the configured amount of traffic.
func (s *Seeder) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	s.Logger.Info("Seeding traffic...", slog.Int("sessions", s.SessionCount), slog.Int("days", s.Days))

	collector := ingest.NewCollector(s.DBManager, s.Logger, geoip.Default())
	var stats Stats

	// Roughly a third of sessions come from returning visitors.
	visitorPool := make([]string, 0, s.SessionCount)

	for i := 0; i < s.SessionCount; i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var visitorID string
		if len(visitorPool) > 0 && s.rng.Float64() < 0.33 {
			visitorID = visitorPool[s.rng.IntN(len(visitorPool))]
		} else {
			visitorID = fmt.Sprintf("v_seed%x", s.rng.Uint64())
			visitorPool = append(visitorPool, visitorID)
			stats.Visitors++
		}

		n, err := s.seedSession(collector, visitorID)
		if err != nil {
			return stats, fmt.Errorf("seed session: %w", err)
		}
		stats.Sessions++
		stats.Pageviews += n.Pageviews
		stats.Events += n.Events

		if s.rng.Float64() < s.LeadRate {
			if err := s.seedLead(collector, visitorID); err != nil {
				return stats, fmt.Errorf("seed lead: %w", err)
			}
			stats.Leads++
			stats.Events++
		}
	}

	s.Logger.Info("Seeding completed",
		slog.Int("visitors", stats.Visitors),
		slog.Int("sessions", stats.Sessions),
		slog.Int("pageviews", stats.Pageviews),
		slog.Int("events", stats.Events),
		slog.Int("leads", stats.Leads),
		slog.Duration("elapsed", time.Since(start)))
	return stats, nil
}

func (s *Seeder) seedSession(collector *ingest.Collector, visitorID string) (Stats, error) {
	var stats Stats
	journey := journeyTemplates[s.rng.IntN(len(journeyTemplates))]
	sessionID := fmt.Sprintf("s_seed%x", s.rng.Uint64())
	referrer := referrers[s.rng.IntN(len(referrers))]
	ua := userAgents[s.rng.IntN(len(userAgents))]
	place := countries[s.rng.IntN(len(countries))]

	at := time.Now().Add(-time.Duration(s.rng.Int64N(int64(s.Days) * int64(24*time.Hour))))

	send := func(p ingest.Payload) error {
		p.VisitorID = visitorID
		p.SessionID = sessionID
		_, err := collector.Collect(ingest.Request{Payload: p, UserAgent: ua, Received: at})
		return err
	}

	if err := send(ingest.Payload{
		Type:        string(ingest.TypeSessionStart),
		Path:        journey[0],
		LandingPath: journey[0],
		Referrer:    referrer,
		Country:     place.code,
		City:        place.city,
	}); err != nil {
		return stats, err
	}
	if err := send(ingest.Payload{Type: string(ingest.TypeEvent), Path: journey[0], Name: events.NameSessionActive}); err != nil {
		return stats, err
	}
	stats.Events++

	for i, path := range journey {
		pageReferrer := referrer
		if i > 0 {
			pageReferrer = ""
		}
		if err := send(ingest.Payload{
			Type:     string(ingest.TypePageview),
			Path:     path,
			Title:    pageTitles[path],
			Referrer: pageReferrer,
		}); err != nil {
			return stats, err
		}
		stats.Pageviews++

		dwell := time.Duration(3+s.rng.IntN(180)) * time.Second
		at = at.Add(dwell)
		duration := float64(dwell.Milliseconds())
		scroll := float64(10 + s.rng.IntN(91))
		if err := send(ingest.Payload{
			Type:       string(ingest.TypePageviewEnd),
			Path:       path,
			DurationMS: &duration,
			ScrollMax:  &scroll,
		}); err != nil {
			return stats, err
		}

		if path == "/pricing" && s.rng.Float64() < 0.4 {
			props, _ := json.Marshal(map[string]any{"plan": []string{"starter", "growth", "pro"}[s.rng.IntN(3)]})
			if err := send(ingest.Payload{Type: string(ingest.TypeEvent), Path: path, Name: "cta_click", Props: props}); err != nil {
				return stats, err
			}
			stats.Events++
		}
		at = at.Add(time.Duration(1+s.rng.IntN(5)) * time.Second)
	}
	return stats, nil
}

func (s *Seeder) seedLead(collector *ingest.Collector, visitorID string) error {
	source := []string{"page", "popup", ""}[s.rng.IntN(3)]
	lead, err := leads.Create(s.DBManager, s.Logger, leads.CreateInput{
		Name:          fmt.Sprintf("Seed Lead %04d", s.rng.IntN(10000)),
		WhatsApp:      fmt.Sprintf("+91 9%09d", s.rng.IntN(1_000_000_000)),
		BusinessType:  businessTypes[s.rng.IntN(len(businessTypes))],
		BudgetRange:   budgets[s.rng.IntN(len(budgets))],
		StartTimeline: timelines[s.rng.IntN(len(timelines))],
		Motivation:    "Looking to get more customers online",
		Source:        source,
	})
	if err != nil {
		return err
	}

	props, _ := json.Marshal(map[string]any{"lead_id": lead.ID, "source": lead.Source})
	_, err = collector.Collect(ingest.Request{
		Payload: ingest.Payload{
			Type:      string(ingest.TypeEvent),
			VisitorID: visitorID,
			SessionID: fmt.Sprintf("s_seed%x", s.rng.Uint64()),
			Path:      "/contact",
			Name:      events.NameConversion,
			Props:     props,
		},
		Received: time.Now().Add(-time.Duration(s.rng.Int64N(int64(s.Days) * int64(24*time.Hour)))),
	})
	return err
}
