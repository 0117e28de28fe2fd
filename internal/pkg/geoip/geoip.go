// Package geoip resolves client IPs to a coarse location using a GeoLite2 database.
// The database is optional; without it every lookup returns an empty Location.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Location is the coarse geo data attached to a session.
type Location struct {
	Country string // ISO 3166-1 alpha-2
	City    string
}

// Resolver looks up locations in a GeoLite2 City or Country database.
type Resolver struct {
	mu     sync.RWMutex
	path   string
	reader *geoip2.Reader
	logger *slog.Logger
}

var (
	defaultResolver *Resolver
	defaultMu       sync.RWMutex
)

// Open loads the database at path. An empty or missing path yields a Resolver
// whose lookups always return an empty Location.
func Open(path string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{path: path, logger: logger}
	r.reader = r.load()
	return r
}

func (r *Resolver) load() *geoip2.Reader {
	if r.path == "" {
		r.logger.Debug("GeoIP database path not configured - geo enrichment disabled")
		return nil
	}

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		r.logger.Info("GeoLite2 database not found - geo enrichment disabled",
			slog.String("path", r.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		r.logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	reader, err := geoip2.Open(r.path)
	if err != nil {
		r.logger.Error("Failed to open GeoLite2 database",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	r.logger.Info("GeoLite2 database initialized",
		slog.String("path", r.path),
		slog.String("db_type", reader.Metadata().DatabaseType))
	return reader
}

// Enabled reports whether a database is loaded.
func (r *Resolver) Enabled() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reader != nil
}

// Lookup resolves ip. Unknown or private addresses yield an empty Location.
func (r *Resolver) Lookup(ip string) Location {
	if r == nil {
		return Location{}
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return Location{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reader == nil {
		return Location{}
	}

	if record, err := r.reader.City(parsed); err == nil {
		return Location{
			Country: record.Country.IsoCode,
			City:    record.City.Names["en"],
		}
	}

	// Country-only databases reject City lookups.
	record, err := r.reader.Country(parsed)
	if err != nil {
		r.logger.Debug("GeoIP lookup failed", slog.String("ip", ip), slog.Any("error", err))
		return Location{}
	}
	return Location{Country: record.Country.IsoCode}
}

// Reload reopens the database from disk, for example after an update.
func (r *Resolver) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader != nil {
		r.reader.Close()
	}
	r.reader = r.load()
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return err
}

// SetDefault installs the process-wide resolver used by request handlers.
func SetDefault(r *Resolver) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultResolver = r
}

// Default returns the process-wide resolver, or nil when none was installed.
func Default() *Resolver {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultResolver
}
