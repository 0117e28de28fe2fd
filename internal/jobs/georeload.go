package jobs

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"storekriti/internal/pkg/geoip"
)

// GeoReloadJob reopens the GeoIP database when the file on disk changes, so a
// database replaced by an external updater is picked up without a restart.
type GeoReloadJob struct {
	resolver *geoip.Resolver
	path     string
	interval time.Duration
	logger   *slog.Logger
	lastMod  time.Time
}

func NewGeoReloadJob(resolver *geoip.Resolver, path string, interval time.Duration, logger *slog.Logger) *GeoReloadJob {
	j := &GeoReloadJob{
		resolver: resolver,
		path:     path,
		interval: interval,
		logger:   logger,
	}
	if info, err := os.Stat(path); err == nil {
		j.lastMod = info.ModTime()
	}
	return j
}

func (j *GeoReloadJob) Name() string { return "geoip_reload" }

func (j *GeoReloadJob) Interval() time.Duration { return j.interval }

// Run reloads the resolver if the database file is newer than the last load.
func (j *GeoReloadJob) Run(ctx context.Context) error {
	if j.resolver == nil || j.path == "" {
		return nil
	}

	info, err := os.Stat(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		j.logger.Debug("GeoIP database not present", slog.String("path", j.path))
		return nil
	}
	if err != nil {
		return err
	}

	if !info.ModTime().After(j.lastMod) {
		return nil
	}

	j.resolver.Reload()
	j.lastMod = info.ModTime()
	j.logger.Info("GeoIP database reloaded",
		slog.String("path", j.path),
		slog.Bool("enabled", j.resolver.Enabled()))
	return nil
}
