// Package internal wires configuration, storage, background jobs and routes
// into a runnable application.
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"storekriti/internal/config"
	"storekriti/internal/database"
	"storekriti/internal/jobs"
	"storekriti/internal/pkg/geoip"
)

// Application wraps cartridge.Application with the migrating DB manager.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Geo       *geoip.Resolver
}

// NewApp creates a new application instance from the process config.
func NewApp() (*Application, error) {
	return NewAppWithRoutes(config.GetConfig(), MountAppRoutes)
}

// NewAppWithRoutes creates an application with a custom route mounting function.
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Handlers read the resolver through geoip.Default.
	geo := geoip.Open(cfg.GeoDBPath, logger)
	geoip.SetDefault(geo)

	scheduler := jobs.NewDefaultScheduler(dbManager, logger, cfg)

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		geo.Close()
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Geo:         geo,
	}, nil
}
