package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "storekriti/api/v1"
	"storekriti/internal/config"
	"storekriti/internal/http"
	"storekriti/internal/http/middleware"
	"storekriti/internal/metrics"
)

func apiCORSConfig(cfg *config.Config) *cors.Config {
	return &cors.Config{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: "POST,GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, User-Agent",
	}
}

func preflight(ctx *cartridge.Context) error {
	return ctx.SendStatus(fiber.StatusNoContent)
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()
	corsConfig := apiCORSConfig(cfg)

	// Rate limits only apply in production; they would interfere with tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70/min per IP covers a busy visitor's tracking traffic.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Browser facing writes: CORS first so 403s still carry CORS headers,
	// then the global Sec-Fetch-Site check.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       corsConfig,
	}

	sdkConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       corsConfig,
	}

	loginConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         corsConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{authRateLimiter},
	}

	// Admin endpoints are bearer authenticated, so they also serve non-browser clients.
	adminAPIConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         corsConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{middleware.AdminAuth(cfg, logger)},
	}

	preflightConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         corsConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	opsConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
	}

	// === OPERATIONS ===
	srv.Get("/_health", http.HealthIndexAction, opsConfig)
	srv.Head("/_health", http.HealthIndexAction, opsConfig)
	srv.App().Get("/metrics", metrics.Handler())

	// === TRACKING ===
	srv.Get("/sdk.js", v1.GetSDKAction, sdkConfig)
	srv.Post("/api/track", v1.TrackAction, publicAPIConfig)
	srv.Options("/api/track", preflight, preflightConfig)

	// === LEADS ===
	srv.Post("/api/leads", v1.CreateLeadAction, publicAPIConfig)
	srv.Options("/api/leads", preflight, preflightConfig)

	// === ADMIN ===
	srv.Post("/api/admin/login", http.AdminLoginAction, loginConfig)
	srv.Options("/api/admin/login", preflight, preflightConfig)

	srv.Get("/api/admin/leads", http.AdminLeadsAction, adminAPIConfig)
	srv.Options("/api/admin/leads", preflight, preflightConfig)

	srv.Get("/api/admin/analytics", http.AdminAnalyticsAction, adminAPIConfig)
	srv.Options("/api/admin/analytics", preflight, preflightConfig)
}
