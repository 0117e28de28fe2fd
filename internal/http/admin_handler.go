package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"storekriti/internal/analytics"
	"storekriti/internal/auth"
	"storekriti/internal/config"
	"storekriti/internal/leads"
	"storekriti/internal/metrics"
)

type loginRequest struct {
	Password string `json:"password"`
}

// respondError writes the {ok:false, message} envelope every API error uses.
func respondError(ctx *cartridge.Context, status int, message string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"ok":      false,
		"message": message,
	})
}

// AdminLoginAction exchanges the admin password for a bearer token.
func AdminLoginAction(ctx *cartridge.Context) error {
	cfg := ctx.Config.(*config.Config)
	if !cfg.AdminConfigured() {
		ctx.Logger.Error("Admin login attempted without ADMIN_PASSWORD/ADMIN_JWT_SECRET")
		metrics.AdminLogins.WithLabelValues("misconfigured").Inc()
		return respondError(ctx, fiber.StatusInternalServerError, "Admin env missing")
	}

	var req loginRequest
	// An unparseable body is treated as an empty password.
	_ = ctx.BodyParser(&req)

	if err := auth.CheckPassword(cfg.AdminPassword, req.Password); err != nil {
		ctx.Logger.Warn("Admin login failed", slog.String("ip", ctx.IP()))
		metrics.AdminLogins.WithLabelValues("rejected").Inc()
		return respondError(ctx, fiber.StatusUnauthorized, "Invalid password")
	}

	token, err := auth.NewIssuer(cfg.AdminJWTSecret).Issue(time.Now())
	if err != nil {
		ctx.Logger.Error("Failed to issue admin token", slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, err.Error())
	}

	metrics.AdminLogins.WithLabelValues("accepted").Inc()
	ctx.Logger.Info("Admin logged in", slog.String("ip", ctx.IP()))
	return ctx.JSON(fiber.Map{
		"ok":    true,
		"token": token,
	})
}

// AdminLeadsAction lists leads newest first with search and pagination.
func AdminLeadsAction(ctx *cartridge.Context) error {
	params := leads.ListParams{
		Page:  ctx.QueryInt("page", 1),
		Limit: ctx.QueryInt("limit", leads.DefaultLimit),
		Query: ctx.Query("q"),
	}

	result, err := leads.List(ctx.DB(), params)
	if err != nil {
		ctx.Logger.Error("Failed to list leads", slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, err.Error())
	}

	return ctx.JSON(fiber.Map{
		"ok":    true,
		"page":  result.Page,
		"limit": result.Limit,
		"total": result.Total,
		"pages": result.Pages,
		"rows":  result.Rows,
	})
}

// AdminAnalyticsAction returns the traffic report for the trailing window
// selected by the days query parameter.
func AdminAnalyticsAction(ctx *cartridge.Context) error {
	started := time.Now()
	window := analytics.NewWindow(analytics.ParseDays(ctx.Query("days")), started)

	report, err := analytics.NewBuilder(ctx.DB(), ctx.Logger).Build(ctx.UserContext(), window)
	if err != nil {
		ctx.Logger.Error("Failed to build analytics report",
			slog.Int("days", window.Days),
			slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, err.Error())
	}

	metrics.ReportsServed.Inc()
	metrics.ReportDuration.Observe(time.Since(started).Seconds())

	return ctx.JSON(fiber.Map{
		"ok":            true,
		"window":        report.Window,
		"summary":       report.Summary,
		"top_pages":     report.TopPages,
		"top_events":    report.TopEvents,
		"top_countries": report.TopCountries,
		"top_referrers": report.TopReferrers,
	})
}
