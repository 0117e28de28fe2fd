package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"storekriti/internal/pkg/geoip"
)

var errNoConnection = errors.New("database connection unavailable")

// HealthStatus is the liveness payload.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"db_status"`
	GeoIP     bool      `json:"geoip"`
}

// HealthIndexAction pings the database. A failed ping reports "degraded"
// with a 503 so load balancers stop routing to the instance.
func HealthIndexAction(ctx *cartridge.Context) error {
	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Database:  "ok",
		GeoIP:     geoip.Default().Enabled(),
	}

	if err := pingDatabase(ctx); err != nil {
		ctx.Logger.Error("Health check database ping failed", slog.Any("error", err))
		health.Status = "degraded"
		health.Database = "error"
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return ctx.JSON(health)
}

func pingDatabase(ctx *cartridge.Context) error {
	db := ctx.DBManager.GetConnection()
	if db == nil {
		return errNoConnection
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx.UserContext())
}
