package v1

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"storekriti/internal/ingest"
	"storekriti/internal/metrics"
	"storekriti/internal/pkg/geoip"
)

const msgInvalidBody = "invalid JSON body"

// handleError renders the {ok:false, message} envelope.
func handleError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"ok":      false,
		"message": message,
	})
}

// TrackAction accepts one tracking payload from the browser SDK or the Go tracker.
func TrackAction(ctx *cartridge.Context) error {
	var payload ingest.Payload
	if err := ctx.BodyParser(&payload); err != nil {
		metrics.TrackRejected.WithLabelValues("body").Inc()
		return handleError(ctx.Ctx, fiber.StatusBadRequest, msgInvalidBody)
	}

	collector := ingest.NewCollector(ctx.DBManager, ctx.Logger, geoip.Default())
	result, err := collector.Collect(ingest.Request{
		Payload:   payload,
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
		IP:        clientIP(ctx.Ctx),
		Received:  time.Now(),
	})
	if err != nil {
		var validationErr *ingest.ValidationError
		if errors.As(err, &validationErr) {
			metrics.TrackRejected.WithLabelValues("validation").Inc()
			ctx.Logger.Debug("Rejected tracking payload",
				slog.String("type", payload.Type),
				slog.String("reason", validationErr.Message))
			return handleError(ctx.Ctx, fiber.StatusBadRequest, validationErr.Message)
		}

		metrics.TrackRejected.WithLabelValues("storage").Inc()
		ctx.Logger.Error("Failed to store tracking payload",
			slog.String("type", payload.Type),
			slog.Any("error", err))
		return handleError(ctx.Ctx, fiber.StatusInternalServerError, err.Error())
	}

	metrics.TrackedEvents.WithLabelValues(string(result.Type)).Inc()
	return ctx.JSON(fiber.Map{"ok": true})
}
