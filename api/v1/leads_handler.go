package v1

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"storekriti/internal/leads"
	"storekriti/internal/metrics"
)

// CreateLeadAction stores a contact form submission.
func CreateLeadAction(ctx *cartridge.Context) error {
	var input leads.CreateInput
	if err := ctx.BodyParser(&input); err != nil {
		return handleError(ctx.Ctx, fiber.StatusBadRequest, msgInvalidBody)
	}
	input.IP = clientIP(ctx.Ctx)
	input.UserAgent = ctx.Get(fiber.HeaderUserAgent)

	lead, err := leads.Create(ctx.DBManager, ctx.Logger, input)
	if err != nil {
		var validationErr *leads.ValidationError
		if errors.As(err, &validationErr) {
			return handleError(ctx.Ctx, fiber.StatusBadRequest, validationErr.Message)
		}
		ctx.Logger.Error("Failed to store lead", slog.Any("error", err))
		return handleError(ctx.Ctx, fiber.StatusInternalServerError, err.Error())
	}

	metrics.LeadsCreated.WithLabelValues(metrics.LeadSourceLabel(lead.Source)).Inc()
	ctx.Logger.Info("Lead captured", slog.String("id", lead.ID), slog.String("source", lead.Source))
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok": true,
		"id": lead.ID,
	})
}
