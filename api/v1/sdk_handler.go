package v1

import (
	"bytes"
	_ "embed"
	"log/slog"
	"strings"
	"sync"
	"text/template"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

//go:embed sdk.js
var sdkSource string

var sdkTemplate = sync.OnceValues(func() (*template.Template, error) {
	return template.New("sdk.js").Parse(sdkSource)
})

// GetSDKAction serves the browser tracker with the collection endpoint baked in.
func GetSDKAction(ctx *cartridge.Context) error {
	tmpl, err := sdkTemplate()
	if err != nil {
		ctx.Logger.Error("Failed to parse SDK template", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{
		"BaseURL": strings.TrimSuffix(ctx.BaseURL(), "/"),
	}); err != nil {
		ctx.Logger.Error("Failed to render SDK template", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	content := buf.Bytes()
	etag := generateETag(content)
	if ctx.Get(fiber.HeaderIfNoneMatch) == etag {
		return ctx.Status(fiber.StatusNotModified).Send(nil)
	}

	ctx.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
	ctx.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	ctx.Set(fiber.HeaderETag, etag)
	ctx.Set("Cross-Origin-Resource-Policy", "cross-origin")
	return ctx.Send(content)
}
