package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyHeaders are consulted in order after X-Forwarded-For.
var proxyHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

// clientIP returns the first public address announced by a reverse proxy,
// falling back to the socket peer address.
func clientIP(c *fiber.Ctx) string {
	if ip := firstPublic(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")); ip != "" {
		return ip
	}
	for _, header := range proxyHeaders {
		if value := c.Get(header); value != "" {
			if ip := firstPublic([]string{value}); ip != "" {
				return ip
			}
		}
	}
	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := firstPublic(forwardedFor(forwarded)); ip != "" {
			return ip
		}
	}

	if addr, ok := parseAddr(c.Context().RemoteAddr().String()); ok {
		return addr.String()
	}
	return c.IP()
}

// firstPublic returns the first public IPv4 in values, or the first public
// IPv6 when no IPv4 is present.
func firstPublic(values []string) string {
	var v6 string
	for _, raw := range values {
		addr, ok := parseAddr(raw)
		if !ok || !isPublic(addr) {
			continue
		}
		if addr.Is4() {
			return addr.String()
		}
		if v6 == "" {
			v6 = addr.String()
		}
	}
	return v6
}

func isPublic(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsUnspecified()
}

// parseAddr accepts bare addresses, host:port, bracketed IPv6, zones and quotes.
func parseAddr(raw string) (netip.Addr, bool) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return netip.Addr{}, false
	}

	if ap, err := netip.ParseAddrPort(clean); err == nil {
		return ap.Addr().Unmap().WithZone(""), true
	}

	clean = strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(clean); err == nil {
		return addr.Unmap().WithZone(""), true
	}
	return netip.Addr{}, false
}

// forwardedFor extracts the for= values of an RFC 7239 Forwarded header.
func forwardedFor(header string) []string {
	var out []string
	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
				out = append(out, part[4:])
			}
		}
	}
	return out
}

// generateETag creates a strong ETag from content using SHA-256
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}
