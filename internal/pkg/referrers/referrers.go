// Package referrers groups raw referrer URLs into traffic sources.
package referrers

import (
	"net/url"
	"strings"
)

// Direct is the source of sessions that arrived without a referrer.
const Direct = "Direct"

// Hostnames mapped to the source they belong to. Subdomains of a listed host
// resolve to the same source.
var knownSources = map[string]string{
	// Search engines
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
	"ecosia.org":     "Ecosia",
	"yandex.ru":      "Yandex",
	"baidu.com":      "Baidu",

	// Social and messaging
	"facebook.com":  "Facebook",
	"fb.com":        "Facebook",
	"fb.me":         "Facebook",
	"instagram.com": "Instagram",
	"threads.net":   "Threads",
	"whatsapp.com":  "WhatsApp",
	"wa.me":         "WhatsApp",
	"linkedin.com":  "LinkedIn",
	"lnkd.in":       "LinkedIn",
	"x.com":         "X/Twitter",
	"twitter.com":   "X/Twitter",
	"t.co":          "X/Twitter",
	"youtube.com":   "YouTube",
	"youtu.be":      "YouTube",
	"pinterest.com": "Pinterest",
	"pin.it":        "Pinterest",
	"reddit.com":    "Reddit",
	"quora.com":     "Quora",
	"telegram.org":  "Telegram",
	"t.me":          "Telegram",
	"snapchat.com":  "Snapchat",

	// Business listings
	"justdial.com":  "Justdial",
	"indiamart.com": "IndiaMART",
	"g.page":        "Google Business",

	// Email
	"mail.google.com":    "Gmail",
	"outlook.live.com":   "Outlook",
	"outlook.office.com": "Outlook",

	// Link shorteners
	"bit.ly":      "Bitly",
	"tinyurl.com": "TinyURL",
	"linktr.ee":   "Linktree",
}

// Source classifies a referrer URL. Empty referrers are Direct; unknown hosts
// are returned without a leading "www.".
func Source(referrer string) string {
	host := hostname(referrer)
	if host == "" {
		return Direct
	}
	return FriendlyName(host)
}

// FriendlyName returns the source name for a hostname.
func FriendlyName(host string) string {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSuffix(host, ".")), "www.")

	for candidate := host; candidate != ""; {
		if name, ok := knownSources[candidate]; ok {
			return name
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}

	// google.com, google.co.in, news.google.com and so on. Mail is matched above.
	if isGoogle(host) {
		return "Google"
	}
	return host
}

func isGoogle(host string) bool {
	labels := strings.Split(host, ".")
	for i, label := range labels {
		if label == "google" && i < len(labels)-1 {
			return true
		}
	}
	return false
}

func hostname(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}
	if !strings.Contains(referrer, "://") {
		referrer = "https://" + referrer
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
