package ytdlp

import (
	"net/url"
	"strings"
)

// hostCorrections maps known malformed platform domains to the real one.
var hostCorrections = map[string]string{
	"tiktok.con":  "tiktok.com",
	"tiktok.cm":   "tiktok.com",
	"tiktock.com": "tiktok.com",
	"tictok.com":  "tiktok.com",
	"tik-tok.com": "tiktok.com",
	"tiktokk.com": "tiktok.com",
	"tiktok.om":   "tiktok.com",
}

// NormalizeURL trims the URL and rewrites known host typos, keeping any
// subdomain, port, path, and query intact. Inputs that do not parse are
// returned trimmed but otherwise untouched so yt-dlp can report on them.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Host == "" {
		return trimmed
	}

	host := strings.ToLower(parsed.Hostname())
	fixed, ok := correctHost(host)
	if !ok {
		if candidate != trimmed {
			return candidate
		}
		return trimmed
	}
	if port := parsed.Port(); port != "" {
		fixed += ":" + port
	}
	parsed.Host = fixed
	return parsed.String()
}

func correctHost(host string) (string, bool) {
	for typo, fix := range hostCorrections {
		if host == typo {
			return fix, true
		}
		if strings.HasSuffix(host, "."+typo) {
			return strings.TrimSuffix(host, typo) + fix, true
		}
	}
	return host, false
}
