package sanitizer

import (
	"net/url"
	"strings"
)

// NormalizeURL upgrades links to https, lower-cases the host and drops a
// trailing slash and the fragment. Input that does not parse is returned
// trimmed so validation can reject it.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Host == "" {
		return ""
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	u.Fragment = ""
	return u.String()
}
