package payload

import (
	"regexp"
	"strings"
)

// bareDomain matches "example.com", "sub.example.co/path", "host.io:8080"
// and similar inputs typed without a scheme.
var bareDomain = regexp.MustCompile(`(?i)^[a-z0-9.-]+\.[a-z]{2,}([/:?].*)?$`)

// NormalizeURL trims s and prefixes https:// when it looks like a bare
// domain. Empty input yields "". Applying it twice returns the same string.
func NormalizeURL(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if !strings.Contains(t, "://") && bareDomain.MatchString(t) {
		t = "https://" + t
	}
	return t
}
