package validation

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// MaxTermLength bounds a search term.
const MaxTermLength = 200

// DomainPattern defines a valid hostname: dot-separated labels of letters,
// digits and inner hyphens.
var DomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// NormalizeTerm trims a search term and collapses inner whitespace.
func NormalizeTerm(term string) string {
	return strings.Join(strings.Fields(term), " ")
}

// ValidateTerm checks a normalized search term.
func ValidateTerm(term string) (bool, string) {
	if term == "" {
		return false, "Term is required"
	}
	if len([]rune(term)) > MaxTermLength {
		return false, "Term is too long"
	}
	for _, r := range term {
		if unicode.IsControl(r) {
			return false, "Term contains control characters"
		}
	}
	return true, ""
}

// NormalizeDomain reduces a domain or URL to a bare lowercase host: the
// scheme, a leading "www.", any port and any path are stripped.
func NormalizeDomain(s string) string {
	d := strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if h, _, err := net.SplitHostPort(d); err == nil {
		d = h
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}

// ValidateDomain checks a project domain after normalization. IP literals in
// private or reserved ranges are refused.
func ValidateDomain(domain string) (bool, string) {
	d := NormalizeDomain(domain)
	if d == "" {
		return false, "Domain is required"
	}
	if ip := net.ParseIP(d); ip != nil {
		if IsPrivateIP(ip) {
			return false, "Domain points to a private or reserved IP address"
		}
		return true, ""
	}
	if len(d) > 253 || !DomainPattern.MatchString(d) {
		return false, "Invalid domain format"
	}
	return true, ""
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

// IsPrivateIP checks if an IP address is in a private/reserved range.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}

	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// Azure wire server
	return ip.Equal(net.ParseIP("168.63.129.16"))
}
