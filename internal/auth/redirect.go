package auth

import (
	"net/url"
	"strings"
)

// RedirectPolicy validates caller-supplied return URLs against a fixed
// allow-list of trusted parent domains. It is the sole defense against
// open-redirect abuse: every endpoint that redirects to a caller-supplied
// destination must resolve the target through it first.
type RedirectPolicy struct {
	allowed []string
}

// NewRedirectPolicy builds a policy from the configured parent domains
// (e.g. "cns-studios.com"). Entries are normalized to lowercase with
// surrounding whitespace trimmed; empty entries are dropped.
func NewRedirectPolicy(domains []string) *RedirectPolicy {
	allowed := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			allowed = append(allowed, d)
		}
	}
	return &RedirectPolicy{allowed: allowed}
}

// ResolveReturnTarget decides whether rawURI may be followed.
//
// The target is accepted only if it parses as an ABSOLUTE http or https URL
// whose hostname exactly equals an allow-listed domain or is a subdomain of
// one (dot-separated — "app.cns-studios.com" passes, the look-alike
// "evil-cns-studios.com" and "cns-studios.com.evil.com" do not). Everything
// else — relative or scheme-relative URLs, javascript:/data: schemes,
// unparseable input — returns ("", false) and the caller falls back to a
// safe default response instead of redirecting.
func (p *RedirectPolicy) ResolveReturnTarget(rawURI string) (string, bool) {
	if rawURI == "" {
		return "", false
	}

	u, err := url.Parse(rawURI)
	if err != nil {
		return "", false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}

	for _, domain := range p.allowed {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return u.String(), true
		}
	}

	return "", false
}
