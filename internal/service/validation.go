package service

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidDomain indicates the submitted domain is not a plausible
// registrable domain name.
var ErrInvalidDomain = errors.New("invalid domain")

var (
	domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)
	idnaProfile   = idna.Lookup
)

// NormalizeDomain validates and canonicalizes a user-submitted domain.
// Pasted URLs are tolerated: scheme, path and port are stripped before
// validation. Internationalized names are converted to their ASCII form.
func NormalizeDomain(raw string) (string, error) {
	domain := strings.ToLower(strings.TrimSpace(raw))
	if domain == "" {
		return "", ErrInvalidDomain
	}

	if idx := strings.Index(domain, "://"); idx != -1 {
		domain = domain[idx+3:]
	}
	domain = strings.TrimPrefix(domain, "www.")
	if idx := strings.IndexAny(domain, "/?#"); idx != -1 {
		domain = domain[:idx]
	}
	if idx := strings.Index(domain, ":"); idx != -1 {
		domain = domain[:idx]
	}
	domain = strings.Trim(domain, ".")

	ascii, err := idnaProfile.ToASCII(domain)
	if err != nil || ascii == "" {
		return "", ErrInvalidDomain
	}

	if !domainPattern.MatchString(ascii) {
		return "", ErrInvalidDomain
	}
	return ascii, nil
}
