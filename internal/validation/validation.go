package validation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
)

// SlugPattern defines the valid profile slug format: a two-letter locale, a slash,
// then lowercase alphanumeric words joined by single hyphens.
var SlugPattern = regexp.MustCompile(`^[a-z]{2}/[a-z0-9]+(?:-[a-z0-9]+)*$`)

// MaxSlugLength bounds stored slugs.
const MaxSlugLength = 200

// ValidateSlug checks if a slug matches the allowed pattern.
func ValidateSlug(slug string) bool {
	if slug == "" || len(slug) > MaxSlugLength {
		return false
	}
	return SlugPattern.MatchString(slug)
}

// NormalizeSlug lowercases a slug and strips surrounding slashes and a pasted
// profile URL prefix, so "https://www.kununu.com/de/SAP/" becomes "de/sap".
func NormalizeSlug(slug, profileBase string) string {
	s := strings.TrimSpace(slug)
	if profileBase != "" {
		base := strings.TrimRight(profileBase, "/")
		if len(s) >= len(base) && strings.EqualFold(s[:len(base)], base) {
			s = s[len(base):]
		}
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.Trim(s, "/"))
}

// IsJobSite reports whether urlStr points at one of the given job board hosts
// or their subdomains.
func IsJobSite(urlStr string, sites []string) bool {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, site := range sites {
		site = strings.ToLower(strings.TrimSpace(site))
		if site == "" {
			continue
		}
		if host == site || strings.HasSuffix(host, "."+site) {
			return true
		}
	}
	return false
}

// URL check errors.
var (
	ErrInvalidURL     = errors.New("invalid url")
	ErrPrivateAddress = errors.New("url points to a private or reserved address")
)

// reservedPrefixes are blocked on top of loopback, private, link-local and
// unspecified addresses: carrier-grade NAT and cloud metadata endpoints.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("168.63.129.16/32"),
	netip.MustParsePrefix("fd00:ec2::254/128"),
}

// CheckURL parses urlStr and requires an http or https scheme and a host.
func CheckURL(urlStr string) (*url.URL, error) {
	if urlStr == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return u, nil
}

// IsPrivateIP reports whether ip must not be fetched from.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	addr = addr.Unmap()
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// CheckFetchTarget runs CheckURL and rejects hosts that are, or resolve to, a
// private address. Unresolvable hosts are rejected too.
func CheckFetchTarget(ctx context.Context, urlStr string) error {
	u, err := CheckURL(urlStr)
	if err != nil {
		return err
	}

	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
		}
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve %s", ErrPrivateAddress, host)
	}
	for _, a := range addrs {
		if IsPrivateIP(a.IP) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateAddress, host, a.IP)
		}
	}
	return nil
}
