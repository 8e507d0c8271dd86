// SPDX-License-Identifier: MIT

// Package netutil keeps the URLs this service touches safe to dial and
// safe to log. The config layer runs the upstream base URL through
// ValidateBaseURL at load time and on every hot reload, and log lines
// only ever carry the SanitizeURL form.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// SanitizeURL strips credentials and the query string so a URL can be
// written to a log line. Unparseable input comes back as a fixed
// placeholder.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// ValidateBaseURL checks that raw is a plain absolute http(s) URL and
// returns it in canonical form: lowercase scheme, IDNA ASCII host,
// canonical IP literals, no trailing slash. Credentials, query strings
// and fragments are rejected rather than silently dropped.
func ValidateBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("base url does not parse: %s", SanitizeURL(raw))
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme != "http" && scheme != "https":
		return "", fmt.Errorf("base url scheme must be http or https: %s", SanitizeURL(raw))
	case u.Host == "":
		return "", fmt.Errorf("base url has no host: %s", SanitizeURL(raw))
	case u.User != nil:
		return "", fmt.Errorf("base url must not embed credentials: %s", SanitizeURL(raw))
	case u.RawQuery != "":
		return "", fmt.Errorf("base url must not carry a query: %s", SanitizeURL(raw))
	case u.Fragment != "":
		return "", fmt.Errorf("base url must not carry a fragment: %s", SanitizeURL(raw))
	}

	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return "", err
	}
	switch port := u.Port(); {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		// Portless IPv6 literals need their brackets back.
		host = "[" + host + "]"
	}

	u.Scheme = scheme
	u.Host = host
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

// canonicalHost rewrites a parsed hostname into the form the client
// dials: IP literals in canonical notation, names mapped through IDNA to
// their ASCII labels, everything lowercased. Zone-scoped IPv6 literals
// are rejected, a zone means nothing off the local machine.
func canonicalHost(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	switch {
	case name == "":
		return "", errors.New("base url has no host")
	case strings.Contains(name, "%"):
		return "", fmt.Errorf("zone-scoped host %q is not routable", name)
	}

	if ip := net.ParseIP(name); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", name, err)
	}
	return strings.ToLower(ascii), nil
}
