package proxypool

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidEndpoint is wrapped by every rejection from Normalize.
var ErrInvalidEndpoint = errors.New("invalid proxy endpoint")

// Endpoint is a canonical proxy address. The zero value is not valid;
// endpoints are produced by Normalize.
type Endpoint struct {
	Scheme   string
	Username string
	Password string
	Host     string
	Port     int
}

// URL reconstructs the canonical form scheme://[user:pass@]host:port.
func (e Endpoint) URL() string {
	var sb strings.Builder
	sb.WriteString(e.Scheme)
	sb.WriteString("://")
	if e.Username != "" {
		sb.WriteString(e.Username)
		if e.Password != "" {
			sb.WriteString(":")
			sb.WriteString(e.Password)
		}
		sb.WriteString("@")
	}
	sb.WriteString(net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
	return sb.String()
}

// Address returns host:port without scheme or credentials.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Redacted returns the endpoint with any password masked, for logging.
func (e Endpoint) Redacted() string {
	if e.Username == "" {
		return e.URL()
	}
	return fmt.Sprintf("%s://%s@***", e.Scheme, e.Username)
}

// Normalize parses a raw proxy specifier into its canonical form. A missing
// scheme defaults to http. The host must be non-empty and, when it looks like
// an IPv4 dotted quad, each octet must be in range. The port must be in
// [1, 65535]. Normalize is pure and idempotent.
func Normalize(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("%w: empty specifier", ErrInvalidEndpoint)
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}
	if err := checkDottedQuad(host); err != nil {
		return Endpoint{}, err
	}

	portStr := u.Port()
	if portStr == "" {
		return Endpoint{}, fmt.Errorf("%w: missing port in %q", ErrInvalidEndpoint, raw)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: port %q out of range", ErrInvalidEndpoint, portStr)
	}

	ep := Endpoint{
		Scheme: strings.ToLower(u.Scheme),
		Host:   host,
		Port:   port,
	}
	if u.User != nil {
		ep.Username = u.User.Username()
		ep.Password, _ = u.User.Password()
	}

	return ep, nil
}

// checkDottedQuad rejects hosts that look like IPv4 literals but carry an
// out-of-range octet, e.g. 256.1.1.1. Hostnames pass through untouched.
func checkDottedQuad(host string) error {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return nil
	}
	for _, part := range parts {
		if part == "" {
			return nil
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return nil // not an IPv4 literal
			}
		}
	}
	for _, part := range parts {
		octet, err := strconv.Atoi(part)
		if err != nil || octet > 255 {
			return fmt.Errorf("%w: bad IPv4 octet %q in %q", ErrInvalidEndpoint, part, host)
		}
	}
	return nil
}
