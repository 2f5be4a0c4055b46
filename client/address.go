package client

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// SanitizeAddress reduces "host:port", "http://host:port" or
// "tcp://host:port" to a dialable "host:port".
func SanitizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !strings.Contains(address, "://") {
		address = "tcp://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("error parsing peer URL: %w", err)
	}

	hostname, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", fmt.Errorf("error splitting host port from parsed URL: %w", err)
	}
	if hostname == "" || port == "" {
		return "", fmt.Errorf("invalid address %q: expected host:port", address)
	}

	if strings.Contains(hostname, ":") {
		// IPv6 Addreses need to be wrapped in brackets
		return fmt.Sprintf("[%s]:%s", hostname, port), nil
	}
	return fmt.Sprintf("%s:%s", hostname, port), nil
}

// ParseServerList splits a comma separated participant list. Empty entries
// are skipped and every address is sanitized.
func ParseServerList(list string) ([]string, error) {
	var out []string
	for _, addr := range strings.Split(list, ",") {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		sanitized, err := SanitizeAddress(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, sanitized)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no participant addresses in %q", list)
	}
	return out, nil
}
