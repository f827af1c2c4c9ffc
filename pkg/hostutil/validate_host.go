// Package hostutil validates the bind address exeio's control plane is
// started on, before the HTTP listener and the lock file under pathguard are
// ever touched (§4.1 startup sequence).
package hostutil

import (
	"fmt"
	"net"
	"strings"
	"unicode"
)

// ValidateHost rejects a -H/--host value that isn't a usable IPv4 literal,
// IPv6 literal, or RFC 1123 hostname, before the control plane tries to bind
// it. A bad value here should fail startup loudly rather than surface later
// as an opaque "address already in use"-style listen error.
func ValidateHost(raw string) error {
	switch {
	case looksLikeIPv4(raw):
		if !validateIPv4(raw) {
			return fmt.Errorf("control plane host %q is not a valid IPv4 address", raw)
		}
	case looksLikeIPv6(raw):
		if !validateIPv6(raw) {
			return fmt.Errorf("control plane host %q is not a valid IPv6 address", raw)
		}
	default:
		if !validateHostname(raw) {
			return fmt.Errorf("control plane host %q is not a valid hostname", raw)
		}
	}
	return nil
}

// ValidatePort rejects a -P/--port value outside the range a TCP listener
// can actually bind (spec.md's default is 8080; any 1-65535 value is legal,
// but 0 means "let the OS pick" and would make the printed startup banner
// and the address operators open_questions/clients connect to lie).
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("control plane port %d is out of range (must be 1-65535)", port)
	}
	return nil
}

// looksLikeIPv4 checks if raw looks like dotted quad
func looksLikeIPv4(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}

// validateIPv4 parses and ensures all octets in range
func validateIPv4(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	return ip.To4() != nil
}

// looksLikeIPv6 checks if raw looks like IPv6 literal
func looksLikeIPv6(raw string) bool {
	// simplest heuristic: has ':' or wrapped in []
	return strings.Contains(raw, ":") || (strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]"))
}

// validateIPv6 parses as IPv6
func validateIPv6(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	return ip.To16() != nil && ip.To4() == nil
}

// validateHostname checks DNS label rules (RFC 1123)
func validateHostname(raw string) bool {
	if len(raw) > 253 {
		return false
	}
	labels := strings.Split(raw, ".")
	for _, label := range labels {
		if len(label) < 1 || len(label) > 63 {
			return false
		}
		// must be alnum or hyphen in the middle
		for i, r := range label {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
				return false
			}
			// no leading/trailing hyphen
			if (i == 0 || i == len(label)-1) && r == '-' {
				return false
			}
		}
	}
	return true
}
