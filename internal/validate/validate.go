package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// IdentRe matches valid identifiers used for plugin slugs, repository owners and names.
// Must start with alphanumeric, followed by alphanumeric, dots, hyphens, or underscores.
var IdentRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// MaxIdentLen is the maximum length for identifiers.
const MaxIdentLen = 128

// hostLabelRe matches one DNS label.
var hostLabelRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// Ident validates a string as a valid identifier.
func Ident(s string) bool {
	return len(s) > 0 && len(s) <= MaxIdentLen && IdentRe.MatchString(s) && !strings.Contains(s, "..")
}

// HTTPURL ensures the URL uses http or https scheme and has a non-empty host
// to prevent SSRF via file://, ftp://, or other dangerous schemes.
func HTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		// OK
	case "":
		return fmt.Errorf("URL missing scheme: %s", rawURL)
	default:
		return fmt.Errorf("URL scheme %q not allowed (only http/https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL missing host: %s", rawURL)
	}
	return nil
}

// Numeric reports whether s parses as a number, including signed, decimal
// and exponent forms ("12345", "-1.5", "1e3"). Surrounding whitespace is ignored.
func Numeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return false
	}
	// ParseFloat accepts "Inf" and "NaN" spellings; those are words, not numbers.
	lower := strings.ToLower(strings.TrimLeft(s, "+-"))
	return !strings.HasPrefix(lower, "inf") && !strings.HasPrefix(lower, "nan")
}

// Domain validates a bare host name or an http(s) URL carrying one.
func Domain(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("domain is empty")
	}
	host := s
	if strings.Contains(s, "://") {
		if err := HTTPURL(s); err != nil {
			return err
		}
		u, _ := url.Parse(s)
		host = u.Hostname()
	}
	if len(host) > 253 {
		return fmt.Errorf("domain %q is too long", host)
	}
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	for _, label := range labels {
		if !hostLabelRe.MatchString(label) {
			return fmt.Errorf("domain %q has invalid label %q", host, label)
		}
	}
	return nil
}

// Boolean accepts the checkbox encodings "", "0" and "1".
func Boolean(s string) bool {
	switch s {
	case "", "0", "1":
		return true
	}
	return false
}
