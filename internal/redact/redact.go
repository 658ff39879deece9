// Package redact scrubs obvious PII out of values before they reach logs.
//
// A Scrubber replaces UUID-like identifiers, email addresses and phone
// numbers in free text, and fully masks sensitive headers (Authorization,
// Cookie, Set-Cookie plus any configured extras). It never inspects bodies.
package redact

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// Mask is the replacement for a masked header value.
const Mask = "[REDACTED]"

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so hex segments of a UUID never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

var defaultMasked = []string{"authorization", "cookie", "set-cookie"}

// Scrubber is immutable after New and safe for concurrent use.
type Scrubber struct {
	masked map[string]struct{}
}

// New returns a Scrubber masking the default sensitive headers plus extra.
// Header names match case-insensitively; blanks are ignored.
func New(extra ...string) *Scrubber {
	m := make(map[string]struct{}, len(defaultMasked)+len(extra))
	for _, h := range defaultMasked {
		m[h] = struct{}{}
	}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = struct{}{}
		}
	}
	return &Scrubber{masked: m}
}

// Text replaces identifiers, emails and phone numbers in s. UUIDs go first
// because the phone pattern would otherwise eat their digit runs.
func (s *Scrubber) Text(v string) string {
	if v == "" {
		return v
	}
	v = uuidRE.ReplaceAllString(v, "[REDACTED:id]")
	v = emailRE.ReplaceAllString(v, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(v, "[REDACTED:phone]")
}

// Masked reports whether header name is fully masked.
func (s *Scrubber) Masked(name string) bool {
	_, ok := s.masked[strings.ToLower(name)]
	return ok
}

// Headers flattens h into one value per name, masking sensitive headers and
// scrubbing the rest with Text. Multi-valued headers are joined with ", ".
func (s *Scrubber) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if s.Masked(k) {
			out[k] = Mask
			continue
		}
		out[k] = s.Text(strings.Join(vv, ", "))
	}
	return out
}

// MaskOnly is Headers without text scrubbing. The error log keeps raw
// header values for debugging but never credentials.
func (s *Scrubber) MaskOnly(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if s.Masked(k) {
			out[k] = Mask
			continue
		}
		out[k] = strings.Join(vv, ", ")
	}
	return out
}

// Names returns the masked header names, sorted.
func (s *Scrubber) Names() []string {
	out := make([]string, 0, len(s.masked))
	for k := range s.masked {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
