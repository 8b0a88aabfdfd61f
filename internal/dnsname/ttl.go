package dnsname

import (
	"errors"
	"fmt"
)

// MaxTTL is the largest representable TTL value (a 32-bit unsigned field).
const MaxTTL = 1<<32 - 1

// ErrBadTTL is the sentinel wrapped by every textual-TTL parse failure.
var ErrBadTTL = errors.New("dnsname: malformed TTL")

// TTLFromText converts the BIND8 unit-suffixed textual form of a TTL
// (e.g. "1w6d4h3m10s") to seconds. A bare trailing run of digits with no
// unit letter is taken as seconds. Ported control-flow-for-control-flow from
// the fully-implemented reference dns.ttl.from_text.
func TTLFromText(text string) (uint32, error) {
	if text == "" {
		return 0, fmt.Errorf("%w: empty TTL", ErrBadTTL)
	}

	var totalSeconds uint64
	var value string

	for _, ch := range text {
		switch {
		case ch >= '0' && ch <= '9':
			value += string(ch)
		case (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
			if value == "" {
				return 0, fmt.Errorf("%w: unit %q with no preceding digits in %q", ErrBadTTL, ch, text)
			}
			seconds, err := parseDigits(value)
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrBadTTL, err)
			}
			value = ""
			switch ch {
			case 'w', 'W':
				totalSeconds += seconds * 7 * 24 * 3600
			case 'd', 'D':
				totalSeconds += seconds * 24 * 3600
			case 'h', 'H':
				totalSeconds += seconds * 3600
			case 'm', 'M':
				totalSeconds += seconds * 60
			case 's', 'S':
				totalSeconds += seconds
			default:
				return 0, fmt.Errorf("%w: unknown unit %q in %q", ErrBadTTL, ch, text)
			}
		default:
			return 0, fmt.Errorf("%w: invalid character %q in %q", ErrBadTTL, ch, text)
		}
	}

	if value != "" {
		seconds, err := parseDigits(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBadTTL, err)
		}
		totalSeconds += seconds
	}

	if totalSeconds > MaxTTL {
		return 0, fmt.Errorf("%w: %d exceeds maximum of %d", ErrBadTTL, totalSeconds, uint64(MaxTTL))
	}
	return uint32(totalSeconds), nil
}

func parseDigits(s string) (uint64, error) {
	var v uint64
	for _, c := range s {
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}

// TTLToText renders seconds back into the canonical unit-suffixed form
// emitted by BIND-style tools, so that TTLFromText(TTLToText(t)) == t for
// every representable t.
func TTLToText(seconds uint32) string {
	if seconds == 0 {
		return "0S"
	}
	rem := uint64(seconds)
	var out string
	units := []struct {
		suffix string
		size   uint64
	}{
		{"W", 7 * 24 * 3600},
		{"D", 24 * 3600},
		{"H", 3600},
		{"M", 60},
		{"S", 1},
	}
	for _, u := range units {
		if rem >= u.size {
			n := rem / u.size
			rem -= n * u.size
			out += fmt.Sprintf("%d%s", n, u.suffix)
		}
	}
	return out
}
