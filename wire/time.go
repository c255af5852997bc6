package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimeToken parses a spec §6 time token, "<int><unit>" where unit is
// one of ns, µs (or "us"), ms, s, into a nanosecond count. This is the one
// piece of CLI-adjacent parsing that lives in the core rather than the
// presentation layer, because RunTo/RunFor need the same nanosecond value
// the core's clock uses and the core is the natural owner of that unit
// conversion; the command interpreter around it stays out of scope.
func ParseTimeToken(tok string) (uint64, error) {
	tok = strings.TrimSpace(tok)
	unit := ""
	switch {
	case strings.HasSuffix(tok, "ns"):
		unit, tok = "ns", strings.TrimSuffix(tok, "ns")
	case strings.HasSuffix(tok, "µs"):
		unit, tok = "us", strings.TrimSuffix(tok, "µs")
	case strings.HasSuffix(tok, "us"):
		unit, tok = "us", strings.TrimSuffix(tok, "us")
	case strings.HasSuffix(tok, "ms"):
		unit, tok = "ms", strings.TrimSuffix(tok, "ms")
	case strings.HasSuffix(tok, "s"):
		unit, tok = "s", strings.TrimSuffix(tok, "s")
	default:
		return 0, fmt.Errorf("%w: time token %q: missing unit", ErrInvalidFormat, tok)
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: time token: %v", ErrInvalidFormat, err)
	}
	switch unit {
	case "ns":
		return n, nil
	case "us":
		return n * 1_000, nil
	case "ms":
		return n * 1_000_000, nil
	case "s":
		return n * 1_000_000_000, nil
	}
	return 0, fmt.Errorf("%w: time token %q: unknown unit", ErrInvalidFormat, tok)
}
