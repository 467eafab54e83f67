package qscan

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// ErrInvalidPort is returned when a port token cannot be parsed
var ErrInvalidPort = errors.New("invalid port specification")

// ParsePorts expands a port specification into a deduplicated sequence.
// The specification is a comma separated list of ports and inclusive
// ranges, e.g. "80", "22,443", "1-1024,8080". Whitespace is ignored and
// empty tokens are skipped. First occurrence order is preserved.
func ParsePorts(spec string) ([]uint16, error) {
	ports := []uint16{}

	for _, token := range strings.Split(stripWhitespace(spec), ",") {
		if token == "" {
			continue
		}

		parts := strings.Split(token, "-")
		switch len(parts) {
		case 1:
			port, err := parsePort(parts[0])
			if err != nil {
				return nil, err
			}
			ports = append(ports, port)
		case 2:
			lo, err := parsePort(parts[0])
			if err != nil {
				return nil, err
			}
			hi, err := parsePort(parts[1])
			if err != nil {
				return nil, err
			}
			// An inverted range is empty, not an error
			for p := uint32(lo); p <= uint32(hi); p++ {
				ports = append(ports, uint16(p))
			}
		default:
			return nil, fmt.Errorf("%w: %q has too many dashes", ErrInvalidPort, token)
		}
	}

	return dedup(ports), nil
}

func parsePort(token string) (uint16, error) {
	port, err := strconv.ParseUint(token, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, token)
	}
	return uint16(port), nil
}

// ParseHosts expands a target specification into a deduplicated address
// sequence. Each comma separated token is tried, in order, as a CIDR
// block, a literal address (optionally with a port), a DNS name (platform
// resolver first, then the TLS fallback resolver), and finally as a path
// to a file listing one target per line. Unknown tokens are logged and
// skipped. First occurrence order is preserved.
func ParseHosts(spec string) []netip.Addr {
	parser := newHostParser(defaultLogger())
	return parser.parse(spec)
}

// hostParser resolves target tokens into addresses. The fallback resolver
// is created lazily so purely numeric specifications never pay for it.
type hostParser struct {
	fallback *fallbackResolver
	log      zerolog.Logger
}

func newHostParser(log zerolog.Logger) *hostParser {
	return &hostParser{log: log}
}

func (p *hostParser) parse(spec string) []netip.Addr {
	addrs := []netip.Addr{}

	for _, token := range strings.Split(stripWhitespace(spec), ",") {
		if token == "" {
			continue
		}

		parsed := p.parseToken(token)
		if len(parsed) > 0 {
			addrs = append(addrs, parsed...)
			continue
		}

		fromFile, isFile := p.parseFile(token)
		if isFile {
			addrs = append(addrs, fromFile...)
			continue
		}

		p.log.Warn().Str("target", token).Msg("unknown target, skipping")
	}

	return dedup(addrs)
}

// parseToken resolves a single token as CIDR, literal or DNS name
func (p *hostParser) parseToken(token string) []netip.Addr {
	if prefix, err := netip.ParsePrefix(token); err == nil {
		return expandPrefix(prefix)
	}

	if addr, err := netip.ParseAddr(token); err == nil {
		return []netip.Addr{addr.Unmap()}
	}

	if ap, err := netip.ParseAddrPort(token); err == nil {
		return []netip.Addr{ap.Addr().Unmap()}
	}

	// Path separators never appear in hostnames; let the file step
	// claim the token instead of querying resolvers for it.
	if strings.ContainsAny(token, "/\\") {
		return nil
	}

	return p.resolveName(token)
}

// resolveName resolves a DNS name, falling back to the TLS resolver when
// the platform resolver is misconfigured or blocked
func (p *hostParser) resolveName(name string) []netip.Addr {
	if ips, err := net.LookupIP(name); err == nil && len(ips) > 0 {
		addrs := make([]netip.Addr, 0, len(ips))
		for _, ip := range ips {
			if addr, ok := netip.AddrFromSlice(ip); ok {
				addrs = append(addrs, addr.Unmap())
			}
		}
		return addrs
	}

	if p.fallback == nil {
		p.fallback = newFallbackResolver()
	}

	return p.fallback.LookupIP(name)
}

// parseFile reads targets from a file, one per line. Each non-empty line
// goes through the same token resolution as a command line token, except
// that files do not nest.
func (p *hostParser) parseFile(path string) ([]netip.Addr, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}

	file, err := os.Open(path)
	if err != nil {
		p.log.Warn().Str("file", path).Err(err).Msg("cannot read target file")
		return nil, false
	}
	defer file.Close()

	var addrs []netip.Addr

	scanner := bufio.NewScanner(file)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := stripWhitespace(scanner.Text())
		if line == "" {
			continue
		}

		parsed := p.parseToken(line)
		if len(parsed) == 0 {
			p.log.Warn().Str("file", path).Int("line", lineNo).Msg("unknown target in file, skipping")
			continue
		}
		addrs = append(addrs, parsed...)
	}

	return addrs, true
}

// expandPrefix lists every address of a CIDR block in network order
func expandPrefix(prefix netip.Prefix) []netip.Addr {
	var addrs []netip.Addr

	for addr := prefix.Masked().Addr(); prefix.Contains(addr); addr = addr.Next() {
		addrs = append(addrs, addr.Unmap())
	}

	return addrs
}

// dedup removes duplicates while preserving first occurrence order
func dedup[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := in[:0]

	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
