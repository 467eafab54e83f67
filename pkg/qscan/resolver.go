package qscan

import (
	"crypto/tls"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// Fallback resolver endpoint, reachable over TLS even where plain DNS
// is blocked or the platform resolver is misconfigured.
const (
	fallbackServer     = "1.1.1.1:853"
	fallbackServerName = "cloudflare-dns.com"
	fallbackRetries    = 3
	fallbackTimeout    = 5 * time.Second
)

// fallbackResolver is a recursive DNS client used when the platform
// resolver fails to resolve a target name.
type fallbackResolver struct {
	client *dns.Client
	server string
}

func newFallbackResolver() *fallbackResolver {
	return &fallbackResolver{
		client: &dns.Client{
			Net:     "tcp-tls",
			Timeout: fallbackTimeout,
			TLSConfig: &tls.Config{
				ServerName: fallbackServerName,
			},
		},
		server: fallbackServer,
	}
}

// LookupIP resolves a name to all of its IPv4 and IPv6 addresses.
// Returns an empty slice when the name does not resolve.
func (r *fallbackResolver) LookupIP(name string) []netip.Addr {
	var addrs []netip.Addr

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		response := r.query(name, qtype)
		if response == nil {
			continue
		}

		for _, answer := range response.Answer {
			switch rr := answer.(type) {
			case *dns.A:
				if addr, ok := netip.AddrFromSlice(rr.A); ok {
					addrs = append(addrs, addr.Unmap())
				}
			case *dns.AAAA:
				if addr, ok := netip.AddrFromSlice(rr.AAAA); ok {
					addrs = append(addrs, addr)
				}
			}
		}
	}

	return addrs
}

// query performs a single record-type lookup with retries
func (r *fallbackResolver) query(name string, qtype uint16) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	for attempt := 0; attempt < fallbackRetries; attempt++ {
		response, _, err := r.client.Exchange(msg, r.server)
		if err == nil {
			return response
		}
		if attempt < fallbackRetries-1 {
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
		}
	}

	return nil
}
