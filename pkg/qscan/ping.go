package qscan

import (
	"context"
	"fmt"
	"net/netip"
	"time"
)

// Default ports probed for liveness. A host that accepts a connect on
// any of these is up; raw ICMP would need privileges this tool does not
// ask for.
var defaultPingPorts = []uint16{80, 443, 22, 21, 23, 25, 53, 135, 139, 445}

// ScanPing probes every target host for liveness and returns one result
// per host in completion order. Hosts are scheduled by the same
// refill-on-completion loop as the connect scan, bounded by batch.
func (s *Scanner) ScanPing(ctx context.Context) []PingResult {
	results := make([]PingResult, 0, len(s.ips))
	completions := make(chan PingResult)

	inFlight := 0
	next := 0
	submit := func(addr netip.Addr) {
		inFlight++
		go func() {
			completions <- s.probePing(ctx, addr)
		}()
	}

	for inFlight < s.batch && next < len(s.ips) {
		submit(s.ips[next])
		next++
	}

	for inFlight > 0 {
		result := <-completions
		inFlight--

		if next < len(s.ips) {
			submit(s.ips[next])
			next++
		}

		switch {
		case s.printMode == PrintRealTime && result.State == HostUp:
			fmt.Fprintf(s.out, "%s\n", result.Target)
		case s.printMode == PrintRealTimeAll:
			fmt.Fprintf(s.out, "%s:%s\n", result.Target, result.State)
		}

		results = append(results, result)
	}

	return results
}

// probePing drives one host to Up or Down: up to pingTries attempts with
// the configured interval between failed attempts
func (s *Scanner) probePing(ctx context.Context, addr netip.Addr) PingResult {
	for try := 0; try < s.pingTries; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return PingResult{Target: addr, State: HostDown}
			case <-time.After(s.pingInterval):
			}
		}

		if s.pingOnce(ctx, addr) {
			return PingResult{Target: addr, State: HostUp}
		}
	}

	return PingResult{Target: addr, State: HostDown}
}

// pingOnce races connects against the probe ports and reports up as soon
// as any of them answers within the timeout
func (s *Scanner) pingOnce(ctx context.Context, addr netip.Addr) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	success := make(chan struct{}, 1)

	for _, port := range s.pingPorts {
		go func(port uint16) {
			conn, err := dialer.DialContext(probeCtx, "tcp", netip.AddrPortFrom(addr, port).String())
			if err != nil {
				return
			}
			conn.Close()

			select {
			case success <- struct{}{}:
			default:
			}
		}(port)
	}

	select {
	case <-success:
		return true
	case <-probeCtx.Done():
		return false
	}
}
