package qscan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"syscall"
)

var dialer net.Dialer

// ScanTcpConnect probes every host:port pair and returns one result per
// endpoint in completion order. The number of in-flight probes never
// exceeds the configured batch: the engine primes up to batch probes and
// then submits exactly one new endpoint per completion, so the pipeline
// stays full until the iterator drains and then tails off.
//
// When the scan type is ScanPingTcpConnect a liveness phase runs first
// and only hosts that answered are connect-scanned.
//
// Results are cached on the Scanner until the next scan.
func (s *Scanner) ScanTcpConnect(ctx context.Context) []TcpConnectResult {
	if s.scanType == ScanPingTcpConnect {
		var up []netip.Addr
		for _, r := range s.ScanPing(ctx) {
			if r.State == HostUp {
				up = append(up, r.Target)
			}
		}
		s.ips = up
	}

	it := newSockIter(s.ips, s.ports)
	results := make([]TcpConnectResult, 0, len(s.ips)*len(s.ports))
	completions := make(chan TcpConnectResult)

	inFlight := 0
	submit := func(sock netip.AddrPort) {
		inFlight++
		go func() {
			completions <- s.probeTcpConnect(ctx, sock)
		}()
	}

	for inFlight < s.batch {
		sock, ok := it.Next()
		if !ok {
			break
		}
		submit(sock)
	}

	for inFlight > 0 {
		result := <-completions
		inFlight--

		// Refill before classifying so occupancy stays at the ceiling
		if sock, ok := it.Next(); ok {
			submit(sock)
		}

		switch {
		case s.printMode == PrintRealTime && result.State == StateOpen:
			fmt.Fprintf(s.out, "%s:%d\n", result.Target.Addr(), result.Target.Port())
		case s.printMode == PrintRealTimeAll:
			fmt.Fprintf(s.out, "%s:%d:%s\n", result.Target.Addr(), result.Target.Port(), result.State)
		}

		results = append(results, result)
	}

	s.lastResults = results

	return s.lastResults
}

// probeTcpConnect drives one endpoint to a terminal state: up to tries
// connect attempts, each bounded by the configured timeout
func (s *Scanner) probeTcpConnect(ctx context.Context, sock netip.AddrPort) TcpConnectResult {
	var lastErr error

	for try := 0; try < s.tries; try++ {
		dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
		conn, err := dialer.DialContext(dialCtx, "tcp", sock.String())
		cancel()

		if err == nil {
			if shutdownWrite(conn) != nil {
				return TcpConnectResult{Target: sock, State: StateClosed, Reason: "shutdown failed"}
			}
			return TcpConnectResult{Target: sock, State: StateOpen}
		}

		if isFdExhaustion(err) {
			s.log.Fatal().Msgf("too many open files, reduce batch size %d", s.batch)
		}

		lastErr = err
	}

	return TcpConnectResult{
		Target: sock,
		State:  StateClosed,
		Reason: fmt.Sprintf("%v %s", lastErr, sock.Addr()),
	}
}

// shutdownWrite signals intent to the remote side and releases the
// descriptor deterministically instead of relying on GC order under load
func shutdownWrite(conn net.Conn) error {
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		return tcp.CloseWrite()
	}

	return nil
}

// isFdExhaustion detects descriptor exhaustion, the one unrecoverable
// probe error. The errno check covers the common paths; the message
// check catches wrapped errors that lost the errno.
func isFdExhaustion(err error) bool {
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "too many open files")
}
