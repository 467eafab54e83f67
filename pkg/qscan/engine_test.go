package qscan

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startListener opens a loopback listener that accepts and immediately
// closes connections, returning its port
func startListener(t *testing.T) uint16 {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

// unusedPort grabs a free port and releases it so connects to it are
// refused
func unusedPort(t *testing.T) uint16 {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	return port
}

func newTestScanner(t *testing.T, hosts, ports string) *Scanner {
	t.Helper()

	s, err := New(hosts, ports)
	require.NoError(t, err)
	s.SetPrintMode(PrintNone)
	s.SetTimeoutMs(500)

	return s
}

func resultFor(t *testing.T, results []TcpConnectResult, target netip.AddrPort) TcpConnectResult {
	t.Helper()

	for _, r := range results {
		if r.Target == target {
			return r
		}
	}

	t.Fatalf("no result for %s", target)
	return TcpConnectResult{}
}

func TestScanTcpConnectClassification(t *testing.T) {
	open := startListener(t)
	closed := unusedPort(t)

	s := newTestScanner(t, "127.0.0.1", fmt.Sprintf("%d,%d", open, closed))
	results := s.ScanTcpConnect(context.Background())

	require.Len(t, results, 2)

	openRes := resultFor(t, results, netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), open))
	assert.Equal(t, StateOpen, openRes.State)
	assert.Empty(t, openRes.Reason)

	closedRes := resultFor(t, results, netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), closed))
	assert.Equal(t, StateClosed, closedRes.State)
	assert.Contains(t, closedRes.Reason, "127.0.0.1")
}

func TestScanTcpConnectCoversCrossProduct(t *testing.T) {
	open := startListener(t)

	// Small batch forces refills across a larger product
	s := newTestScanner(t, "127.0.0.1,127.0.0.2,127.0.0.3", fmt.Sprintf("%d,1,2,3", open))
	s.SetBatch(2)

	results := s.ScanTcpConnect(context.Background())

	require.Len(t, results, 3*4)

	seen := make(map[netip.AddrPort]int)
	for _, r := range results {
		seen[r.Target]++
	}
	assert.Len(t, seen, 3*4)
	for target, n := range seen {
		assert.Equalf(t, 1, n, "endpoint %s classified more than once", target)
	}
}

func TestScanTcpConnectEmptyCrossProduct(t *testing.T) {
	s := newTestScanner(t, "", "")

	results := s.ScanTcpConnect(context.Background())

	assert.Empty(t, results)
	assert.NotNil(t, s.LastResults())
}

func TestScanTcpConnectRetriesStillClosed(t *testing.T) {
	closed := unusedPort(t)

	s := newTestScanner(t, "127.0.0.1", fmt.Sprintf("%d", closed))
	s.SetTries(3)

	results := s.ScanTcpConnect(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, StateClosed, results[0].State)
}

func TestScanTcpConnectCachesLastResults(t *testing.T) {
	open := startListener(t)

	s := newTestScanner(t, "127.0.0.1", fmt.Sprintf("%d", open))

	first := s.ScanTcpConnect(context.Background())
	require.Len(t, s.LastResults(), 1)
	assert.Equal(t, first, s.LastResults())

	// A new scan replaces the cache
	require.NoError(t, s.SetTargets("127.0.0.1", fmt.Sprintf("%d,%d", open, unusedPort(t))))
	second := s.ScanTcpConnect(context.Background())
	assert.Len(t, second, 2)
	assert.Equal(t, second, s.LastResults())
}

func TestScanTcpConnectRealTimePrint(t *testing.T) {
	open := startListener(t)
	closed := unusedPort(t)

	var buf bytes.Buffer
	s := newTestScanner(t, "127.0.0.1", fmt.Sprintf("%d,%d", open, closed))
	s.SetPrintMode(PrintRealTime)
	s.SetOutput(&buf)

	s.ScanTcpConnect(context.Background())

	assert.Equal(t, fmt.Sprintf("127.0.0.1:%d\n", open), buf.String())
}

func TestScanTcpConnectRealTimeAllPrint(t *testing.T) {
	open := startListener(t)
	closed := unusedPort(t)

	var buf bytes.Buffer
	s := newTestScanner(t, "127.0.0.1", fmt.Sprintf("%d,%d", open, closed))
	s.SetPrintMode(PrintRealTimeAll)
	s.SetOutput(&buf)

	s.ScanTcpConnect(context.Background())

	assert.Contains(t, buf.String(), fmt.Sprintf("127.0.0.1:%d:OPEN\n", open))
	assert.Contains(t, buf.String(), fmt.Sprintf("127.0.0.1:%d:CLOSED\n", closed))
}

func TestIsFdExhaustion(t *testing.T) {
	assert.True(t, isFdExhaustion(fmt.Errorf("dial tcp: Too Many Open Files")))
	assert.True(t, isFdExhaustion(fmt.Errorf("socket: too many open files")))
	assert.False(t, isFdExhaustion(fmt.Errorf("connection refused")))
}

func TestScanTcpConnectGoogleDNS(t *testing.T) {
	if testing.Short() {
		t.Skip("network scan skipped in short mode")
	}

	s := newTestScanner(t, "8.8.8.8", "53,54,55-60")
	s.SetTimeoutMs(2000)

	results := s.ScanTcpConnect(context.Background())

	require.Len(t, results, 8)
	for _, r := range results {
		if r.State == StateOpen {
			assert.Equal(t, netip.MustParseAddrPort("8.8.8.8:53"), r.Target)
		}
	}
}
