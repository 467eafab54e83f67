package qscan

import (
	"context"
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanPingHostUp(t *testing.T) {
	open := startListener(t)

	s := newTestScanner(t, "127.0.0.1", "")
	s.SetPingPorts([]uint16{open})

	results := s.ScanPing(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), results[0].Target)
	assert.Equal(t, HostUp, results[0].State)
}

func TestScanPingHostDown(t *testing.T) {
	closed := unusedPort(t)

	s := newTestScanner(t, "127.0.0.1", "")
	s.SetPingPorts([]uint16{closed})
	s.SetTimeoutMs(200)

	results := s.ScanPing(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, HostDown, results[0].State)
}

func TestScanPingOneResultPerHost(t *testing.T) {
	open := startListener(t)

	s := newTestScanner(t, "127.0.0.1,127.0.0.2", "")
	s.SetPingPorts([]uint16{open})
	s.SetTimeoutMs(200)

	results := s.ScanPing(context.Background())

	require.Len(t, results, 2)

	states := make(map[netip.Addr]PingState)
	for _, r := range results {
		states[r.Target] = r.State
	}

	// The listener is bound to 127.0.0.1 only
	assert.Equal(t, HostUp, states[netip.MustParseAddr("127.0.0.1")])
	assert.Equal(t, HostDown, states[netip.MustParseAddr("127.0.0.2")])
}

func TestScanPingRetriesStillDown(t *testing.T) {
	closed := unusedPort(t)

	s := newTestScanner(t, "127.0.0.1", "")
	s.SetPingPorts([]uint16{closed})
	s.SetTimeoutMs(100)
	s.SetPingTries(2)
	s.SetPingIntervalMs(50)

	results := s.ScanPing(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, HostDown, results[0].State)
}

func TestScanPingThenTcpConnectKeepsUpHostsOnly(t *testing.T) {
	open := startListener(t)

	s := newTestScanner(t, "127.0.0.1,127.0.0.2", fmt.Sprintf("%d", open))
	s.SetScanType(ScanPingTcpConnect)
	s.SetPingPorts([]uint16{open})
	s.SetTimeoutMs(200)

	results := s.ScanTcpConnect(context.Background())

	// The down host was discarded before the connect phase
	assert.Equal(t, addrs(t, "127.0.0.1"), s.TargetAddrs())
	require.Len(t, results, 1)
	assert.Equal(t, StateOpen, results[0].State)
	assert.Equal(t, netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), open), results[0].Target)
}
