// Package qscan implements an asynchronous network reachability scanner.
// A Scanner expands heterogeneous target specifications (addresses, CIDR
// blocks, domain names, target files) into address and port sequences and
// probes their cross product with a bounded number of concurrent connect
// attempts, classifying every endpoint as open or closed.
package qscan

import (
	"encoding/json"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ScanType selects what a scan probes
type ScanType int

const (
	// ScanTcpConnect probes every host:port pair with a TCP connect
	ScanTcpConnect ScanType = iota
	// ScanPing probes host liveness only
	ScanPing
	// ScanPingTcpConnect pings first and connect-scans only the hosts
	// that answered
	ScanPingTcpConnect
)

// PrintMode controls what the engine writes to stdout while scanning
type PrintMode int

const (
	// PrintNone suppresses engine output
	PrintNone PrintMode = iota
	// PrintNonRealTime leaves printing to the caller after the scan
	PrintNonRealTime
	// PrintRealTime prints open endpoints as soon as they are found
	PrintRealTime
	// PrintRealTimeAll prints every outcome as soon as it is decided
	PrintRealTimeAll
)

// Library defaults
const (
	defaultBatch        = 2500
	defaultTimeoutMs    = 1000
	defaultTries        = 1
	defaultPingTries    = 1
	defaultPingInterval = 1000
)

// Scanner is a configured scan engine. Construct it with New, adjust it
// with the setters between scans, and run scans any number of times; the
// results of the most recent connect scan stay cached until the next
// connect scan. Ping scans do not touch the cache.
//
// Configuration must not be mutated while a scan is running.
type Scanner struct {
	ips          []netip.Addr
	ports        []uint16
	scanType     ScanType
	printMode    PrintMode
	batch        int
	timeout      time.Duration
	tries        int
	pingTries    int
	pingInterval time.Duration
	pingPorts    []uint16
	lastResults  []TcpConnectResult
	out          io.Writer
	log          zerolog.Logger
}

// New creates a Scanner from target and port specifications.
//
//	scanner, err := qscan.New("127.0.0.1,192.168.1.0/24", "80,443,1024-2048")
//
// Host tokens that match nothing are logged and skipped; a malformed port
// token is the only constructor error.
func New(addresses, ports string) (*Scanner, error) {
	log := defaultLogger()

	pv, err := ParsePorts(ports)
	if err != nil {
		return nil, err
	}

	return &Scanner{
		ips:          newHostParser(log).parse(addresses),
		ports:        pv,
		scanType:     ScanTcpConnect,
		printMode:    PrintNonRealTime,
		batch:        defaultBatch,
		timeout:      defaultTimeoutMs * time.Millisecond,
		tries:        defaultTries,
		pingTries:    defaultPingTries,
		pingInterval: defaultPingInterval * time.Millisecond,
		pingPorts:    defaultPingPorts,
		out:          os.Stdout,
		log:          log,
	}, nil
}

func defaultLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// SetScanType sets what the next scan probes
func (s *Scanner) SetScanType(scanType ScanType) {
	s.scanType = scanType
}

// SetPrintMode sets the engine printing mode
func (s *Scanner) SetPrintMode(printMode PrintMode) {
	s.printMode = printMode
}

// SetBatch sets the parallelism ceiling. Values below 1 are promoted to 1.
func (s *Scanner) SetBatch(batch int) {
	s.batch = max(batch, 1)
}

// SetTimeoutMs sets the per-attempt connect timeout
func (s *Scanner) SetTimeoutMs(ms uint64) {
	s.timeout = time.Duration(ms) * time.Millisecond
}

// SetTries sets how many connect attempts each endpoint gets.
// A value of 0 is promoted to 1.
func (s *Scanner) SetTries(tries int) {
	s.tries = max(tries, 1)
}

// SetPingTries sets how many attempts each host liveness probe gets.
// A value of 0 is promoted to 1.
func (s *Scanner) SetPingTries(tries int) {
	s.pingTries = max(tries, 1)
}

// SetPingIntervalMs sets the wait between liveness attempts
func (s *Scanner) SetPingIntervalMs(ms uint64) {
	s.pingInterval = time.Duration(ms) * time.Millisecond
}

// SetPingPorts replaces the ports probed for host liveness.
// An empty slice restores the defaults.
func (s *Scanner) SetPingPorts(ports []uint16) {
	if len(ports) == 0 {
		s.pingPorts = defaultPingPorts
		return
	}
	s.pingPorts = dedup(append([]uint16{}, ports...))
}

// SetLogger replaces the diagnostics logger
func (s *Scanner) SetLogger(log zerolog.Logger) {
	s.log = log
}

// SetOutput redirects engine printing, which goes to stdout by default
func (s *Scanner) SetOutput(w io.Writer) {
	s.out = w
}

// SetTargets replaces the current targets with freshly parsed ones
func (s *Scanner) SetTargets(addresses, ports string) error {
	pv, err := ParsePorts(ports)
	if err != nil {
		return err
	}

	s.ips = newHostParser(s.log).parse(addresses)
	s.ports = pv

	return nil
}

// AddTargets parses specifications and appends the results to the current
// targets. Already-present elements keep their original position.
func (s *Scanner) AddTargets(addresses, ports string) error {
	pv, err := ParsePorts(ports)
	if err != nil {
		return err
	}

	s.ips = dedup(append(s.ips, newHostParser(s.log).parse(addresses)...))
	s.ports = dedup(append(s.ports, pv...))

	return nil
}

// SetAddrTargets replaces the current targets with pre-resolved ones
func (s *Scanner) SetAddrTargets(ips []netip.Addr, ports []uint16) {
	s.ips = dedup(append([]netip.Addr{}, ips...))
	s.ports = dedup(append([]uint16{}, ports...))
}

// AddAddrTargets appends pre-resolved targets to the current ones.
// Already-present elements keep their original position.
func (s *Scanner) AddAddrTargets(ips []netip.Addr, ports []uint16) {
	s.ips = dedup(append(s.ips, ips...))
	s.ports = dedup(append(s.ports, ports...))
}

// TargetAddrs returns the target address sequence
func (s *Scanner) TargetAddrs() []netip.Addr {
	return s.ips
}

// TargetPorts returns the target port sequence
func (s *Scanner) TargetPorts() []uint16 {
	return s.ports
}

// LastResults returns the cached results of the most recent connect scan,
// or nil when no scan has run
func (s *Scanner) LastResults() []TcpConnectResult {
	return s.lastResults
}

// ResetLastResults drops the cached results
func (s *Scanner) ResetLastResults() {
	s.lastResults = nil
}

// LastResultsJSON serializes the cached results using the stable schema
// {"IP": <address>, "port": <number>, "state": "OPEN"|"CLOSED"}
func (s *Scanner) LastResultsJSON() (string, error) {
	data, err := json.Marshal(s.lastResults)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
