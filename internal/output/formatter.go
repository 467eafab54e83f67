// =============================================================================
// internal/output/formatter.go - End-of-scan result printing and JSON export
// =============================================================================
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/bryanCE/qscan/pkg/qscan"
)

// Formatter prints scan results after the scan has finished, for the
// print levels where the engine itself stays quiet
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a formatter writing to the given writer
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{writer: writer}
}

// PrintOpen prints only the open endpoints, one ip:port per line
func (f *Formatter) PrintOpen(results []qscan.TcpConnectResult) {
	for _, r := range results {
		if r.State == qscan.StateOpen {
			fmt.Fprintf(f.writer, "%s:%d\n", r.Target.Addr(), r.Target.Port())
		}
	}
}

// PrintAll prints every endpoint with its state, ip:port:STATE per line
func (f *Formatter) PrintAll(results []qscan.TcpConnectResult) {
	for _, r := range results {
		fmt.Fprintf(f.writer, "%s:%d:%s\n", r.Target.Addr(), r.Target.Port(), r.State)
	}
}

// PrintHostsUp prints only the hosts that answered the liveness probe
func (f *Formatter) PrintHostsUp(results []qscan.PingResult) {
	for _, r := range results {
		if r.State == qscan.HostUp {
			fmt.Fprintf(f.writer, "%s\n", r.Target)
		}
	}
}

// PrintHostsAll prints every probed host with its liveness state
func (f *Formatter) PrintHostsAll(results []qscan.PingResult) {
	for _, r := range results {
		fmt.Fprintf(f.writer, "%s:%s\n", r.Target, r.State)
	}
}

// WriteJSONFile writes the scanner's cached results to a file using the
// stable result schema
func WriteJSONFile(path string, scanner *qscan.Scanner) error {
	data, err := scanner.LastResultsJSON()
	if err != nil {
		return fmt.Errorf("serialize results: %w", err)
	}

	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("write results file: %w", err)
	}

	return nil
}
