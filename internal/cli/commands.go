// =============================================================================
// internal/cli/commands.go - Scan command definition and flag wiring
// =============================================================================
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/bryanCE/qscan/internal/config"
	"github.com/bryanCE/qscan/internal/output"
	"github.com/bryanCE/qscan/pkg/qscan"
	"github.com/spf13/cobra"
)

// Scan modes accepted by --mode
const (
	modeTcpConnect     = 0
	modePing           = 1
	modePingTcpConnect = 2
)

// NewScanCommand creates the root scan command
func NewScanCommand() *cobra.Command {
	var (
		targetsFlag      string
		portsFlag        string
		batchFlag        int
		timeoutFlag      uint64
		tcpTriesFlag     int
		pingTriesFlag    int
		pingIntervalFlag uint64
		modeFlag         int
		printLevelFlag   int
		jsonFlag         string
		configFlag       string
	)

	cmd := &cobra.Command{
		Use:   "qsc",
		Short: "Quick async network scanner",
		Long: `Quick asynchronous network reachability scanner.
Expands targets (IPs, CIDR blocks, domain names, target files) and ports,
then probes every host:port pair with a bounded number of concurrent TCP
connect attempts. Supports host liveness probing and JSON result export.

Examples:
  qsc --targets 192.168.1.0/24 --ports 22,80,443
  qsc --targets www.example.com,/tmp/ips.txt --ports 1-1024 --batch 2000
  qsc --targets 10.0.0.0/24 --ports 80 --mode 2 --json results.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := config.Default()
			if configFlag != "" {
				var err error
				profile, err = config.Load(configFlag)
				if err != nil {
					return err
				}
			}

			// Explicit flags win over profile values
			flags := cmd.Flags()
			if flags.Changed("targets") {
				profile.Targets = targetsFlag
			}
			if flags.Changed("ports") {
				profile.Ports = portsFlag
			}
			if flags.Changed("batch") {
				profile.Batch = batchFlag
			}
			if flags.Changed("timeout") {
				profile.TimeoutMs = timeoutFlag
			}
			if flags.Changed("tcp-tries") {
				profile.TcpTries = tcpTriesFlag
			}
			if flags.Changed("ping-tries") {
				profile.PingTries = pingTriesFlag
			}
			if flags.Changed("ping-interval") {
				profile.PingIntervalMs = pingIntervalFlag
			}
			if flags.Changed("mode") {
				profile.Mode = modeFlag
			}
			if flags.Changed("printlevel") {
				profile.PrintLevel = &printLevelFlag
			}
			if flags.Changed("json") {
				profile.JSONPath = jsonFlag
			}

			return runScan(profile)
		},
	}

	cmd.Flags().StringVar(&targetsFlag, "targets", "", "Comma separated list of targets: IPs, CIDR blocks, domain names or paths to files listing one target per line")
	cmd.Flags().StringVar(&portsFlag, "ports", "", "Comma separated list of ports and port ranges, e.g. '80', '22,443', '1-1024,8080'")
	cmd.Flags().IntVar(&batchFlag, "batch", 5000, "Number of parallel probes")
	cmd.Flags().Uint64Var(&timeoutFlag, "timeout", 1500, "Timeout in ms; a port that does not answer in time is reported closed")
	cmd.Flags().IntVar(&tcpTriesFlag, "tcp-tries", 1, "Maximum connect attempts for each target:port pair")
	cmd.Flags().IntVar(&pingTriesFlag, "ping-tries", 1, "Maximum liveness attempts for each target host")
	cmd.Flags().Uint64Var(&pingIntervalFlag, "ping-interval", 1000, "Wait in ms between liveness attempts")
	cmd.Flags().IntVar(&modeFlag, "mode", 0, "Scan mode: 0 TCP connect, 1 ping, 2 ping then TCP connect")
	cmd.Flags().IntVar(&printLevelFlag, "printlevel", 3, "Output: 0 none, 1 open ports at scan end, 2 all results at scan end, 3 open ports in real time, 4 all results in real time")
	cmd.Flags().StringVar(&jsonFlag, "json", "", "Write scan results as JSON to the given file")
	cmd.Flags().StringVar(&configFlag, "config", "", "Load a YAML scan profile; explicit flags override it")

	return cmd
}

// runScan configures the scanner from the merged profile and runs it
func runScan(profile *config.Profile) error {
	if profile.Targets == "" {
		return fmt.Errorf("no targets given: set --targets or a config profile")
	}
	if profile.Mode != modePing && profile.Ports == "" {
		return fmt.Errorf("no ports given: set --ports or a config profile")
	}
	if profile.Mode < modeTcpConnect || profile.Mode > modePingTcpConnect {
		return fmt.Errorf("invalid mode %d: must be 0, 1 or 2", profile.Mode)
	}

	printLevel := *profile.PrintLevel
	if printLevel < 0 || printLevel > 4 {
		return fmt.Errorf("invalid printlevel %d: must be in 0-4", printLevel)
	}

	scanner, err := qscan.New(profile.Targets, profile.Ports)
	if err != nil {
		return err
	}

	scanner.SetBatch(profile.Batch)
	scanner.SetTimeoutMs(profile.TimeoutMs)
	scanner.SetTries(profile.TcpTries)
	scanner.SetPingTries(profile.PingTries)
	scanner.SetPingIntervalMs(profile.PingIntervalMs)
	scanner.SetPrintMode(printModeFor(printLevel))

	formatter := output.NewFormatter(os.Stdout)
	ctx := context.Background()

	if profile.Mode == modePing {
		scanner.SetScanType(qscan.ScanPing)
		results := scanner.ScanPing(ctx)

		switch printLevel {
		case 1:
			formatter.PrintHostsUp(results)
		case 2:
			formatter.PrintHostsAll(results)
		}

		if profile.JSONPath != "" {
			fmt.Fprintln(os.Stderr, "Warning: --json ignored in ping mode, no port results to export")
		}

		return nil
	}

	if profile.Mode == modePingTcpConnect {
		scanner.SetScanType(qscan.ScanPingTcpConnect)
	}

	results := scanner.ScanTcpConnect(ctx)

	switch printLevel {
	case 1:
		formatter.PrintOpen(results)
	case 2:
		formatter.PrintAll(results)
	}

	if profile.JSONPath != "" {
		if err := output.WriteJSONFile(profile.JSONPath, scanner); err != nil {
			return err
		}
	}

	return nil
}

// printModeFor maps a printlevel to the engine print mode. Levels 1 and 2
// print after the scan, so the engine itself stays quiet for them.
func printModeFor(printLevel int) qscan.PrintMode {
	switch printLevel {
	case 0:
		return qscan.PrintNone
	case 3:
		return qscan.PrintRealTime
	case 4:
		return qscan.PrintRealTimeAll
	default:
		return qscan.PrintNonRealTime
	}
}
