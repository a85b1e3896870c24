// mycoflow — adaptive, reflexive QoS controller for a single network
// egress link.
//
// Senses link conditions, infers a traffic persona (latency-sensitive vs.
// bulk-throughput), and adjusts a CAKE shaping qdisc's bandwidth cap and
// AQM target so interactive traffic keeps low delay under load while bulk
// traffic retains throughput when the link is quiet.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mycoflow",
		Short: "Adaptive reflexive QoS controller for a single egress link",
		Long: `mycoflow — single Go binary implementing a Sense -> Infer -> Decide -> Act
control loop over a CAKE shaping qdisc.

run        runs the reflexive loop (the core control pipeline)
mcp        runs the reflexive loop plus a stdio MCP server for operator commands
status     prints the last published state snapshot
config-dump prints the fully-overlaid configuration`,
		Version: version,
	}

	rootCmd.AddCommand(runCmd, mcpCmd, statusCmd, configDumpCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
