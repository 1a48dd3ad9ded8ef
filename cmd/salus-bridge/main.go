// Salus-bridge exposes a Salus Connect account on the local network.
//
// It owns one signed-in client and serves a small HTTP API, a websocket feed
// of device summaries and Prometheus metrics. It can also publish readings to
// an MQTT broker and accept setpoint commands from it, and it advertises
// itself over mDNS so 'salus scan' can find it.
//
// Usage:
//
//	salus-bridge serve [flags]
//
// See 'salus-bridge serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/salusconnect/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "salus-bridge",
	Short: "Salus Connect LAN bridge",
	Long: `A long-running bridge between a Salus Connect account and the local network.

The bridge polls the cloud on an interval and fans the readings out to
websocket subscribers, an MQTT broker and a Prometheus /metrics endpoint.
Setpoint writes arrive over HTTP or MQTT and are sent one at a time.

For one-off commands, use the 'salus' utility.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("salus-bridge %s\n", version.Full())
	},
}
