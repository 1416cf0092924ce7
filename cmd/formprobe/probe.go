package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/formprobe/internal/browser"
)

var probeURL string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that a browser answers on its remote debugging port",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeURL, "cdp-url", "", "Debugging endpoint (default from CHROMIUM_CDP_ADDRESS/CHROMIUM_CDP_PORT)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	url := probeURL
	if url == "" {
		url = cfg.GetCDPURL()
	}
	v, err := browser.Probe(cmd.Context(), url)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "endpoint:  %s\n", url)
	fmt.Fprintf(out, "product:   %s\n", v.Product)
	fmt.Fprintf(out, "protocol:  %s\n", v.ProtocolVersion)
	fmt.Fprintf(out, "revision:  %s\n", v.Revision)
	fmt.Fprintf(out, "websocket: %s\n", v.WebSocketURL)
	return nil
}
