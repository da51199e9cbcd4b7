package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wavegen/wavegen/load"
	"github.com/wavegen/wavegen/load/discovery"
)

// validateCmd checks a session spec file without running it
var validateCmd = &cobra.Command{
	Use:   "validate <spec.yaml>",
	Short: "Strictly parse and validate a session spec file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := load.LoadSessionSpec(args[0])
		if err != nil {
			return err
		}
		// A spec without ports is completed by discovery at run time.
		ports := joinPorts(spec.Ports)
		if len(spec.Ports) == 0 {
			ports = "discovered at run time"
			spec.Ports = discovery.DefaultPorts
		}
		if err := spec.Validate(); err != nil {
			return err
		}
		cfg, err := spec.Config()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (target=%s ports=%s agents=%d..%d cycle=%s rest=%s total=%s)\n",
			args[0], cfg.DestinationHost, ports, cfg.MinAgents, cfg.MaxAgents,
			cfg.CycleDuration, cfg.RestDuration, cfg.TotalDuration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
