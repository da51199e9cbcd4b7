package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wavegen/wavegen/load/discovery"
)

var discoverOpts = &scanOptions{}

// discoverCmd prints the ports a run would use against a host
var discoverCmd = &cobra.Command{
	Use:   "discover <host>",
	Short: "Find open TCP ports on a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := discoverOpts.discoverer()
		if err != nil {
			return err
		}
		ports, err := discovery.ResolvePorts(ctx, d, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), joinPorts(ports))
		return nil
	},
}

// joinPorts formats ports the way --ports accepts them.
func joinPorts(ports []int) string {
	s := make([]string, len(ports))
	for i, p := range ports {
		s[i] = strconv.Itoa(p)
	}
	return strings.Join(s, ",")
}

func init() {
	discoverOpts.bindFlags(discoverCmd.Flags())
	rootCmd.AddCommand(discoverCmd)
}
