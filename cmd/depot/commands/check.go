package commands

import (
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load every declared object once and report the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			c.app.Out = cmd.OutOrStdout()
			return c.app.Check(cmd.Context(), cfgPath, timeout)
		},
	}
	cmd.Flags().DurationP("timeout", "t", 30*time.Second, "Give up waiting for loads after this long")
	return cmd
}
