package cli

import (
	"fmt"

	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the API token is valid and active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts.Config, metrics.New(false))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create DNS client", err)
			}

			status, err := client.Verify(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "token verification failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token status: %s\n", status)
			if status != "active" {
				return NewExitError(ExitFailure, fmt.Sprintf("token is %s", status))
			}
			return nil
		},
	}
}
