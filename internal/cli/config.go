package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/prompt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or build the cddns config file",
	}
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	cmd.AddCommand(newConfigBuildCommand(rootOpts))
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config with the token redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			redacted := rootOpts.Config.Redacted()
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(&redacted)
		},
	}
}

func newConfigBuildCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Answer a few questions and write a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			term := prompt.New(cmd.InOrStdin(), cmd.ErrOrStderr())
			return runConfigBuild(rootOpts, term, cmd.OutOrStdout())
		},
	}
}

func runConfigBuild(opts *RootOptions, term *prompt.Terminal, out io.Writer) error {
	cfg := *opts.Config

	token, err := term.Secret("Cloudflare API token:")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read token", err)
	}
	if token != "" {
		cfg.Token = token
	}

	if cfg.Inventory.Path, err = term.Ask("Inventory file:", cfg.Inventory.Path); err != nil {
		return WrapExitError(ExitCommandError, "failed to read inventory path", err)
	}
	cfg.Inventory.ForceUpdate = term.ConfirmDefault("Update outdated records without asking?", cfg.Inventory.ForceUpdate)
	cfg.Inventory.ForcePrune = term.ConfirmDefault("Prune invalid records without asking?", cfg.Inventory.ForcePrune)

	interval, err := term.Ask("Watch interval in milliseconds:", strconv.Itoa(cfg.Inventory.WatchIntervalMS))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read watch interval", err)
	}
	if cfg.Inventory.WatchIntervalMS, err = strconv.Atoi(interval); err != nil {
		return WrapExitError(ExitCommandError, "invalid watch interval", err)
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	path, err := term.Ask("Save config to:", opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read config path", err)
	}
	if _, err := os.Stat(path); err == nil {
		if !term.ConfirmDefault(fmt.Sprintf("%s exists, overwrite?", path), false) {
			return NewExitError(ExitFailure, "config not saved")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return WrapExitError(ExitCommandError, "failed to check config path", err)
	}

	if err := config.Save(path, &cfg); err != nil {
		return WrapExitError(ExitCommandError, "failed to save config", err)
	}
	fmt.Fprintf(out, "Saved config to %s\n", path)
	return nil
}
