// Package cli wires the cddns commands together.
package cli

import (
	"fmt"
	"os"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/logger"
	"github.com/spf13/cobra"
)

const configEnv = "CDDNS_CONFIG"

// ValidFormats lists the report output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the config loaded from them.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string

	Config *config.Config
}

// NewRootCommand creates the root command for the cddns CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cddns",
		Short: "Keep Cloudflare A and AAAA records pointed at this host",
		Long: `cddns keeps a declared inventory of Cloudflare DNS records in sync with
the public address of the machine it runs on. Records are updated when
they drift and pruned from the inventory when they no longer exist.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "config file (yaml or toml), also "+configEnv)
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "report format (text|json)")

	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewInventoryCommand(opts))

	return cmd
}

func (opts *RootOptions) load(cmd *cobra.Command) error {
	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}

	path := opts.ConfigPath
	if !cmd.Flags().Changed("config") {
		if env, ok := os.LookupEnv(configEnv); ok && env != "" {
			path = env
		}
	}
	opts.ConfigPath = path

	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger.Configure(cmd.ErrOrStderr(), level, cfg.Log.Env)

	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	opts.Config = cfg
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
