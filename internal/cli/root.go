// Package cli implements the nutrictl command tree.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/macrolens/nutriresolve/config"
	"github.com/macrolens/nutriresolve/internal/logging"
)

// Exit codes for CLI commands.
const (
	ExitSuccess    = 0
	ExitUnresolved = 1 // lookup finished without a usable answer
	ExitError      = 2 // bad flags, bad config, startup failure
)

// CodeError carries the process exit code for a failed command
type CodeError struct {
	Code int
	Err  error
}

func (e *CodeError) Error() string { return e.Err.Error() }
func (e *CodeError) Unwrap() error { return e.Err }

// ExitCode extracts the exit code from an error returned by Execute
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ExitError
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	LogLevel   string

	// v receives flag bindings and is handed to config.LoadFrom
	v *viper.Viper
}

// NewRootCommand creates the root command for nutrictl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(viper.New())
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	opts := &RootOptions{v: v}

	cmd := &cobra.Command{
		Use:   "nutrictl",
		Short: "nutrictl resolves food products to nutrition facts",
		Long: `nutrictl resolves a barcode or product name to one nutrition record by
racing several food databases, reconciling their answers and falling back to
an AI model when no structured source knows the product.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// stdout carries command output
			logging.Log.SetOutput(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default: ./config.yaml, ./config/config.yaml, /etc/nutriresolve/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	_ = v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// loadConfig reads configuration with the bound flags layered on top
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(o.v, o.ConfigFile)
	if err != nil {
		return nil, &CodeError{Code: ExitError, Err: fmt.Errorf("load config: %w", err)}
	}
	return cfg, nil
}
