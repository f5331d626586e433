package cli

import (
	"github.com/spf13/cobra"

	"github.com/macrolens/nutriresolve/internal/app"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return &CodeError{Code: ExitError, Err: err}
			}
			return app.Serve(cmd.Context(), cfg, a)
		},
	}

	cmd.Flags().StringP("port", "p", "", "listen port")
	_ = rootOpts.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}
