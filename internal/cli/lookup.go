package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macrolens/nutriresolve/internal/app"
	"github.com/macrolens/nutriresolve/internal/domain"
)

// LookupOptions holds flags for the lookup command.
type LookupOptions struct {
	*RootOptions
	Barcode string
	Name    string
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LookupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Resolve one product and print the result as JSON",
		Long: `Resolve one product and print the result as JSON.

Example:
  nutrictl lookup --barcode 028400090858
  nutrictl lookup --name "greek yogurt" --dataset ./foods.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Barcode, "barcode", "", "UPC/EAN barcode")
	cmd.Flags().StringVar(&opts.Name, "name", "", "product name")
	cmd.MarkFlagsMutuallyExclusive("barcode", "name")
	cmd.MarkFlagsOneRequired("barcode", "name")

	cmd.Flags().Duration("deadline", 0, "overall provider race deadline (e.g. 5s)")
	cmd.Flags().String("dataset", "", "path to a local food dataset (JSON)")
	cmd.Flags().String("ai", "", "AI fallback provider (none|openai|ollama|bedrock)")
	_ = rootOpts.v.BindPFlag("resolver.deadline", cmd.Flags().Lookup("deadline"))
	_ = rootOpts.v.BindPFlag("dataset.path", cmd.Flags().Lookup("dataset"))
	_ = rootOpts.v.BindPFlag("ai.provider", cmd.Flags().Lookup("ai"))

	return cmd
}

func (o *LookupOptions) query() domain.Query {
	if o.Barcode != "" {
		return domain.BarcodeQuery(o.Barcode)
	}
	return domain.NameQuery(o.Name)
}

func runLookup(cmd *cobra.Command, opts *LookupOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return &CodeError{Code: ExitError, Err: err}
	}
	defer a.Close(ctx)

	result, err := a.Resolver.Resolve(ctx, opts.query())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			return &CodeError{Code: ExitError, Err: err}
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if !result.IsResolved() {
		return &CodeError{Code: ExitUnresolved, Err: fmt.Errorf("no nutrition data found for %s", result.Query)}
	}
	return nil
}
