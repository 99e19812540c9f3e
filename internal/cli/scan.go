package cli

import (
	"os"

	"github.com/spf13/cobra"

	"notecard-review-service/internal/app"
	"notecard-review-service/internal/domain"
)

type scanOutput struct {
	app.ScanResult
	Cards domain.Deck `json:"cards"`
}

// NewScanCmd parses cards from one vault file or the whole vault and prints them.
func NewScanCmd(configPath *string) *cobra.Command {
	var (
		path     string
		all      bool
		fallback bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Parse notecards from the vault and print them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				path = args[0]
			}
			cfg, log, err := loadConfig(*configPath, os.Stderr)
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			scope := app.ScopeCurrent
			if all {
				scope = app.ScopeVault
			}
			result, err := rt.scanner.Scan(cmd.Context(), app.ScanRequest{
				Key:                "cli",
				Scope:              scope,
				Path:               path,
				AllowVaultFallback: fallback,
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), format, scanOutput{ScanResult: result, Cards: result.Cards})
		},
	}
	cmd.Flags().BoolVar(&all, "vault", false, "scan every card document in the vault")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "scan the vault when no path is given")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}
