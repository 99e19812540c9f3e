package cli

import (
	"github.com/spf13/cobra"

	"notecard-review-service/internal/app"
)

// NewStatsCmd prints the box distribution and daily counter of one reviewer.
func NewStatsCmd(configPath *string) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats <id|name>",
		Short: "Show review statistics of a reviewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, *configPath, func(service *app.ReviewService) error {
				user, err := findUser(service, args[0])
				if err != nil {
					return err
				}
				stats, err := service.Stats(cmd.Context(), user.ID)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), format, stats)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}
