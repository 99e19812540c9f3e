package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"notecard-review-service/internal/app"
	"notecard-review-service/internal/domain"
)

// NewUsersCmd manages the reviewers known to the progress store.
func NewUsersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List, add or delete reviewers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List reviewers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, *configPath, func(service *app.ReviewService) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCREATED")
				for _, u := range service.Users() {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Name, u.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a reviewer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, *configPath, func(service *app.ReviewService) error {
				user, err := service.CreateUser(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), user.ID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a reviewer and its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, *configPath, func(service *app.ReviewService) error {
				user, err := findUser(service, args[0])
				if err != nil {
					return err
				}
				return service.DeleteUser(cmd.Context(), user.ID)
			})
		},
	})
	return cmd
}

// withService runs fn against a service wired from the config. Diagnostics go
// to stderr so stdout stays machine readable.
func withService(cmd *cobra.Command, configPath string, fn func(*app.ReviewService) error) error {
	cfg, log, err := loadConfig(configPath, os.Stderr)
	if err != nil {
		return err
	}
	rt, err := bootstrap(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt.service)
}

// findUser matches an id exactly or a name ignoring case.
func findUser(service *app.ReviewService, ref string) (domain.User, error) {
	if u, ok := service.User(ref); ok {
		return u, nil
	}
	for _, u := range service.Users() {
		if strings.EqualFold(u.Name, strings.TrimSpace(ref)) {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, ref)
}
