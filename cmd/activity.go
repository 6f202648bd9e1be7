package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mathpad/internal/store"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "List recent user activity",
	Long:  "List logins, solves, feedback, completed quizzes and classifications, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		user, _ := cmd.Flags().GetString("user")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryActivity(context.Background(), store.QueryOpts{
			Limit:    limit,
			Username: user,
		})
		if err != nil {
			return fmt.Errorf("query activity: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No activity recorded.")
			return nil
		}

		fmt.Fprintf(out, "%-19s  %-16s  %-13s  %s\n", "Timestamp", "User", "Kind", "Detail")
		fmt.Fprintln(out, strings.Repeat("─", 72))
		for _, e := range events {
			fmt.Fprintf(out, "%-19s  %-16s  %-13s  %s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(e.Username, 16),
				e.Kind,
				e.Detail,
			)
		}
		return nil
	},
}

func init() {
	activityCmd.Flags().IntP("limit", "n", 30, "Number of events to show")
	activityCmd.Flags().StringP("user", "u", "", "Only show events for this username")
}
