package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"museflow/internal/models"
)

func newTopicsCmd(app *App) *cobra.Command {
	var category string
	var limit int
	cmd := &cobra.Command{
		Use:   "topics [topic-id]",
		Short: "List writing topics, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				t, err := app.Client.Topic(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatTopic(t))
				return nil
			}
			c := models.Category(category)
			if c != "" && !c.Valid() {
				return fmt.Errorf("unknown category %q", category)
			}
			topics, err := app.Client.Topics(cmd.Context(), c, limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatTopics(topics))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "imagination, emotion, reflection, creative or philosophical")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of topics")
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List your sessions, or show one with its feedback",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				ws, err := app.Client.Session(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, header(ws.ID))
				fmt.Fprintln(out, ws.Content)
				if ws.Feedback != nil {
					fmt.Fprintln(out)
					fmt.Fprint(out, formatFeedback(feedbackResult(*ws.Feedback)))
				}
				return nil
			}
			st := models.Status(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			sessions, err := app.Client.Sessions(cmd.Context(), st)
			if err != nil {
				return err
			}
			fmt.Fprint(out, formatSessions(sessions))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "draft or completed")
	return cmd
}

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals, averages and your current streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, tz, err := app.Client.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatStats(st, tz, time.Now()))
			return nil
		},
	}
}
