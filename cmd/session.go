package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/crit/internal/output"
)

var sessionLimit int

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect past review sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun(cmd.Context())
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun(cmd.Context())
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session with its per-file results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionShowRun(cmd.Context(), args[0])
	},
}

func init() {
	sessionListCmd.Flags().IntVar(&sessionLimit, "limit", 20, "Maximum sessions to list")
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionListRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	sessions, err := s.ListReviewSessions(ctx, sessionLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		ui.Info("No review sessions recorded. Run 'crit review <file>...' to start one.")
		return nil
	}

	table := ui.Table([]string{"Session", "Started", "Status", "Files", "Approved", "Rejected", "Issues"})
	for _, sess := range sessions {
		table.Append([]string{
			output.Cyan(sess.ID),
			sess.StartedAt.Local().Format("2006-01-02 15:04"),
			string(sess.Status),
			itoa(sess.FilesReviewed),
			itoa(sess.FilesApproved),
			itoa(sess.FilesRejected),
			itoa(sess.TotalIssues),
		})
	}
	return table.Render()
}

func sessionShowRun(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	sess, err := s.GetReviewSession(ctx, id)
	if err != nil {
		return err
	}

	ui.Info("Session %s (%s)", sess.ID, sess.Status)
	ui.Info("Started: %s", sess.StartedAt.Local().Format(time.RFC1123))
	if sess.CompletedAt != nil {
		ui.Info("Completed: %s", sess.CompletedAt.Local().Format(time.RFC1123))
	}
	ui.Info("Files: %d reviewed, %d approved, %d rejected", sess.FilesReviewed, sess.FilesApproved, sess.FilesRejected)
	ui.Info("Issues: %d total, %d critical", sess.TotalIssues, sess.CriticalIssues)
	ui.Info("Stage time: static %s, ai %s, approval %s",
		sess.StaticDuration.Round(time.Millisecond),
		sess.AIDuration.Round(time.Millisecond),
		sess.ApprovalDuration.Round(time.Millisecond))

	reviews, err := s.ListFileReviews(ctx, id)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		return nil
	}

	table := ui.Table([]string{"File", "Score", "Decision", "Issues", "Critical", "Duration"})
	for _, r := range reviews {
		score := "-"
		if r.CombinedScore != nil {
			score = output.ScoreColor(*r.CombinedScore)
		}
		decision := "-"
		if r.Decision != "" {
			decision = output.DecisionColor(string(r.Decision))
		}
		table.Append([]string{
			output.Cyan(r.Path),
			score,
			decision,
			itoa(r.IssueCount),
			itoa(r.CriticalCount),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	return table.Render()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
