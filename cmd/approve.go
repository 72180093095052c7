package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/crit/internal/models"
	"github.com/joescharf/crit/internal/output"
)

var (
	approveDecision string
	approveReason   string
	approveReviewer string
	approveComments string
	approveChanges  []string
	approveIssues   int
)

var approveCmd = &cobra.Command{
	Use:   "approve <file-id>",
	Short: "Record a review decision for a file",
	Long: `Record a manual review decision for a file. The decision must be one
of: approved, rejected, needs_changes, requires_manual_review. A
needs_changes decision requires at least one --request-change.

Decisions are append-only; recording a new decision never rewrites
history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return approveRun(cmd.Context(), args[0])
	},
}

var approveHistoryCmd = &cobra.Command{
	Use:   "history <file-id>",
	Short: "Show the decision history for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return approveHistoryRun(cmd.Context(), args[0])
	},
}

func init() {
	approveCmd.Flags().StringVarP(&approveDecision, "decision", "d", "", "Decision: approved, rejected, needs_changes, requires_manual_review")
	approveCmd.Flags().StringVarP(&approveReason, "reasoning", "r", "", "Why this decision was made")
	approveCmd.Flags().StringVar(&approveReviewer, "reviewer", "cli", "Reviewer identity")
	approveCmd.Flags().StringVar(&approveComments, "comments", "", "Freeform comments")
	approveCmd.Flags().StringArrayVar(&approveChanges, "request-change", nil, "Required change (repeatable, needs_changes only)")
	approveCmd.Flags().IntVar(&approveIssues, "approved-issues", 0, "Number of known issues accepted with approval")
	_ = approveCmd.MarkFlagRequired("decision")

	approveCmd.AddCommand(approveHistoryCmd)
	rootCmd.AddCommand(approveCmd)
}

func approveRun(ctx context.Context, fileID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run the decision through the engine so CLI decisions get the same
	// validation as pipeline decisions.
	engine := getEngine()
	recorded, err := engine.ProcessApprovalDecision(models.ApprovalDecision{
		FileID:           fileID,
		Decision:         models.Decision(approveDecision),
		Reasoning:        approveReason,
		Reviewer:         approveReviewer,
		Comments:         approveComments,
		RequestedChanges: approveChanges,
		ApprovedIssues:   approveIssues,
	})
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would record %s for %s", recorded.Decision, fileID)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	if err := s.CreateApprovalDecision(ctx, recorded); err != nil {
		return err
	}

	ui.Success("Recorded %s for %s", output.DecisionColor(string(recorded.Decision)), fileID)
	return nil
}

func approveHistoryRun(ctx context.Context, fileID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	decisions, err := s.ListApprovalDecisions(ctx, fileID)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		ui.Info("No decisions recorded for %s", fileID)
		return nil
	}

	table := ui.Table([]string{"Decided", "Decision", "Reviewer", "Reasoning"})
	for _, d := range decisions {
		reasoning := d.Reasoning
		if len(d.RequestedChanges) > 0 {
			reasoning = fmt.Sprintf("%s (changes: %s)", reasoning, strings.Join(d.RequestedChanges, "; "))
		}
		table.Append([]string{
			d.DecidedAt.Local().Format("2006-01-02 15:04"),
			output.DecisionColor(string(d.Decision)),
			d.Reviewer,
			reasoning,
		})
	}
	return table.Render()
}
