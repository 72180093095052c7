package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/crit/internal/models"
	"github.com/joescharf/crit/internal/orchestrator"
	"github.com/joescharf/crit/internal/output"
)

var (
	reviewContext string
	reviewJSON    bool
	reviewNoSave  bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <file>...",
	Short: "Run the full review pipeline",
	Long: `Run static analysis, AI review, and approval over one or more
files within a new review session. Results and decisions are persisted;
files that cannot be auto-decided are queued for manual review.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context(), args)
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewContext, "context", "", "Context passed to the AI reviewer (ticket, diff summary)")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Output the batch summary as JSON")
	reviewCmd.Flags().BoolVar(&reviewNoSave, "no-save", false, "Skip persisting results to the database")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(ctx context.Context, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	files, err := loadFiles(paths)
	if err != nil {
		return err
	}

	cfg := orchestrator.DefaultConfig()
	cfg.ReviewContext = reviewContext
	if cfg.AIEnabled && viper.GetString("anthropic.api_key") == "" {
		ui.Warning("anthropic.api_key is not set; skipping the AI review stage")
		cfg.AIEnabled = false
	}

	orch := orchestrator.New(cfg, getAnalyzer(), getReviewer(), getEngine(), bus)

	session, err := orch.StartSession()
	if err != nil {
		return err
	}
	ui.VerboseLog("started session %s", session.ID)

	summary, err := orch.ReviewFiles(ctx, files)
	if err != nil {
		return err
	}

	session, err = orch.CompleteSession()
	if err != nil {
		return err
	}

	if !reviewNoSave && !dryRun {
		if err := persistSummary(ctx, session, summary); err != nil {
			return err
		}
	} else if dryRun {
		ui.DryRunMsg("Would persist session %s with %d file reviews", session.ID, len(summary.Results))
	}

	if reviewJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, string(data))
		return nil
	}

	printSummary(orch, session, summary)
	return nil
}

func persistSummary(ctx context.Context, session *models.ReviewSession, summary *orchestrator.BatchSummary) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if err := s.CreateReviewSession(ctx, session); err != nil {
		return err
	}

	for _, res := range summary.Results {
		review := &models.FileReview{
			SessionID:     session.ID,
			FileID:        res.FileID,
			Path:          res.Path,
			CombinedScore: res.CombinedScore,
			Duration:      res.Duration,
		}
		if res.Static != nil {
			review.IssueCount += res.Static.IssueCount()
			review.CriticalCount += res.Static.ErrorCount()
		}
		if res.AI != nil {
			review.IssueCount += len(res.AI.Findings)
			review.CriticalCount += res.AI.CriticalCount()
		}
		if res.Decision != nil {
			review.Decision = res.Decision.Decision
		}
		if err := s.CreateFileReview(ctx, review); err != nil {
			return err
		}

		if res.Decision != nil {
			if err := s.CreateApprovalDecision(ctx, res.Decision); err != nil {
				return err
			}
		}
	}
	return nil
}

func printSummary(orch *orchestrator.Orchestrator, session *models.ReviewSession, summary *orchestrator.BatchSummary) {
	table := ui.Table([]string{"File", "Score", "Decision", "Issues", "Critical"})
	for _, res := range summary.Results {
		score := "-"
		if res.CombinedScore != nil {
			score = output.ScoreColor(*res.CombinedScore)
		}
		decision := "-"
		if res.Decision != nil {
			decision = output.DecisionColor(string(res.Decision.Decision))
		}
		issues, critical := 0, 0
		if res.Static != nil {
			issues += res.Static.IssueCount()
			critical += res.Static.ErrorCount()
		}
		if res.AI != nil {
			issues += len(res.AI.Findings)
			critical += res.AI.CriticalCount()
		}
		table.Append([]string{
			output.Cyan(res.Path),
			score,
			decision,
			fmt.Sprintf("%d", issues),
			fmt.Sprintf("%d", critical),
		})
	}
	_ = table.Render()
	fmt.Fprintln(ui.Out)

	ui.Info("Session %s: %d reviewed, %d approved, %d rejected (%s)",
		session.ID, session.FilesReviewed, session.FilesApproved, session.FilesRejected,
		summary.Duration.Round(time.Millisecond))
	if summary.MeanScore != nil {
		ui.Info("Mean score: %.1f", *summary.MeanScore)
	}
	for _, f := range summary.Failures {
		ui.Error("%s: %v", f.FileID, f.Err)
	}

	if pending := orch.Engine().GetPendingApprovals(); len(pending) > 0 {
		ui.Warning("%d file(s) queued for manual review:", len(pending))
		for _, p := range pending {
			ui.Warning("  %s", p.FileID)
		}
		ui.Info("Record decisions with 'crit approve <file-id> --decision <decision>'")
	}
}
