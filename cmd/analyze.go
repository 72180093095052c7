package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/crit/internal/models"
	"github.com/joescharf/crit/internal/output"
	"github.com/joescharf/crit/internal/staticcheck"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Run static analysis only",
	Long: `Run the static analysis stage over one or more files without the
AI review or approval stages. Reports issues, complexity metrics, and
syntax/type validity per file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzeRun(args)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

// loadFiles reads the given paths from disk into pipeline inputs. The
// path doubles as the file id.
func loadFiles(paths []string) ([]models.ReviewedFile, error) {
	files := make([]models.ReviewedFile, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, models.ReviewedFile{
			ID:       p,
			Path:     p,
			Language: staticcheck.DetectLanguage(p),
			Content:  string(content),
		})
	}
	return files, nil
}

func analyzeRun(paths []string) error {
	files, err := loadFiles(paths)
	if err != nil {
		return err
	}

	analyzer := getAnalyzer()
	results, failures := analyzer.AnalyzeMany(context.Background(), files)

	if analyzeJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, string(data))
	} else {
		table := ui.Table([]string{"File", "Language", "Errors", "Warnings", "Info", "Cyclomatic", "Maintainability", "Valid"})
		for _, r := range results {
			valid := output.Green("yes")
			if !r.SyntaxValid || !r.TypeCheckPassed {
				valid = output.Red("no")
			}
			table.Append([]string{
				output.Cyan(r.FileID),
				r.Language,
				fmt.Sprintf("%d", r.ErrorCount()),
				fmt.Sprintf("%d", r.WarningCount()),
				fmt.Sprintf("%d", r.InfoCount()),
				fmt.Sprintf("%.0f", r.Metrics.Cyclomatic),
				fmt.Sprintf("%.0f", r.Metrics.Maintainability),
				valid,
			})
		}
		if err := table.Render(); err != nil {
			return err
		}

		if verbose {
			for _, r := range results {
				printIssues(r)
			}
		}
	}

	for _, f := range failures {
		ui.Error("%s: %v", f.FileID, f.Err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d files failed analysis", len(failures), len(files))
	}
	return nil
}

func printIssues(r *models.StaticAnalysisResult) {
	issues := make([]models.StaticIssue, 0, r.IssueCount())
	issues = append(issues, r.SyntaxIssues...)
	issues = append(issues, r.TypeIssues...)
	issues = append(issues, r.StyleIssues...)
	if len(issues) == 0 {
		return
	}

	fmt.Fprintln(ui.Out)
	ui.Info("%s (%s backend)", r.FileID, r.Backend)
	for _, iss := range issues {
		ui.VerboseLog("%s:%d %s [%s] %s", r.FileID, iss.Line, output.SeverityColor(string(iss.Severity)), iss.Kind, iss.Message)
	}
}
