package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikogura/resume-forge/pkg/store"
)

//nolint:gochecknoglobals // Cobra boilerplate
var critiqueCmd = &cobra.Command{
	Use:   "critique <job-id>",
	Short: "Critique the last rendered resume for a job",
	Long: `Ask the reviewer model to critique the most recently rendered resume for a job.

Recommendations are merged into the job's list and applied the next time it is tailored.
With --history, past critiques are listed instead and no model is called.`,
	Args: cobra.ExactArgs(1),
	RunE: runCritique,
}

//nolint:gochecknoglobals // Cobra flag
var critiqueHistory bool

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(critiqueCmd)
	critiqueCmd.Flags().BoolVar(&critiqueHistory, "history", false, "List earlier critiques for the job")
}

func runCritique(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	var a *app
	a, err = loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if critiqueHistory {
		var records []store.CritiqueRecord
		records, err = a.critic.Log.History(args[0])
		if err != nil {
			return err
		}
		printHistory(os.Stdout, args[0], records)
		return err
	}

	var record store.CritiqueRecord
	record, _, err = a.critic.Critique(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Rating: %d/10 (%s)\n", record.Rating, record.Domain)
	printList("Strengths", record.Strengths)
	printList("Weaknesses", record.Weaknesses)
	printList("Recommendations", record.Recommendations)
	if record.Analysis != "" {
		fmt.Printf("\n%s\n", record.Analysis)
	}

	return err
}

func printList(heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", heading)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

func printHistory(w io.Writer, jobID string, records []store.CritiqueRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintf(w, "No critiques recorded for %s\n", jobID)
		return
	}
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s  %2d/10  %-12s %d recommendations\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Rating, r.Domain, len(r.Recommendations))
	}
}
