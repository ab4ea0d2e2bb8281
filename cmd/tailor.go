package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikogura/resume-forge/pkg/generator"
	"github.com/nikogura/resume-forge/pkg/pipeline"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	tailorProfile     string
	tailorPerson      string
	tailorEmphasis    string
	tailorMode        string
	tailorFormat      string
	tailorMaxAttempts int
	tailorForce       bool
	tailorCritique    bool
	tailorTimeout     time.Duration
)

//nolint:gochecknoglobals // Cobra boilerplate
var tailorCmd = &cobra.Command{
	Use:   "tailor <job-id>",
	Short: "Tailor, render and validate a resume for a stored job",
	Long: `Tailor your resume to a stored job posting, render it to PDF and validate it.

The first time a job is tailored, the rendered resume is also critiqued once and
regenerated with the critique's recommendations. Every run then validates the PDF
against the page and section rules and regenerates with the validator's corrections
until it passes or --max-attempts is used up. A resume that never passes is still
kept and its violations are printed.

Example:
  resume-forge tailor acme-sre
  resume-forge tailor acme-sre --mode leadership --format split --emphasis "incident response"
  resume-forge tailor acme-sre --force --max-attempts 3`,
	Args: cobra.ExactArgs(1),
	RunE: runTailor,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tailorCmd)
	tailorCmd.Flags().StringVar(&tailorProfile, "profile", "", "Master resume markdown (default from config)")
	tailorCmd.Flags().StringVar(&tailorPerson, "person", "", "Voice: first or third (default from config)")
	tailorCmd.Flags().StringVar(&tailorEmphasis, "emphasis", "", "Theme to emphasize")
	tailorCmd.Flags().StringVar(&tailorMode, "mode", "", "ic or leadership (default from config)")
	tailorCmd.Flags().StringVar(&tailorFormat, "format", "", "Experience layout: standard or split (default from config)")
	tailorCmd.Flags().IntVar(&tailorMaxAttempts, "max-attempts", 0, "Validation attempts (default from config)")
	tailorCmd.Flags().BoolVar(&tailorForce, "force", false, "Regenerate even when matching content is cached")
	tailorCmd.Flags().BoolVar(&tailorCritique, "critique", false, "Critique even when this job was tailored before")
	tailorCmd.Flags().DurationVar(&tailorTimeout, "timeout", 10*time.Minute, "Overall time limit")
}

func runTailor(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), tailorTimeout)
	defer cancel()

	var a *app
	a, err = loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if tailorMaxAttempts > 0 {
		a.orchestrator.MaxAttempts = tailorMaxAttempts
	}

	req := pipeline.Request{
		JobID:         args[0],
		ProfilePath:   firstNonEmpty(tailorProfile, a.cfg.ProfilePath),
		Options:       tailorOptions(a),
		ForceCritique: tailorCritique,
		Force:         tailorForce,
	}

	var result pipeline.Result
	result, err = a.orchestrator.Run(ctx, req)
	if err != nil {
		return err
	}

	printResult(result)
	return err
}

func tailorOptions(a *app) (opts generator.Options) {
	d := a.cfg.Defaults
	opts = generator.Options{
		Person:           firstNonEmpty(tailorPerson, d.Person),
		Emphasis:         tailorEmphasis,
		Mode:             firstNonEmpty(tailorMode, d.Mode),
		ExperienceFormat: firstNonEmpty(tailorFormat, d.Format),
	}
	return opts
}

func firstNonEmpty(values ...string) (result string) {
	for _, v := range values {
		if v != "" {
			result = v
			return result
		}
	}
	return result
}

func printResult(result pipeline.Result) {
	if verbose {
		fmt.Println("Decisions:")
		for _, d := range result.Trail {
			fmt.Printf("  %s\n", d)
		}
		fmt.Println()
	}

	switch {
	case result.Passed:
		fmt.Println("✓ Resume passed validation")
	case !result.Validated:
		fmt.Println("⚠ Resume was not validated")
	default:
		fmt.Println("⚠ Resume did not pass validation:")
		for i, v := range result.Violations {
			fmt.Printf("  %d. %s\n", i+1, v)
		}
	}

	if len(result.Changes) > 0 {
		fmt.Println("\nChanges:")
		for _, c := range result.Changes {
			fmt.Printf("  - %s\n", c)
		}
	}

	fmt.Printf("\nResume: %s\n", result.ArtifactPath)
	fmt.Printf("Tokens: %d in / %d out (%d cached), est. $%.4f\n",
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CachedTokens, result.EstimatedCost)
}
