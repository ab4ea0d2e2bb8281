package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikogura/resume-forge/pkg/pipeline"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rerenderCmd = &cobra.Command{
	Use:   "rerender <job-id>",
	Short: "Render the cached resume for a job again",
	Long: `Render the most recent tailored content for a job without calling any model.

Useful after editing the pandoc template. When nothing is cached yet, the job is
tailored as with 'tailor'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRerender,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(rerenderCmd)
}

func runRerender(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	var a *app
	a, err = loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var result pipeline.Result
	result, err = a.orchestrator.Run(ctx, pipeline.Request{
		JobID:       args[0],
		ProfilePath: a.cfg.ProfilePath,
		Options:     tailorOptions(a),
		RebuildOnly: true,
	})
	if err != nil {
		return err
	}

	printResult(result)
	return err
}
