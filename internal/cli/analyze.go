package cli

import (
	"fmt"

	"github.com/spacesedan/feedbot/internal/jobs"
	"github.com/spacesedan/feedbot/internal/models"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "analyze <brand>",
		Short: "Submit a brand for analysis",
		Long: `Submit a brand for analysis. The command returns once the backend has
accepted the request; use --watch to follow the results as they arrive.`,
		Args: exactlyOneBrand,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			controller := jobs.NewController(a.backend, jobs.Options{
				Limit:          a.cfg.SubmitLimit,
				IncludeReddit:  a.cfg.IncludeReddit,
				IncludeTwitter: a.cfg.IncludeTwitter,
				Timeout:        a.cfg.RequestTimeout,
			})

			if err := controller.Submit(cmd.Context(), args[0]); err != nil {
				return err
			}
			if controller.Status() == models.JobIdle {
				fmt.Fprintln(out, "Nothing to submit: brand is blank.")
				return nil
			}

			fmt.Fprintf(out, "Submitting %s...\n", controller.Job().Brand)
			job, err := controller.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if job.Status == models.JobFailed {
				return fmt.Errorf("submission failed: %s", job.Error)
			}

			fmt.Fprintf(out, "%s accepted for analysis (job %s).\n", job.Brand, job.ID)
			if !watch {
				fmt.Fprintf(out, "Follow the results with: feedbot watch %q\n", job.Brand)
				return nil
			}
			return runWatch(cmd.Context(), out, a, job.Brand, watchOptions{interval: a.cfg.PollInterval})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow results after the submission is accepted")
	return cmd
}
