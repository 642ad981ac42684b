package cli

import (
	"fmt"

	"github.com/maneesh/talentdrop/internal/capture"
	"github.com/spf13/cobra"
)

func newApplyCmd() *cobra.Command {
	var (
		form   capture.Form
		rec    recordOptions
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run the whole application flow",
		Long: `Fill in the profile and resume, record the self-introduction video,
then review what the server stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := initContext(cmd)
			if err != nil {
				return err
			}
			p := newPrompter(cmd.InOrStdin(), ctx.Out)
			defer p.Close()

			fmt.Fprintln(ctx.Out, "Step 1 of 3: profile and resume")
			candidate, err := runSubmit(cmd.Context(), ctx, p, form)
			if err != nil {
				return err
			}

			fmt.Fprintln(ctx.Out, "Step 2 of 3: self-introduction video")
			if rec.source == "" {
				source, ok := p.Ask("Video source (path to a recording)")
				if !ok || source == "" {
					return fmt.Errorf("no video source for candidate %s", candidate.ID)
				}
				rec.source = source
			}
			if _, err := runRecord(cmd.Context(), ctx, p, candidate.ID, rec); err != nil {
				return err
			}

			fmt.Fprintln(ctx.Out, "Step 3 of 3: review")
			if outDir == "" {
				outDir = ctx.Config.OutputDir
			}
			return runReview(cmd.Context(), ctx, candidate.ID, outDir)
		},
	}
	addFormFlags(cmd, &form)
	addRecordFlags(cmd, &rec)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for downloaded files (default from config)")
	return cmd
}
