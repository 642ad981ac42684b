package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/maneesh/talentdrop/internal/capture"
	"github.com/spf13/cobra"
)

func newReviewCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "review <candidate-id>",
		Short: "Show a candidate and download the stored files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := initContext(cmd)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = ctx.Config.OutputDir
			}
			return runReview(cmd.Context(), ctx, args[0], outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for downloaded files (default from config)")
	return cmd
}

func runReview(ctx context.Context, c *cmdContext, candidateID, dir string) error {
	logger := slog.New(slog.NewTextHandler(c.Err, &slog.HandlerOptions{Level: slog.LevelWarn}))

	res, err := capture.Review(ctx, c.API, candidateID, dir, logger)
	if err != nil {
		return err
	}

	rec := res.Candidate
	bold := color.New(color.Bold)
	bold.Fprintf(c.Out, "%s %s\n", rec.FirstName, rec.LastName)
	fmt.Fprintf(c.Out, "  ID:               %s\n", rec.ID)
	fmt.Fprintf(c.Out, "  Position applied: %s\n", rec.PositionApplied)
	fmt.Fprintf(c.Out, "  Current position: %s\n", rec.CurrentPosition)
	fmt.Fprintf(c.Out, "  Experience:       %d years\n", rec.ExperienceYears)
	fmt.Fprintf(c.Out, "  Stage:            %s\n", rec.Stage())

	printFile(c, "Resume", rec.ResumeFileID != nil, res.ResumePath, res.ResumeErr)
	printFile(c, "Video", rec.VideoFileID != nil, res.VideoPath, res.VideoErr)
	return nil
}

func printFile(c *cmdContext, label string, attached bool, path string, err error) {
	switch {
	case !attached:
		fmt.Fprintf(c.Out, "  %-17s %s\n", label+":", color.YellowString("not uploaded"))
	case err != nil:
		fmt.Fprintf(c.Out, "  %-17s %s\n", label+":", color.RedString("unavailable"))
	default:
		fmt.Fprintf(c.Out, "  %-17s %s\n", label+":", path)
	}
}
