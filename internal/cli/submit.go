package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/maneesh/talentdrop/internal/capture"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/spf13/cobra"
)

func addFormFlags(cmd *cobra.Command, f *capture.Form) {
	cmd.Flags().StringVar(&f.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&f.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&f.PositionApplied, "position", "", "position applied for")
	cmd.Flags().StringVar(&f.CurrentPosition, "current-position", "", "current position")
	cmd.Flags().StringVar(&f.ExperienceYears, "experience", "", "years of experience")
	cmd.Flags().StringVar(&f.ResumePath, "resume", "", "path to the resume PDF")
}

func newSubmitCmd() *cobra.Command {
	var form capture.Form

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a candidate and upload the resume",
		Long: `Validate the profile fields and resume locally, create the candidate,
then upload the resume. Missing fields are prompted for on the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := initContext(cmd)
			if err != nil {
				return err
			}
			p := newPrompter(cmd.InOrStdin(), ctx.Out)
			defer p.Close()

			rec, err := runSubmit(cmd.Context(), ctx, p, form)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.Out, "Candidate ID: %s\n", rec.ID)
			return nil
		},
	}
	addFormFlags(cmd, &form)
	return cmd
}

// runSubmit fills missing fields interactively and submits until the form
// validates or input runs out.
func runSubmit(ctx context.Context, c *cmdContext, p *prompter, form capture.Form) (*models.Candidate, error) {
	fillForm(p, &form)

	for {
		rec, err := capture.Submit(ctx, c.API, form)

		var fieldErrs capture.FormErrors
		switch {
		case err == nil:
			c.success("✓ Application submitted for %s %s (%s)", rec.FirstName, rec.LastName, shortID(rec.ID))
			return rec, nil
		case errors.As(err, &fieldErrs):
			printFieldErrors(c.Err, fieldErrs)
			if !refill(p, &form, fieldErrs) {
				return nil, errors.New("application form is incomplete")
			}
		case rec != nil:
			// The candidate exists; only the resume needs another try.
			c.warn(fmt.Sprintf("resume upload failed: %v", err))
			return retryResume(ctx, c, p, rec)
		default:
			return nil, fmt.Errorf("submit application: %w", err)
		}
	}
}

func retryResume(ctx context.Context, c *cmdContext, p *prompter, rec *models.Candidate) (*models.Candidate, error) {
	for {
		path, ok := p.Ask("Resume path (empty to give up)")
		if !ok || path == "" {
			return nil, fmt.Errorf("resume not uploaded for candidate %s", rec.ID)
		}
		updated, err := capture.UploadResume(ctx, c.API, rec.ID, path)
		if err == nil {
			c.success("✓ Resume uploaded for %s", shortID(rec.ID))
			return updated, nil
		}
		c.warn(fmt.Sprintf("resume upload failed: %v", err))
	}
}

type formField struct {
	name  string
	label string
	value *string
}

func formFields(f *capture.Form) []formField {
	return []formField{
		{"firstName", "First name", &f.FirstName},
		{"lastName", "Last name", &f.LastName},
		{"positionApplied", "Position applied for", &f.PositionApplied},
		{"currentPosition", "Current position", &f.CurrentPosition},
		{"experienceYears", "Years of experience", &f.ExperienceYears},
		{"resume", "Resume (PDF path)", &f.ResumePath},
	}
}

// fillForm prompts for every empty field.
func fillForm(p *prompter, f *capture.Form) {
	for _, field := range formFields(f) {
		if *field.value != "" {
			continue
		}
		if v, ok := p.Ask(field.label); ok {
			*field.value = v
		}
	}
}

// refill prompts again for the fields that failed validation.
func refill(p *prompter, f *capture.Form, errs capture.FormErrors) bool {
	bad := make(map[string]bool, len(errs))
	for _, e := range errs {
		bad[e.Field] = true
	}
	for _, field := range formFields(f) {
		if !bad[field.name] {
			continue
		}
		v, ok := p.Ask(field.label)
		if !ok {
			return false
		}
		*field.value = v
	}
	return true
}

func printFieldErrors(w io.Writer, errs capture.FormErrors) {
	red := color.New(color.FgRed)
	for _, e := range errs {
		red.Fprintf(w, "  %s: %s\n", e.Field, e.Message)
	}
}

func newUploadResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload-resume <candidate-id> <path>",
		Short: "Upload or replace a candidate's resume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := initContext(cmd)
			if err != nil {
				return err
			}
			rec, err := capture.UploadResume(cmd.Context(), ctx.API, args[0], args[1])
			if err != nil {
				return fmt.Errorf("upload resume: %w", err)
			}
			ctx.success("✓ Resume uploaded for %s (stage: %s)", shortID(rec.ID), rec.Stage())
			return nil
		},
	}
}
