package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/maneesh/talentdrop/internal/capture"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/spf13/cobra"
)

type recordOptions struct {
	source      string
	contentType string
	seconds     int
	yes         bool
}

func addRecordFlags(cmd *cobra.Command, o *recordOptions) {
	cmd.Flags().StringVar(&o.source, "source", "", "capture source to record from (a media file)")
	cmd.Flags().StringVar(&o.contentType, "content-type", "", "content type of the source (default from its extension)")
	cmd.Flags().IntVar(&o.seconds, "seconds", 0, "stop after this many seconds instead of waiting for Enter")
	cmd.Flags().BoolVarP(&o.yes, "yes", "y", false, "upload without asking once recording stops")
}

func newRecordCmd() *cobra.Command {
	var opts recordOptions

	cmd := &cobra.Command{
		Use:   "record <candidate-id>",
		Short: "Record and upload the self-introduction video",
		Long: `Record a video from the capture source and upload it for the candidate.
Press Enter to stop; recording also stops at the configured maximum.
After stopping you can upload, record again or quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := initContext(cmd)
			if err != nil {
				return err
			}
			p := newPrompter(cmd.InOrStdin(), ctx.Out)
			defer p.Close()

			_, err = runRecord(cmd.Context(), ctx, p, args[0], opts)
			return err
		},
	}
	addRecordFlags(cmd, &opts)
	cmd.MarkFlagRequired("source")
	return cmd
}

// runRecord drives one recording session to Done or until the user quits.
func runRecord(ctx context.Context, c *cmdContext, p *prompter, candidateID string, opts recordOptions) (*models.Candidate, error) {
	device := capture.FileDevice{Path: opts.source, ContentType: opts.contentType}

	autoStopped := make(chan struct{}, 1)
	session := capture.NewSession(device, c.API,
		capture.WithMaxDuration(c.Config.MaxRecordDuration()),
		capture.WithNotifier(capture.NotifierFunc(c.warn)),
		capture.WithProgress(func(elapsed, ceiling time.Duration) {
			fmt.Fprintf(c.Out, "\r%s %s / %s", color.RedString("● REC"), clock(elapsed), clock(ceiling))
			if elapsed >= ceiling {
				select {
				case autoStopped <- struct{}{}:
				default:
				}
			}
		}),
	)
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		return nil, err
	}

	for {
		switch session.State() {
		case capture.StateRecording:
			if err := waitForStop(ctx, c, p, session, opts.seconds, autoStopped); err != nil {
				return nil, err
			}

		case capture.StateIdle:
			// Nothing was captured; the warning is already shown.
			answer, ok := p.Ask("Press Enter to record again or q to quit")
			if !ok || strings.EqualFold(answer, "q") {
				return nil, capture.ErrNoData
			}
			if err := session.Start(ctx); err != nil {
				return nil, err
			}

		case capture.StateRecorded:
			clip, _ := session.Clip()
			fmt.Fprintf(c.Out, "Recorded %s (%d bytes, %s)\n", clock(clip.Duration), len(clip.Data), clip.ContentType)

			choice := "u"
			if !opts.yes {
				answer, ok := p.Ask("[u]pload, [r]ecord again or [q]uit")
				if !ok {
					return nil, errors.New("recording not uploaded")
				}
				choice = strings.ToLower(answer)
			}

			switch choice {
			case "u", "upload", "":
				rec, err := session.Upload(ctx, candidateID)
				if err != nil {
					if opts.yes {
						return nil, err
					}
					continue
				}
				c.success("✓ Video uploaded for %s (stage: %s)", shortID(rec.ID), rec.Stage())
				return rec, nil
			case "r", "record":
				if err := session.Rerecord(ctx); err != nil {
					return nil, err
				}
			case "q", "quit":
				return nil, errors.New("recording not uploaded")
			}

		default:
			return nil, fmt.Errorf("unexpected session state %s", session.State())
		}
	}
}

// waitForStop blocks until the user presses Enter, the optional deadline
// passes or the session reaches its ceiling.
func waitForStop(ctx context.Context, c *cmdContext, p *prompter, s *capture.Session, seconds int, autoStopped <-chan struct{}) error {
	_, ceiling := s.Progress()
	fmt.Fprintf(c.Out, "Recording (max %s). Press Enter to stop.\n", clock(ceiling))

	var deadline <-chan time.Time
	if seconds > 0 {
		timer := time.NewTimer(time.Duration(seconds) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-autoStopped:
		fmt.Fprintln(c.Out)
		return nil
	case <-p.Lines():
	case <-deadline:
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Fprintln(c.Out)

	err := s.Stop()
	if errors.Is(err, capture.ErrNoData) || errors.Is(err, capture.ErrInvalidTransition) {
		// No data returns to Idle. An invalid transition means the ceiling
		// stopped the recording first.
		return nil
	}
	return err
}

// clock formats d as m:ss.
func clock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
