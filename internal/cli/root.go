// Package cli implements the intake command-line client.
package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/maneesh/talentdrop/internal/client"
	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *Config
	API    *client.HTTPClient
	Out    io.Writer
	Err    io.Writer
}

// initContext loads configuration and builds the API client
func initContext(cmd *cobra.Command) (*cmdContext, error) {
	path, explicit := configPath, cmd.Flags().Changed("config")
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg, err := LoadConfig(path, explicit)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	} else if env := os.Getenv("INTAKE_SERVER_URL"); env != "" {
		cfg.ServerURL = env
	}

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	return &cmdContext{
		Config: cfg,
		API:    client.New(cfg.ServerURL, client.WithTimeout(timeout)),
		Out:    out,
		Err:    &syncWriter{w: cmd.ErrOrStderr()},
	}, nil
}

// warn prints a user-visible warning.
func (c *cmdContext) warn(msg string) {
	color.New(color.FgYellow).Fprintf(c.Err, "warning: %s\n", msg)
}

func (c *cmdContext) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(c.Out, format+"\n", args...)
}

// NewRootCmd builds the intake command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "intake",
		Short: "Candidate intake client",
		Long: `intake walks a candidate through the application flow against a
talentdrop server: profile and resume, a recorded self-introduction video,
and a final review of everything that was stored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+DefaultConfigPath()+")")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL, including any API base path")

	root.AddCommand(newSubmitCmd())
	root.AddCommand(newUploadResumeCmd())
	root.AddCommand(newRecordCmd())
	root.AddCommand(newReviewCmd())
	root.AddCommand(newApplyCmd())
	root.AddCommand(newInitConfigCmd())
	return root
}

// Execute runs the root command
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		return err
	}
	return nil
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = DefaultConfigPath()
			}
			cfg := DefaultConfig()
			if serverURL != "" {
				cfg.ServerURL = serverURL
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
}

// syncWriter serializes writes from the progress ticker and the command.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
