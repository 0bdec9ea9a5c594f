package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lumenvid/recap/internal/tui"
	"github.com/lumenvid/recap/pkg/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch <video-id>",
	Short: "Follow an analysis session in a full-screen UI",
	Long: `Open a full-screen progress view for an analysis session: step
checklist, progress bar, live summary text, and elapsed time.

Keys: p pause, r resume, c cancel, q quit.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := resolveConfig(cmd)
	log := newLogger(cfg)

	ctx := context.Background()
	metrics := newRecorder(ctx, cfg, log)
	defer func() {
		if metrics != nil {
			_ = metrics.Close(context.Background())
		}
	}()

	// The TUI renders from Snapshot on a timer; no callbacks needed.
	ctrl, err := session.New(sessionConfig(cfg, args[0], log, metrics, session.Callbacks{}))
	if err != nil {
		return err
	}
	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	model := tui.New(ctrl, args[0])
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("watch UI: %w", err)
	}
	return nil
}
