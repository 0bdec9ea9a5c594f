package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumenvid/recap/pkg/api"
	"github.com/lumenvid/recap/pkg/session"
)

var runCmd = &cobra.Command{
	Use:   "run <video-id>",
	Short: "Stream a summary to stdout",
	Long: `Run an analysis session in line mode: tokens stream to stdout as
they arrive, status changes go to stderr. Ctrl-C cancels the session.

Examples:
  recap run dQw4w9WgXcQ
  recap run dQw4w9WgXcQ --mode expert --language de`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := resolveConfig(cmd)
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := newRecorder(ctx, cfg, log)
	defer func() {
		if metrics != nil {
			_ = metrics.Close(context.Background())
		}
	}()

	var failure *api.SessionError
	callbacks := session.Callbacks{
		OnStatusChange: func(status api.SessionStatus) {
			log.Info("status", "status", status)
		},
		OnToken: func(token, _ string) {
			fmt.Print(token)
		},
		OnComplete: func(result api.CompleteResult) {
			fmt.Println()
			if result.SummaryID != nil {
				log.Info("summary persisted", "summary_id", *result.SummaryID)
			}
		},
		OnError: func(err api.SessionError) {
			failure = &err
		},
	}

	ctrl, err := session.New(sessionConfig(cfg, args[0], log, metrics, callbacks))
	if err != nil {
		return err
	}

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	<-ctrl.Done()

	snap := ctrl.Snapshot()
	if failure != nil {
		return fmt.Errorf("analysis failed: %s (%s)", failure.Message, failure.Code)
	}
	if snap.Status == api.StatusCancelled {
		fmt.Fprintln(os.Stderr)
		log.Info("session cancelled")
	}
	return nil
}
