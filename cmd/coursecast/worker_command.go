package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coursecast/internal/daemon"
	"coursecast/internal/logging"
	"coursecast/internal/transcode"
	"coursecast/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var apiBind string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the conversion worker in the foreground",
		Long: "Run the conversion worker until interrupted. The worker drains the job queue,\n" +
			"reclaims jobs whose worker stopped heartbeating, and serves the status API.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers.Count = workers
			}
			if cmd.Flags().Changed("api-bind") {
				cfg.API.Bind = apiBind
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sess, err := ctx.openSession(true)
			if err != nil {
				return err
			}
			defer sess.Close()

			converter := transcode.NewConverter(cfg, sess.assets, sess.runner, sess.logger)
			pool := worker.NewPool(cfg, sess.jobs, sess.assets, converter, cfg.Workers.Count, sess.logger)
			d, err := daemon.New(cfg, sess.db, pool, sess.probe, sess.logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}

			snapshot := sess.probe.Check(signalCtx)
			if !snapshot.Available {
				logging.WarnWithContext(sess.logger, "transcoder unavailable; queued jobs will fail", "capability_unavailable",
					logging.Int("missing_requirements", len(snapshot.MissingRequirements)),
					logging.String(logging.FieldErrorHint, "run 'coursecast hls capability' for remediation steps"),
				)
			}

			if err := d.Start(signalCtx); err != nil {
				return err
			}
			defer d.Stop()

			status := d.Status(signalCtx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "coursecast worker running with %d worker(s)\n", status.Pool.Workers)
			if status.APIAddress != "" {
				fmt.Fprintf(out, "Status API listening on http://%s\n", status.APIAddress)
			}

			<-signalCtx.Done()
			sess.logger.Info("coursecast worker shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent conversions (0 = one per CPU, at most 4)")
	cmd.Flags().StringVar(&apiBind, "api-bind", "", "Status API listen address (empty disables the API)")
	return cmd
}
