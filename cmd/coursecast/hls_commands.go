package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coursecast/internal/catalog"
	"coursecast/internal/pipeline"
	"coursecast/internal/queue"
	"coursecast/internal/services"
)

func newHLSCommand(ctx *commandContext) *cobra.Command {
	hlsCmd := &cobra.Command{
		Use:   "hls",
		Short: "Inspect and schedule HLS conversions",
	}

	hlsCmd.AddCommand(newHLSCapabilityCommand(ctx))
	hlsCmd.AddCommand(newHLSSummaryCommand(ctx))
	hlsCmd.AddCommand(newHLSConvertCommand(ctx))
	hlsCmd.AddCommand(newHLSEncodeCommand(ctx))
	hlsCmd.AddCommand(newHLSJobsCommand(ctx))

	return hlsCmd
}

func newHLSCapabilityCommand(ctx *commandContext) *cobra.Command {
	var clearCache bool

	cmd := &cobra.Command{
		Use:   "capability",
		Short: "Report whether this host can run HLS conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if clearCache {
					if err := s.probe.ClearCache(cmd.Context()); err != nil {
						return fmt.Errorf("clear capability cache: %w", err)
					}
					fmt.Fprintln(out, "Capability cache cleared")
				}

				snapshot := s.probe.Check(cmd.Context())
				fmt.Fprintln(out, boolStatusLine("Available", snapshot.Available, colorize))
				fmt.Fprintln(out, boolStatusLine("Subprocess available", snapshot.SubprocessAvailable, colorize))
				if snapshot.Available {
					fmt.Fprintln(out, renderStatusLine("Path", statusInfo, snapshot.BinaryPath, colorize))
					fmt.Fprintln(out, renderStatusLine("Version", statusInfo, snapshot.Version, colorize))
					fmt.Fprintln(out, renderStatusLine("Cached", statusInfo, yesNo(snapshot.Cached), colorize))
					return nil
				}

				fmt.Fprintln(out)
				fmt.Fprintln(out, "Missing requirements:")
				for _, missing := range snapshot.MissingRequirements {
					fmt.Fprintf(out, "  - %s\n", missing)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Remediation:")
				for i, step := range snapshot.Remediation() {
					fmt.Fprintf(out, "  %d. %s\n", i+1, step)
				}
				return exitCode(1)
			})
		},
	}

	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Discard the cached capability result before checking")
	return cmd
}

func newHLSSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show HLS conversion status counts for uploaded videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				summary, err := s.assets.Summary(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				counts := []struct {
					key   string
					value int
				}{
					{"total", summary.Total},
					{"not_started", summary.NotStarted},
					{"pending", summary.Pending},
					{"processing", summary.Processing},
					{"completed", summary.Completed},
					{"failed", summary.Failed},
				}
				rows := make([][]string, 0, len(counts))
				for _, c := range counts {
					rows = append(rows, []string{humanize(c.key), strconv.Itoa(c.value)})
				}
				fmt.Fprintln(out, renderTable("HLS status", []string{"Status", "Assets"}, rows, []columnAlignment{alignLeft, alignRight}))

				if waiting := summary.AwaitingQueue(); waiting > 0 {
					fmt.Fprintf(out, "\n%d video(s) still need HLS conversion.\n", waiting)
					fmt.Fprintln(out, "  Run 'coursecast hls convert' to queue them and keep 'coursecast worker' running to process the queue.")
				}
				if summary.Failed > 0 {
					fmt.Fprintf(out, "\n%d video(s) failed conversion.\n", summary.Failed)
					fmt.Fprintln(out, "  Inspect one with 'coursecast hls encode <id> --check' and retry with --force,")
					fmt.Fprintln(out, "  or re-queue all of them with 'coursecast hls convert --force'.")
				}
				return nil
			})
		},
	}
}

func newHLSConvertCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var force bool

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Queue HLS conversions for uploaded videos that need them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				out := cmd.OutOrStdout()
				opts := pipeline.BulkOptions{Limit: limit, Force: force}
				if !cmd.Flags().Changed("limit") {
					opts.Limit = s.cfg.Bulk.DefaultLimit
				}
				if opts.Limit <= 0 {
					fmt.Fprintf(out, "--limit must be a positive number (got %d); nothing was queued.\n", opts.Limit)
					return nil
				}
				report, err := s.orchestrator.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if report.Selected == 0 {
					fmt.Fprintln(out, "No videos need HLS conversion.")
					return nil
				}
				fmt.Fprintf(out, "Queued: %d\n", report.Queued)
				fmt.Fprintf(out, "Skipped: %d\n", report.Skipped)
				if report.Queued > 0 {
					fmt.Fprintln(out, "Conversions run in the background; start 'coursecast worker' if it is not already running.")
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", pipeline.DefaultLimit, "Maximum number of videos to consider (defaults to bulk.default_limit)")
	cmd.Flags().BoolVar(&force, "force", false, "Also re-queue videos that completed or failed")
	return cmd
}

func newHLSEncodeCommand(ctx *commandContext) *cobra.Command {
	var check bool
	var force bool
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "encode <asset-id>",
		Short: "Inspect or queue the HLS conversion of one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid video asset id %q", args[0])
			}
			return ctx.withSession(func(s *session) error {
				out := cmd.OutOrStdout()
				asset, err := s.assets.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asset == nil {
					fmt.Fprintf(out, "Video asset %d not found.\n", id)
					return exitCode(1)
				}
				if asset.Kind != catalog.KindFile {
					fmt.Fprintf(out, "Video asset %d is %s, not an uploaded file; HLS conversion does not apply.\n", id, asset.Kind)
					return exitCode(1)
				}

				if check {
					job, err := s.jobs.ActiveForAsset(cmd.Context(), id)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, renderFields(assetFields(asset, job)))
					return nil
				}

				if reason := asset.IneligibleReason(); reason != "" {
					fmt.Fprintf(out, "Video asset %d cannot be converted: %s.\n", id, reason)
					return exitCode(1)
				}
				if !asset.NeedsEncoding(force) {
					fmt.Fprintf(out, "Video asset %d does not need encoding (status: %s).\n", id, asset.HLSStatus.Label())
					fmt.Fprintln(out, "Use --force to reset it and encode again.")
					return nil
				}

				if !assumeYes {
					prompt := fmt.Sprintf("Reset HLS state for %q (asset %d) and queue a conversion?", asset.Title, id)
					ok, err := confirm(cmd.InOrStdin(), out, prompt)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, "Aborted.")
						return nil
					}
				}

				result, err := s.dispatcher.RequestConversion(cmd.Context(), id, force)
				if errors.Is(err, services.ErrIneligibleAsset) {
					fmt.Fprintf(out, "Video asset %d cannot be converted: %s.\n", id, services.FailureMessage(err))
					return exitCode(1)
				}
				if err != nil {
					return err
				}
				switch {
				case result.Skipped:
					fmt.Fprintf(out, "Video asset %d was not queued: %s.\n", id, result.Reason)
				case result.Reused:
					fmt.Fprintf(out, "Video asset %d is already queued (job %d).\n", id, result.JobID)
				default:
					fmt.Fprintf(out, "Queued video asset %d for HLS conversion (job %d, request %s).\n", id, result.JobID, result.RequestID)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Show the asset's HLS state without changing it")
	cmd.Flags().BoolVar(&force, "force", false, "Encode even when the asset is completed or failed")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func assetFields(asset *catalog.VideoAsset, job *queue.Job) [][2]string {
	encodedAt := "-"
	if asset.HLSEncodedAt != nil {
		encodedAt = asset.HLSEncodedAt.Local().Format(time.RFC3339)
	}
	activeJob := "-"
	if job != nil {
		activeJob = fmt.Sprintf("%d (%s)", job.ID, job.Status)
	}
	return [][2]string{
		{"Title", asset.Title},
		{"Type", string(asset.Kind)},
		{"File", valueOrDash(asset.SourcePath)},
		{"Status", asset.HLSStatus.Label()},
		{"Manifest", valueOrDash(asset.HLSManifestPath)},
		{"Error", valueOrDash(asset.HLSErrorMessage)},
		{"Encoded at", encodedAt},
		{"Has HLS", yesNo(asset.HasHLS())},
		{"Needs HLS", yesNo(asset.NeedsEncoding(false))},
		{"Active job", activeJob},
	}
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// confirm asks a yes/no question and treats anything but y or yes as no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
