package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"coursecast/internal/queue"
)

const jobErrorWidth = 60

func newHLSJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clearFinished bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent conversion jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				out := cmd.OutOrStdout()
				if clearFinished {
					removed, err := s.jobs.ClearFinished(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d finished job(s).\n", removed)
				}

				jobs, err := s.jobs.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No conversion jobs recorded.")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, jobRow(job))
				}
				fmt.Fprintln(out, renderTable("Conversion jobs",
					[]string{"Job", "Asset", "Status", "Forced", "Worker", "Updated", "Error"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to list")
	cmd.Flags().BoolVar(&clearFinished, "clear-finished", false, "Delete done, failed and skipped jobs first")
	return cmd
}

func jobRow(job *queue.Job) []string {
	return []string{
		strconv.FormatInt(job.ID, 10),
		strconv.FormatInt(job.AssetID, 10),
		string(job.Status),
		yesNo(job.Force),
		valueOrDash(job.WorkerID),
		job.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		valueOrDash(truncate(job.ErrorMessage, jobErrorWidth)),
	}
}

func truncate(value string, width int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
