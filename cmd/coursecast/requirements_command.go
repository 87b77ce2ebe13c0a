package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coursecast/internal/requirements"
)

func newRequirementsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "requirements",
		Short:       "Check that this host can run coursecast",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			opts := requirements.Options{}

			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				fmt.Fprintf(out, "Configuration error: %v\n\n", cfgErr)
			} else {
				sess, err := ctx.openSession(false)
				if err != nil {
					fmt.Fprintf(out, "Database error: %v\n\n", err)
					opts.Config = cfg
				} else {
					defer sess.Close()
					opts.Config = sess.cfg
					opts.DB = sess.db
					opts.Probe = sess.probe
				}
				opts.ConfigPath = ctx.configPath
				opts.ConfigFound = ctx.configFound
			}

			report := requirements.NewAuditor(opts).Check(cmd.Context())
			summary := requirements.Summarize(report)
			renderRequirements(out, report, summary)
			if !summary.Ready {
				return exitCode(1)
			}
			return nil
		},
	}
}

func renderRequirements(out io.Writer, report requirements.Report, summary requirements.Summary) {
	colorize := shouldColorize(out)
	headers := []string{"Requirement", "Status", "Details"}

	fmt.Fprintln(out, renderTable("Core requirements", headers, requirementRows(report.Core, false), nil))
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable("Optional requirements", append(headers, "Impact"), requirementRows(report.Optional, true), nil))
	fmt.Fprintln(out)

	coreKind := statusOK
	if summary.CoreFailed > 0 {
		coreKind = statusError
	}
	optionalKind := statusOK
	if summary.OptionalFailed > 0 {
		optionalKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Core", coreKind, fmt.Sprintf("%d passed, %d failed", summary.CorePassed, summary.CoreFailed), colorize))
	fmt.Fprintln(out, renderStatusLine("Optional", optionalKind, fmt.Sprintf("%d passed, %d failed", summary.OptionalPassed, summary.OptionalFailed), colorize))

	if summary.Ready {
		fmt.Fprintln(out, renderStatusLine("Ready", statusOK, "all core requirements passed", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Ready", statusError, "fix the failed core requirements above", colorize))
		fmt.Fprintln(out, "  Check the [paths] section of the configuration file ('coursecast config init' writes a sample).")
	}
	if summary.OptionalFailed > 0 {
		fmt.Fprintln(out, "  Videos will be served as raw files until HLS conversion is available.")
		fmt.Fprintln(out, "  Run 'coursecast hls capability' for remediation steps.")
	}
}

func requirementRows(reqs []requirements.Requirement, withImpact bool) [][]string {
	rows := make([][]string, 0, len(reqs))
	for _, req := range reqs {
		status := "PASS"
		if !req.Passed {
			status = "FAIL"
		}
		row := []string{req.Name, status, req.Message}
		if withImpact {
			impact := ""
			if !req.Passed {
				impact = req.Impact
			}
			row = append(row, impact)
		}
		rows = append(rows, row)
	}
	return rows
}
