package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelpull/internal/api"
	"reelpull/internal/daemonctl"
	"reelpull/internal/ipc"
	"reelpull/internal/jobs"
	"reelpull/internal/textutil"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, scheduler, and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), status, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
}

func renderStatus(out io.Writer, status *ipc.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("reelpull", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("reelpull", statusWarn, "Not running (run `reelpull daemon start`)", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Broker", availabilityKind(status.Scheduler.Availability), availabilityDetail(status.Scheduler), colorize))
	if status.Running {
		load := status.Scheduler.Load
		kind := statusOK
		if load.Overloaded {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Load", kind, fmt.Sprintf("cpu %.1f%%, memory %.1f%%", load.CPUPercent, load.MemoryPercent), colorize))
	}
	fmt.Fprintln(out)

	if len(status.Scheduler.Tiers) > 0 {
		for _, line := range renderSectionHeader("Tiers", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, renderTable(
			[]column{col("Tier"), numCol("Workers"), numCol("Active"), numCol("Waiting"), col("Paused")},
			tierRows(status.Scheduler.Tiers),
		))
		fmt.Fprintln(out)
	}

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range dependencyLines(status.Dependencies, colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Jobs", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := jobCountRows(status.JobCounts)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No jobs recorded")
		return
	}
	fmt.Fprintln(out, renderTable([]column{col("Status"), numCol("Count")}, rows))
}

func availabilityKind(value string) statusKind {
	switch value {
	case "available":
		return statusOK
	case "connecting":
		return statusInfo
	case "stopped":
		return statusInfo
	default:
		return statusWarn
	}
}

func availabilityDetail(s api.SchedulerStatus) string {
	detail := textutil.Title(s.Availability)
	if s.Availability == "unavailable" {
		detail = "Direct processing"
	}
	if s.LastError != "" {
		detail += " (" + s.LastError + ")"
	}
	return detail
}

func tierRows(tiers []api.TierStatus) [][]string {
	rows := make([][]string, 0, len(tiers))
	for _, t := range tiers {
		rows = append(rows, []string{
			textutil.Title(t.Tier),
			strconv.Itoa(t.Concurrency),
			strconv.FormatInt(t.Active, 10),
			strconv.FormatInt(t.Waiting, 10),
			yesNo(t.Paused),
		})
	}
	return rows
}

func jobCountRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, status := range jobs.AllStatuses {
		if count := counts[string(status)]; count > 0 {
			rows = append(rows, []string{textutil.Title(string(status)), strconv.Itoa(count)})
		}
	}
	return rows
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			switch {
			case dep.Version != "" && dep.Command != "":
				message = fmt.Sprintf("Ready (%s, command: %s)", dep.Version, dep.Command)
			case dep.Command != "":
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
