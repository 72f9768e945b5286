package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelpull/internal/ipc"
	"reelpull/internal/jobs"
	"reelpull/internal/textutil"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var req ipc.SubmitRequest
	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a download job",
		Long: "Submit a download job. When the daemon has no broker the job runs " +
			"immediately and this command waits for the result.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SourceURL = strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				return renderSubmission(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVarP(&req.FormatSelector, "format", "f", "", "Format selector passed to the extractor (default best)")
	cmd.Flags().StringVarP(&req.QualityKey, "quality", "q", "", "Quality key from `reelpull info`")
	cmd.Flags().StringVar(&req.CallerID, "caller", "", "Caller identity used for tier and retention")
	cmd.Flags().StringVar(&req.JobID, "job-id", "", "Explicit job id (generated when empty)")
	cmd.Flags().IntVar(&req.Policy.PremiumDays, "premium-days", 0, "Override premium retention days")
	cmd.Flags().IntVar(&req.Policy.FreeDays, "free-days", 0, "Override free retention days")
	cmd.Flags().IntVar(&req.Policy.AnonymousTTLMinutes, "anonymous-ttl", 0, "Override anonymous retention minutes")
	return cmd
}

func renderSubmission(out io.Writer, resp *ipc.SubmitResponse) error {
	if resp.Queued {
		fmt.Fprintf(out, "Queued job %s on %s tier (estimated wait %ds)\n", resp.JobID, resp.Tier, resp.EstimatedWaitSeconds)
		return nil
	}
	result := resp.Result
	if result == nil {
		fmt.Fprintf(out, "Job %s processed\n", resp.JobID)
		return nil
	}
	if result.Status == string(jobs.StatusFailed) {
		return fmt.Errorf("job %s failed: %s", resp.JobID, result.ErrorMessage)
	}
	fmt.Fprintf(out, "Job %s %s: %s (%s, %s)\n",
		resp.JobID, result.Status, result.ArtifactPath, result.FileType, humanize.IBytes(uint64(max(result.FileSizeBytes, 0))))
	return nil
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect job records",
	}

	var statuses []string
	var caller string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, status := range statuses {
				if _, ok := jobs.ParseStatus(status); !ok {
					return fmt.Errorf("unknown status %q", status)
				}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobList(ipc.JobListRequest{Statuses: statuses, CallerID: caller, Limit: limit})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]column{col("ID"), col("Status"), col("Tier"), numCol("Progress"), col("Caller"), col("Source")},
					jobRows(resp.Jobs),
				))
				return nil
			})
		},
	}
	listCmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	listCmd.Flags().StringVar(&caller, "caller", "", "Filter by caller id")
	listCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum jobs to list")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("job id is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobDescribe(id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderJob(cmd.OutOrStdout(), resp.Job)
				return nil
			})
		},
	}

	jobsCmd.AddCommand(listCmd, showCmd)
	return jobsCmd
}

func jobRows(items []ipc.Job) [][]string {
	rows := make([][]string, 0, len(items))
	for _, job := range items {
		caller := job.CallerID
		if caller == "" {
			caller = "-"
		}
		rows = append(rows, []string{
			job.ID,
			textutil.Title(job.Status),
			job.Tier,
			fmt.Sprintf("%.0f%%", job.Progress),
			caller,
			truncate(job.SourceURL, 48),
		})
	}
	return rows
}

func renderJob(out io.Writer, job ipc.Job) {
	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-14s %s\n", label+":", value)
	}
	field("ID", job.ID)
	field("Status", textutil.Title(job.Status))
	field("Progress", fmt.Sprintf("%.1f%%", job.Progress))
	field("Tier", job.Tier)
	field("Caller", job.CallerID)
	field("Source", job.SourceURL)
	field("Format", job.FormatSelector)
	field("Quality", job.QualityKey)
	field("Artifact", job.ArtifactPath)
	if job.FileSizeBytes > 0 {
		field("Size", humanize.IBytes(uint64(job.FileSizeBytes)))
	}
	field("File type", job.FileType)
	field("Error", job.ErrorMessage)
	if job.ErrorCode != "" {
		field("Error kind", textutil.Title(job.ErrorCode))
	}
	field("Created", job.CreatedAt)
	field("Finished", job.FinishedAt)
	field("Expires", job.ExpiresAt)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
