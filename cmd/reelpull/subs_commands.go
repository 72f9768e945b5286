package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelpull/internal/ipc"
)

func newSubsCommand(ctx *commandContext) *cobra.Command {
	subsCmd := &cobra.Command{
		Use:   "subs",
		Short: "List or download subtitle tracks",
	}

	listCmd := &cobra.Command{
		Use:   "list <url>",
		Short: "List available subtitle tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Subtitles(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Subtitles) == 0 {
					fmt.Fprintln(out, "No subtitles available")
					return nil
				}
				rows := make([][]string, 0, len(resp.Subtitles))
				for _, sub := range resp.Subtitles {
					rows = append(rows, []string{sub.LangCode, sub.LangName, strings.Join(sub.Formats, ", "), yesNo(sub.Automatic)})
				}
				fmt.Fprintln(out, renderTable([]column{col("Lang"), col("Name"), col("Formats"), col("Auto")}, rows))
				return nil
			})
		},
	}

	var req ipc.SubtitleDownloadRequest
	getCmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Download one subtitle track on the daemon host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SourceURL = strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SubtitleDownload(req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved subtitle to %s\n", resp.Path)
				return nil
			})
		},
	}
	getCmd.Flags().StringVarP(&req.Lang, "lang", "l", "en", "Subtitle language code")
	getCmd.Flags().StringVarP(&req.Format, "format", "f", "", "Subtitle format (default srt)")
	getCmd.Flags().StringVar(&req.CallerID, "caller", "", "Caller directory to write into")

	subsCmd.AddCommand(listCmd, getCmd)
	return subsCmd
}
