package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelpull/internal/ipc"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <url>",
		Short: "Show source metadata and downloadable qualities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Metadata(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderMetadata(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func renderMetadata(out io.Writer, meta *ipc.MetadataResponse) {
	fmt.Fprintf(out, "Title:     %s\n", meta.Title)
	if meta.Uploader != "" {
		fmt.Fprintf(out, "Uploader:  %s\n", meta.Uploader)
	}
	if meta.Duration > 0 {
		fmt.Fprintf(out, "Duration:  %s\n", (time.Duration(meta.Duration) * time.Second).String())
	}
	if meta.Extractor != "" {
		fmt.Fprintf(out, "Extractor: %s\n", meta.Extractor)
	}
	if len(meta.Qualities) == 0 {
		fmt.Fprintln(out, "No quality options reported")
		return
	}
	rows := make([][]string, 0, len(meta.Qualities))
	for _, q := range meta.Qualities {
		size := humanize.IBytes(uint64(max(q.SizeBytes, 0)))
		if q.SizeEstimated {
			size = "~" + size
		}
		rows = append(rows, []string{
			q.Key,
			q.Label,
			q.Ext,
			fmt.Sprintf("%.0f", q.BitrateKbps),
			size,
			yesNo(q.RequiresPremium),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{col("Key"), col("Quality"), col("Ext"), numCol("Kbps"), numCol("Size"), col("Premium")},
		rows,
	))
}
