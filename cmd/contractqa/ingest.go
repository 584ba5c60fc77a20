package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contractqa/internal/service"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf>...",
	Short: "Index contract PDFs and report what was stored",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.pipeline.Ingest(cmd.Context(), args, persistDir)
	if err != nil {
		return err
	}
	defer closeIndex(res.Retriever)
	printIngest(cmd, res)
	return nil
}

func printIngest(cmd *cobra.Command, res service.IngestResult) {
	out := cmd.OutOrStdout()
	for _, w := range res.Warnings {
		fmt.Fprintln(out, "Warning:", w)
	}
	if res.Retriever == nil {
		fmt.Fprintln(out, "Nothing indexed: no readable PDF pages found.")
		return
	}
	fmt.Fprintf(out, "Indexed %d chunks into %s.\n", res.ChunkCount, res.Provider)
	for _, loc := range res.Archived {
		fmt.Fprintln(out, "Archived:", loc)
	}
}
