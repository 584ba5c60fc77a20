package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contractqa/internal/tui"
)

var askQuestion string

var askCmd = &cobra.Command{
	Use:   "ask -q <question> <pdf>...",
	Short: "Ingest PDFs and answer one question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "Question to answer")
	_ = askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	ans, err := a.pipeline.Ask(cmd.Context(), res.Retriever, askQuestion)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, ans.Text)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:", tui.FormatPages(ans.SourcePages))
	return nil
}
