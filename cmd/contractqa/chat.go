package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"contractqa/internal/domain"
	"contractqa/internal/tui"
)

var metricsAddr string

var chatCmd = &cobra.Command{
	Use:   "chat <pdf>...",
	Short: "Ingest PDFs and ask questions interactively",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, a.metrics.Handler())
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	res, err := a.pipeline.Ingest(ctx, args, persistDir)
	if err != nil {
		return err
	}
	defer closeIndex(res.Retriever)
	if res.Retriever == nil {
		printIngest(cmd, res)
		return nil
	}

	summary := fmt.Sprintf("%d chunks in %s", res.ChunkCount, res.Provider)
	ask := func(ctx context.Context, q string) (domain.Answer, error) {
		return a.pipeline.Ask(ctx, res.Retriever, q)
	}
	_, err = tea.NewProgram(tui.New(ctx, ask, summary), tea.WithContext(ctx)).Run()
	return err
}

func serveMetrics(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}
