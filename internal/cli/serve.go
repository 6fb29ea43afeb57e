package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/callreward/internal/log"
	"github.com/ppiankov/callreward/internal/metrics"
	"github.com/ppiankov/callreward/internal/pipeline"
	"github.com/ppiankov/callreward/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
	serveRPS  float64
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reward function over HTTP",
	Long: `Serve exposes the reward function to training jobs:

  POST /v1/score        {"response": "...", "ground_truth": {...}}
  POST /v1/score/batch  {"requests": [ ... ]}
  GET  /healthz
  GET  /metrics         Prometheus exposition

Requests are rate limited per client address.

Example:
  callreward serve
  callreward serve --addr 127.0.0.1:9000 --rps 500`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().Float64Var(&serveRPS, "rps", 0, "requests per second per client (0 keeps the configured value)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveRPS > 0 {
		cfg.RateLimiting.RequestsPerSecond = serveRPS
	}

	m := metrics.New()
	p, err := pipeline.NewPipeline(cfg, pipeline.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	srv := server.New(p, cfg, server.WithMetrics(m), server.WithLogger(log.Default))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}
