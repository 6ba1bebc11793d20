package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/metrics"
	"github.com/praetorian-inc/streamscan/pkg/scanner"
	"github.com/praetorian-inc/streamscan/pkg/serve"
)

var (
	serveMetricsAddr string
	serveTolerant    bool
	serveRuleTimeout time.Duration
	serveDedupe      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a multi-stream NDJSON server",
	Long: `Run streamscan as a long-lived server that accepts requests via stdin
and writes responses to stdout using NDJSON format.

Rules are compiled once at startup and shared by every stream. Clients open
streams, submit base64 data to them and read results, until stdin closes or
SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Expose prometheus metrics on this address (e.g. :9090)")
	serveCmd.Flags().BoolVar(&serveTolerant, "tolerant", false, "Keep the matches of a window whose rules partly timed out or failed")
	serveCmd.Flags().DurationVar(&serveRuleTimeout, "rule-timeout", 0, "Time one rule may spend on one window (default 5s)")
	serveCmd.Flags().StringVar(&serveDedupe, "dedupe", "location", "Duplicate detection within a window: location, content")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	opts, err := matcherSection{
		Tolerant:    serveTolerant,
		RuleTimeout: serveRuleTimeout,
		Dedupe:      serveDedupe,
	}.options()
	if err != nil {
		return err
	}

	// Create scanner core with builtin rules
	core, err := scanner.NewCoreWithOptions("builtin", opts, scanner.FromLogger(logger.Std()))
	if err != nil {
		return err
	}
	defer core.Close()

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if serveMetricsAddr != "" {
		stop := serveMetrics(serveMetricsAddr)
		defer stop()
	}

	// Create and run server
	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}

// serveMetrics exposes the prometheus registry on addr until the returned
// function is called.
func serveMetrics(addr string) func() {
	metrics.BuildInfo.WithLabelValues(version).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server on %s: %v", addr, err)
		}
	}()
	logger.Infof("metrics exposed on %s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	}
}
