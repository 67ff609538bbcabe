// Command tusgo-server is a ready-to-run tus 1.0.0 upload server: it wires
// pkg/handler, the expiration sweeper, and a Prometheus metrics endpoint
// behind a single flag-configured binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/relaypost/tusgo/pkg/handler"
	"github.com/relaypost/tusgo/pkg/prometheuscollector"
	"github.com/relaypost/tusgo/pkg/sweeper"
	"github.com/relaypost/tusgo/pkg/upload"
)

func main() {
	var (
		httpAddr      = flag.String("addr", ":1080", "address to bind the HTTP server to")
		dir           = flag.String("dir", "./data", "directory to store uploads in")
		prefix        = flag.String("prefix", "files", "URL path segment uploads are mounted under")
		maxSize       = flag.Int64("max-size", handler.DefaultMaxSize, "maximum size of a single upload in bytes")
		daysToKeep    = flag.Int("days-to-keep", 5, "number of days an upload is retained before the sweeper deletes it")
		sweepInterval = flag.Duration("sweep-interval", 10*time.Minute, "how often the expiration sweeper runs")
		behindProxy   = flag.Bool("behind-proxy", false, "respect X-Forwarded-Host/-Proto headers set by a reverse proxy")
		exposeMetrics = flag.Bool("expose-metrics", true, "expose /metrics in the Prometheus exposition format")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	h, err := handler.NewHandler(handler.Config{
		Prefix:                  *prefix,
		FilesDir:                *dir,
		MaxSize:                 *maxSize,
		DaysToKeep:              *daysToKeep,
		RespectForwardedHeaders: *behindProxy,
		Logger:                  log,
		OnUploadComplete: handler.CompletionHookFunc(func(ctx context.Context, payloadPath string, meta upload.Metadata) error {
			log.Info("UploadComplete", "path", payloadPath, "filename", meta["filename"])
			return nil
		}),
	})
	if err != nil {
		log.Error("StartupFailed", "error", err.Error())
		os.Exit(1)
	}

	sw, err := sweeper.New(sweeper.Config{
		Store:     h.Store(),
		Logger:    log,
		OnExpired: func(id string) { h.Metrics().IncUploadsExpired() },
	})
	if err != nil {
		log.Error("StartupFailed", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sw.Run(ctx, *sweepInterval)

	mux := http.NewServeMux()
	mux.Handle("/"+trimSlashes(*prefix)+"/", cors.Default().Handler(h))

	if *exposeMetrics {
		prometheus.MustRegister(prometheuscollector.New(h.Metrics()))
		mux.Handle("/metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:              *httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info("ServerStarting", "addr", *httpAddr, "dir", *dir, "prefix", *prefix)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("ServeFailed", "error", err.Error())
		os.Exit(1)
	}
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
