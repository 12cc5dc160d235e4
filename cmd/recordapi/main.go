// cmd/recordapi/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"libradesk/internal/backend"
	"libradesk/internal/config"
	"libradesk/internal/telemetry"
)

func main() {
	cfg := config.NewConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName+"-recordapi", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up telemetry: %v", err)
	}
	defer providers.Shutdown()

	if err := backend.Serve(ctx, cfg.Server, logger); err != nil {
		log.Fatalf("Record API stopped: %v", err)
	}
}
