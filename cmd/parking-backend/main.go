// Command parking-backend receives spot reports from parking sensors and
// serves the latest state of each spot.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"

	"github.com/sweeney/parking-sensor/internal/backend"
	"github.com/sweeney/parking-sensor/internal/config"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, nil)))

	cfg := config.Load()
	addr := flag.String("addr", cfg.BackendAddr, "HTTP listen address")
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := backend.New(*addr, backend.NewStore())
	slog.Info("parking backend listening", "addr", *addr)

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
