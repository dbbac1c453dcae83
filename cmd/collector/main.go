package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"solar-monitor/internal/logger"
	"solar-monitor/internal/tasks"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to YAML config (environment only when empty)")
	flag.Parse()

	cfg, err := tasks.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Level, cfg.Log.Format, "solar-collector")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tasks.InitAndRunCollector(ctx, cfg, lg); err != nil {
		lg.Fatal("collector exited with error", zap.Error(err))
	}
	lg.Info("collector stopped")
}
