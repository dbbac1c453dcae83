package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"solar-monitor/internal/gendata"
	"solar-monitor/internal/logger"
	"solar-monitor/internal/output"
	"solar-monitor/internal/tsdb"
)

const writeBatch = 1000

func main() {
	var (
		inputFile  = flag.String("input_file", "", "JSON list of generation blocks")
		topicID    = flag.Int64("topic_id", 0, "override every block's topic id")
		sampleRate = flag.Float64("sample_rate", 0, "override every block's samples per second")
		spread     = flag.Float64("spread", 0, "override every block's noise spread")
		seed       = flag.Uint64("seed", 0, "random seed (0 = random)")
		dryRun     = flag.String("print", "", "print samples as json or csv instead of writing them")

		dbType     = flag.String("db_type", "sqlite", "sqlite or postgres")
		dbUser     = flag.String("db_user", "uwsolar", "database user")
		dbPassword = flag.String("db_password", "", "database password")
		dbHost     = flag.String("db_host", "solar.sqlite", "database host, or file for sqlite")
		dbPort     = flag.Int("db_port", 0, "database port")
		dbName     = flag.String("db_name", "uwsolar", "database name")
		level      = flag.String("log_level", "info", "log level")
	)
	flag.Parse()

	lg, err := logger.New(*level, "console", "solar-gendata")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	if *inputFile == "" {
		lg.Fatal("-input_file is required")
	}
	raw, err := os.ReadFile(*inputFile)
	if err != nil {
		lg.Fatal("read input", zap.Error(err))
	}
	blocks, err := gendata.ParseOptions(raw, gendata.Overrides{
		TopicID:    *topicID,
		SampleRate: *sampleRate,
		Spread:     *spread,
	})
	if err != nil {
		lg.Fatal("parse input", zap.Error(err))
	}
	data := gendata.New(*seed).Generate(blocks)
	lg.Info("generated samples", zap.Int("blocks", len(blocks)), zap.Int("records", len(data)))

	if *dryRun != "" {
		f, err := output.ParseFormat(*dryRun)
		if err != nil {
			lg.Fatal("print", zap.Error(err))
		}
		if err := output.Data(os.Stdout, f, output.Rows(data, nil)); err != nil {
			lg.Fatal("print", zap.Error(err))
		}
		return
	}

	dialect, err := tsdb.ParseDialect(*dbType)
	if err != nil {
		lg.Fatal("db_type", zap.Error(err))
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := tsdb.Open(ctx, tsdb.Options{
		Dialect:  dialect,
		User:     *dbUser,
		Password: *dbPassword,
		Host:     *dbHost,
		Port:     *dbPort,
		Database: *dbName,
		Logger:   lg,
	})
	if err != nil {
		lg.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	for i := 0; i < len(data); i += writeBatch {
		end := min(i+writeBatch, len(data))
		if err := store.WriteData(ctx, data[i:end]); err != nil {
			lg.Fatal("write data", zap.Int("offset", i), zap.Error(err))
		}
	}
	lg.Info("samples written", zap.Int("records", len(data)))
}
