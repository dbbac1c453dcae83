package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"solar-monitor/internal/logger"
	"solar-monitor/internal/metricdef"
	"solar-monitor/internal/modbus"
	"solar-monitor/internal/model"
)

// simulator serves one panel and moves every numeric metric along a sine
// wave around a random baseline.
type simulator struct {
	server  *modbus.Server
	metrics []model.Metric
	base    map[string]float64
	period  time.Duration
	seed    uint64
	start   time.Time
	log     *zap.Logger
}

func main() {
	var (
		listen      = flag.String("listen", ":5020", "Modbus TCP listen address")
		metricsFile = flag.String("metrics", "", "metric descriptors (.xlsx or .yaml)")
		sheet       = flag.String("sheet", metricdef.DefaultSheet, "worksheet name for .xlsx descriptors")
		prefix      = flag.String("prefix", "UW/Sim/eaton_meter", "topic prefix")
		unitID      = flag.Uint("unit", 0, "answer only this unit id (0 = any)")
		period      = flag.Duration("period", 10*time.Minute, "period of the simulated wave")
		update      = flag.Duration("update", time.Second, "register update interval")
		seed        = flag.Uint64("seed", 0, "random seed (0 = random)")
		level       = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	if *metricsFile == "" {
		log.Fatal("-metrics is required")
	}
	lg, err := logger.New(*level, "console", "solar-panelsim")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	descriptors, err := metricdef.LoadFile(*metricsFile, *sheet, *prefix)
	if err != nil {
		lg.Fatal("load metrics", zap.Error(err))
	}

	server := modbus.NewServer(lg)
	server.UnitID = uint8(*unitID)
	if err := server.Listen(*listen); err != nil {
		lg.Fatal("start modbus server", zap.Error(err))
	}
	defer server.Close()

	sim := newSimulator(server, descriptors, *period, *seed, lg)
	if err := sim.init(); err != nil {
		lg.Fatal("initialise registers", zap.Error(err))
	}
	lg.Info("registers initialised", zap.Int("metrics", len(descriptors)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sim.run(ctx, *update)
	lg.Info("shutting down simulator")
}

func newSimulator(server *modbus.Server, metrics []model.Metric, period time.Duration, seed uint64, lg *zap.Logger) *simulator {
	return &simulator{
		server:  server,
		metrics: metrics,
		base:    make(map[string]float64, len(metrics)),
		period:  period,
		seed:    seed,
		start:   time.Now(),
		log:     lg,
	}
}

// init writes string metrics once and picks a baseline for the others.
func (s *simulator) init() error {
	faker := gofakeit.New(s.seed)
	for _, m := range s.metrics {
		if m.DataType == model.String {
			if err := s.server.SetText(m, faker.Numerify("SN######")); err != nil {
				return err
			}
			continue
		}
		s.base[m.Name] = faker.Float64Range(10, 100)
	}
	s.tick(s.start)
	return nil
}

func (s *simulator) run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *simulator) tick(now time.Time) {
	phase := 2 * math.Pi * now.Sub(s.start).Seconds() / s.period.Seconds()
	for _, m := range s.metrics {
		base, ok := s.base[m.Name]
		if !ok {
			continue
		}
		v := base * (1 + 0.1*math.Sin(phase))
		if err := s.server.SetMetric(m, v); err != nil {
			s.log.Debug("set metric", zap.String("metric", m.Name), zap.Error(fmt.Errorf("value %g: %w", v, err)))
		}
	}
}
