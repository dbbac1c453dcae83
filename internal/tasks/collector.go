// Package tasks wires configuration into running components.
package tasks

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"solar-monitor/internal/collector"
	"solar-monitor/internal/config"
	"solar-monitor/internal/metrics"
	"solar-monitor/internal/panel"
	"solar-monitor/internal/tsdb"
)

var ErrNoPanels = errors.New("no panels configured")

// LoadConfig reads path (when set), applies SOLARMON_* overrides and
// validates the result.
func LoadConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadYAML(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(config.EnvPrefix); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// InitAndRunCollector opens the store, builds one collector per panel and
// runs them until ctx is done.
func InitAndRunCollector(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	if lg == nil {
		lg = zap.NewNop()
	}
	if len(cfg.Panels) == 0 {
		return ErrNoPanels
	}
	opts, err := cfg.Database.StoreOptions()
	if err != nil {
		return err
	}
	opts.Logger = lg
	store, err := tsdb.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := metrics.NewRegistry()
	if cfg.Collector.MetricsAddr != "" {
		stop := serveMetrics(cfg.Collector.MetricsAddr, reg, lg)
		defer stop()
	}

	collectors, closeAll, err := buildCollectors(cfg.Panels, store, reg, lg)
	defer closeAll()
	if err != nil {
		return err
	}

	mgr := &collector.Manager{
		Collectors: collectors,
		MaxWorkers: cfg.Collector.MaxWorkers,
		Logger:     lg,
	}
	return mgr.Run(ctx)
}

func buildCollectors(panels []config.PanelConfig, store tsdb.Store, reg prometheus.Registerer, lg *zap.Logger) ([]*collector.Collector, func(), error) {
	var (
		out     []*collector.Collector
		clients []*panel.Client
	)
	closeAll := func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}
	for _, pc := range panels {
		descriptors, err := pc.LoadMetrics()
		if err != nil {
			return nil, closeAll, err
		}
		client, err := panel.NewClient(pc.ClientConfig(), lg)
		if err != nil {
			return nil, closeAll, err
		}
		clients = append(clients, client)

		panelReg := prometheus.WrapRegistererWith(prometheus.Labels{"panel": pc.Name}, reg)
		out = append(out, collector.New(panel.NewAccessor(client, descriptors), store, collector.Options{
			Name:      pc.Name,
			Interval:  pc.PollInterval,
			Retries:   pc.Retries,
			RetryWait: pc.RetryWait,
			Logger:    lg,
			Metrics:   metrics.NewCollectorMetrics("solar", panelReg),
		}))
		lg.Info("panel configured",
			zap.String("panel", pc.Name),
			zap.String("host", pc.Host),
			zap.Int("metrics", len(descriptors)),
			zap.Duration("interval", pc.PollInterval))
	}
	return out, closeAll, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, lg *zap.Logger) func() {
	srv := &http.Server{Addr: addr, Handler: metrics.Handler(reg)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("metrics server failed", zap.Error(err))
		}
	}()
	lg.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
