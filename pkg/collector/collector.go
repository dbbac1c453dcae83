// Package collector runs the panel collectors from another program.
package collector

import (
	"context"

	"go.uber.org/zap"

	"solar-monitor/internal/config"
	"solar-monitor/internal/tasks"
)

type (
	Config      = config.Config
	PanelConfig = config.PanelConfig
)

// LoadConfig reads a YAML file (optional) plus SOLARMON_* overrides.
func LoadConfig(path string) (Config, error) { return tasks.LoadConfig(path) }

// Run blocks until ctx is done.
func Run(ctx context.Context, cfg Config, lg *zap.Logger) error {
	return tasks.InitAndRunCollector(ctx, cfg, lg)
}
