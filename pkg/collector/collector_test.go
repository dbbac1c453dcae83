package collector_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-monitor/pkg/collector"
)

func TestLoadConfigAndRunWithoutPanels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: {type: sqlite, host: "+filepath.Join(t.TempDir(), "c.sqlite")+"}\n"), 0o644))

	cfg, err := collector.LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Panels)

	assert.Error(t, collector.Run(context.Background(), cfg, nil))
}
