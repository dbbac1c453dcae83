package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-monitor/internal/output"
	"solar-monitor/pkg/solardb"
)

func TestParseTime(t *testing.T) {
	ts, err := parseTime("2018-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), ts)

	ts, err = parseTime("2018-01-01T12:00:00-08:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 1, 1, 20, 0, 0, 0, time.UTC), ts)

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestTopicIDsMixesIdsAndNames(t *testing.T) {
	ctx := context.Background()
	db, err := solardb.Open(ctx, solardb.Options{Host: filepath.Join(t.TempDir(), "q.sqlite"), Seed: true})
	require.NoError(t, err)
	defer db.Close()

	q := query{db: db, format: output.JSON}
	ids, err := q.topicIDs(ctx, []string{"3", " UW/Elm/eaton_meter/freq"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 38}, ids)

	_, err = q.topicIDs(ctx, []string{"UW/Nowhere/freq"})
	assert.Error(t, err)
}
