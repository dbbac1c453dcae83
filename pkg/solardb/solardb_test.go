package solardb_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-monitor/pkg/solardb"
)

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "solardb.sqlite")

	c, err := solardb.Open(ctx, solardb.Options{Dialect: solardb.SQLite, Host: path})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, solardb.SQLite, c.Dialect())

	_, ok, err := c.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := c.TopicIDs(ctx, "UW/Alder/eaton_meter/freq")
	assert.Error(t, err)
	assert.Nil(t, ids)

	day := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.Write(ctx, []solardb.Datum{
		{Timestamp: day, TopicID: 1, ValueString: "1"},
		{Timestamp: day.Add(time.Hour), TopicID: 1, ValueString: "2"},
		{Timestamp: day.Add(24 * time.Hour), TopicID: 1, ValueString: "3"},
	}))

	rows, err := c.Range(ctx, []int64{1}, day, day.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2", rows[1].ValueString)

	earliest, ok, err := c.Earliest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, earliest.Equal(day))

	dates, err := c.Dates(ctx)
	require.NoError(t, err)
	assert.Len(t, dates, 2)
}

func TestClientTopicIDs(t *testing.T) {
	ctx := context.Background()
	c, err := solardb.Open(ctx, solardb.Options{Host: filepath.Join(t.TempDir(), "topics.sqlite")})
	require.NoError(t, err)
	defer c.Close()

	topics, err := c.Topics(ctx)
	require.NoError(t, err)
	assert.Empty(t, topics)

	seeded, err := solardb.Open(ctx, solardb.Options{Host: filepath.Join(t.TempDir(), "seeded.sqlite"), Seed: true})
	require.NoError(t, err)
	defer seeded.Close()

	ids, err := seeded.TopicIDs(ctx, "UW/Alder/eaton_meter/freq", "UW/Mercer/nexus_meter/VA")
	require.NoError(t, err)
	assert.Equal(t, []int64{17, 64}, ids)

	meta, err := c.Metadata(ctx)
	require.NoError(t, err)
	assert.Empty(t, meta)
}

func TestOpenUnknownDialect(t *testing.T) {
	_, err := solardb.Open(context.Background(), solardb.Options{Dialect: "oracle"})
	assert.Error(t, err)
}

func TestClientRegistersTopicsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	c, err := solardb.Open(ctx, solardb.Options{Host: filepath.Join(t.TempDir(), "writer.sqlite")})
	require.NoError(t, err)
	defer c.Close()

	const name = "UW/Cedar/eaton_meter/W"
	ok, err := c.TopicExists(ctx, name)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := c.EnsureTopic(ctx, name)
	require.NoError(t, err)
	again, err := c.EnsureTopic(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	ok, err = c.TopicExists(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)

	ts := time.Date(2018, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.Write(ctx, []solardb.Datum{{Timestamp: ts, TopicID: id, ValueString: "1500"}}))

	ids, err := c.TopicIDs(ctx, name)
	require.NoError(t, err)
	rows, err := c.Range(ctx, ids, ts, ts, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1500", rows[0].ValueString)
}
