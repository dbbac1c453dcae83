// Package solardb exposes the time-series store to other programs without
// importing internal packages.
package solardb

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solar-monitor/internal/model"
	"solar-monitor/internal/tsdb"
)

type (
	Topic    = model.Topic
	Datum    = model.Datum
	Metadata = model.Metadata
	Dialect  = tsdb.Dialect
)

const (
	SQLite   = tsdb.DialectSQLite
	Postgres = tsdb.DialectPostgres
)

// Options selects and configures the backend. For SQLite, Host is the
// database file.
type Options struct {
	Dialect  Dialect
	User     string
	Password string
	Host     string
	Port     int
	Database string
	SSLMode  string
	PoolSize int
	// Seed loads the campus topic list into an empty SQLite store.
	Seed   bool
	Logger *zap.Logger
}

// Client is a stable API over tsdb.Store.
type Client struct{ store tsdb.Store }

// Open connects to the store.
func Open(ctx context.Context, opts Options) (*Client, error) {
	s, err := tsdb.Open(ctx, tsdb.Options{
		Dialect:  opts.Dialect,
		User:     opts.User,
		Password: opts.Password,
		Host:     opts.Host,
		Port:     opts.Port,
		Database: opts.Database,
		SSLMode:  opts.SSLMode,
		PoolSize: opts.PoolSize,
		Seed:     opts.Seed,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Client{store: s}, nil
}

// New wraps an already open store.
func New(s tsdb.Store) *Client { return &Client{store: s} }

func (c *Client) Close() error { return c.store.Close() }

func (c *Client) Dialect() Dialect { return c.store.Dialect() }

func (c *Client) Topics(ctx context.Context) ([]Topic, error) {
	return c.store.GetAllTopics(ctx)
}

func (c *Client) TopicExists(ctx context.Context, name string) (bool, error) {
	return c.store.TopicExists(ctx, name)
}

// EnsureTopic returns the id of name, creating the topic if needed.
func (c *Client) EnsureTopic(ctx context.Context, name string) (int64, error) {
	return c.store.EnsureTopic(ctx, name)
}

func (c *Client) Metadata(ctx context.Context) ([]Metadata, error) {
	return c.store.GetAllMetadata(ctx)
}

// TopicIDs resolves topic names to ids. Unknown names are an error.
func (c *Client) TopicIDs(ctx context.Context, names ...string) ([]int64, error) {
	topics, err := c.store.GetAllTopics(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(topics))
	for _, t := range topics {
		byName[t.TopicName] = t.TopicID
	}
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		id, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown topic %q", n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Range returns data for topicIDs with start <= ts <= end, ordered by
// (ts, topic_id). sampleRate 1 returns every row.
func (c *Client) Range(ctx context.Context, topicIDs []int64, start, end time.Time, sampleRate float64) ([]Datum, error) {
	return c.store.GetData(ctx, topicIDs, start, end, sampleRate)
}

// Earliest and Latest report ok=false on an empty store.
func (c *Client) Earliest(ctx context.Context) (time.Time, bool, error) {
	return c.store.GetEarliestDataTimestamp(ctx)
}

func (c *Client) Latest(ctx context.Context) (time.Time, bool, error) {
	return c.store.GetLatestDataTimestamp(ctx)
}

// Dates lists the distinct UTC days holding data. It scans the whole table.
func (c *Client) Dates(ctx context.Context) ([]time.Time, error) {
	return c.store.GetAllDataDates(ctx)
}

// Write stores records, replacing existing (ts, topic) values.
func (c *Client) Write(ctx context.Context, records []Datum) error {
	return c.store.WriteData(ctx, records)
}
