// Package tsdb stores topic time series in a relational database.
//
// Two dialects implement Store: EmbeddedStore on a single SQLite file and
// NetworkedStore on PostgreSQL. They share one gorm-backed implementation and
// differ only in a dialect strategy, most visibly in how random sampling is
// expressed (see the sampleThreshold strategy).
package tsdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"solar-monitor/internal/model"
)

// Dialect names a storage backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be within [0, 1]")
	ErrUnknownDialect    = errors.New("unknown database dialect")
)

// StoreError wraps a backend failure with the operation and key involved.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("tsdb %s [%s]: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("tsdb %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store is the full capability set shared by both dialects.
// Implementations are safe for concurrent use.
type Store interface {
	TopicExists(ctx context.Context, name string) (bool, error)
	EnsureTopic(ctx context.Context, name string) (int64, error)
	GetAllTopics(ctx context.Context) ([]model.Topic, error)
	GetAllMetadata(ctx context.Context) ([]model.Metadata, error)

	WriteData(ctx context.Context, records []model.Datum) error
	GetData(ctx context.Context, topicIDs []int64, start, end time.Time, sampleRate float64) ([]model.Datum, error)

	// GetEarliestDataTimestamp and GetLatestDataTimestamp report ok=false
	// when the data table is empty.
	GetEarliestDataTimestamp(ctx context.Context) (ts time.Time, ok bool, err error)
	GetLatestDataTimestamp(ctx context.Context) (ts time.Time, ok bool, err error)

	// GetAllDataDates scans the whole data table. Use sparingly.
	GetAllDataDates(ctx context.Context) ([]time.Time, error)

	Dialect() Dialect
	Close() error
}

// Options configures a store. For sqlite, Host is the database file path
// (":memory:" when empty).
type Options struct {
	Dialect  Dialect
	User     string
	Password string
	Host     string
	Port     int
	Database string
	SSLMode  string
	PoolSize int
	// Seed loads the fixture topic list into an empty embedded store.
	Seed   bool
	Logger *zap.Logger
}

const defaultPoolSize = 3

// ParseDialect accepts the labels used in config files.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
	}
}

// Open connects to the store selected by opts.Dialect.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Dialect {
	case DialectSQLite, "":
		return NewEmbedded(ctx, opts)
	case DialectPostgres:
		return NewNetworked(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, opts.Dialect)
	}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) poolSize() int {
	if o.PoolSize > 0 {
		return o.PoolSize
	}
	return defaultPoolSize
}
