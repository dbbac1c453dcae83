package tsdb

import (
	"context"
	"errors"
	"math"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"solar-monitor/internal/model"
)

// EmbeddedStore keeps the series in a single SQLite file.
type EmbeddedStore struct {
	*sqlStore
}

var _ Store = (*EmbeddedStore)(nil)

// embeddedDSN selects the pure-Go driver's options: a busy timeout so
// writers from other processes wait instead of failing, and a sortable,
// date()-compatible text format for timestamps.
func embeddedDSN(path string) string {
	if path == "" {
		path = ":memory:"
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// NewEmbedded opens (creating if needed) the SQLite file at opts.Host and
// migrates the schema. With opts.Seed the fixture topics are loaded into an
// empty topics table.
func NewEmbedded(ctx context.Context, opts Options) (*EmbeddedStore, error) {
	g, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "sqlite",
		DSN:        embeddedDSN(opts.Host),
	}), gormConfig())
	if err != nil {
		return nil, &StoreError{Op: "open", Key: opts.Host, Err: err}
	}

	s := &EmbeddedStore{&sqlStore{db: g, dialect: sqliteDialect{}, log: opts.logger()}}

	// One connection: SQLite serializes writers anyway, and ":memory:" is
	// per-connection.
	sqlDB, err := g.DB()
	if err != nil {
		return nil, &StoreError{Op: "open", Key: opts.Host, Err: err}
	}
	sqlDB.SetMaxOpenConns(1)

	if err := g.WithContext(ctx).AutoMigrate(&model.Topic{}, &model.Datum{}, &model.Metadata{}); err != nil {
		_ = s.Close()
		return nil, &StoreError{Op: "migrate", Key: opts.Host, Err: err}
	}
	if opts.Seed {
		if err := s.seed(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *EmbeddedStore) seed(ctx context.Context) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Topic{}).Count(&n).Error; err != nil {
		return &StoreError{Op: "seed", Err: err}
	}
	if n > 0 {
		return nil
	}
	topics := FixtureTopics()
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&topics).Error; err != nil {
		return &StoreError{Op: "seed", Err: err}
	}
	return nil
}

type sqliteDialect struct{}

func (sqliteDialect) name() Dialect { return DialectSQLite }

// sampleThreshold remaps rate onto SQLite's random(), which is uniform over
// the full signed 64-bit range. The result is compared as a REAL: rate 0
// gives -MaxInt64 and rate 1 gives MaxInt64 (2^63 as a float, above every
// draw).
func (sqliteDialect) sampleThreshold(rate float64) float64 {
	return float64(math.MaxInt64) * 2 * (rate - 0.5)
}

func (sqliteDialect) dateExpr() string { return "date(ts)" }

func (sqliteDialect) isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
