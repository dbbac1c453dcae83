package tsdb

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NetworkedStore reads and writes a PostgreSQL database whose schema already
// exists. It never migrates or seeds.
type NetworkedStore struct {
	*sqlStore
}

var _ Store = (*NetworkedStore)(nil)

// DSN renders the connection URL for lib/pq.
func (o Options) DSN() string {
	host := o.Host
	if o.Port > 0 {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = net.JoinHostPort(host, strconv.Itoa(o.Port))
	}
	u := url.URL{Scheme: "postgres", Host: host, Path: "/" + o.Database}
	if o.User != "" {
		u.User = url.UserPassword(o.User, o.Password)
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	return u.String()
}

// NewNetworked connects with a pool of opts.PoolSize connections (3 when
// unset) and verifies the server is reachable.
func NewNetworked(ctx context.Context, opts Options) (*NetworkedStore, error) {
	conn, err := sql.Open("postgres", opts.DSN())
	if err != nil {
		return nil, &StoreError{Op: "open", Key: opts.Host, Err: err}
	}
	configurePool(conn, opts.poolSize())
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, &StoreError{Op: "ping", Key: opts.Host, Err: err}
	}
	s, err := newNetworked(conn, opts.logger())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func configurePool(conn *sql.DB, size int) {
	conn.SetMaxOpenConns(size)
	conn.SetMaxIdleConns(size)
	conn.SetConnMaxLifetime(time.Hour)
}

func newNetworked(conn *sql.DB, log *zap.Logger) (*NetworkedStore, error) {
	g, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), gormConfig())
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	return &NetworkedStore{&sqlStore{db: g, dialect: postgresDialect{}, log: log}}, nil
}

type postgresDialect struct{}

func (postgresDialect) name() Dialect { return DialectPostgres }

// random() is already uniform on [0, 1); the rate is the threshold.
func (postgresDialect) sampleThreshold(rate float64) float64 { return rate }

func (postgresDialect) dateExpr() string { return "to_char(ts AT TIME ZONE 'UTC', 'YYYY-MM-DD')" }

const pqUniqueViolation = pq.ErrorCode("23505")

func (postgresDialect) isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
