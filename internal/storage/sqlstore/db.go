// internal/storage/sqlstore/db.go
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/valpere/PriceScrapexter/internal/utils"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
)

// Config selects and tunes the database connection.
type Config struct {
	Driver          string        `yaml:"driver" json:"driver"`
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// Open connects and pings the database. SQLite connections get foreign
// keys enabled and a single writer; MySQL DSNs get parseTime.
func Open(ctx context.Context, config Config) (*sqlx.DB, error) {
	dsn := config.DSN
	switch config.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if !strings.Contains(dsn, "_foreign_keys") {
			dsn += sep(dsn) + "_foreign_keys=on&_busy_timeout=5000"
		}
	case DriverMySQL:
		if !strings.Contains(dsn, "parseTime") {
			dsn += sep(dsn) + "parseTime=true&loc=UTC"
		}
	default:
		return nil, utils.NewError(utils.ErrCodeInvalidConfig, fmt.Sprintf("unsupported database driver %q", config.Driver)).Build()
	}

	db, err := sqlx.ConnectContext(ctx, config.Driver, dsn)
	if err != nil {
		return nil, dbError("connect", err)
	}

	if config.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		return db, nil
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	return db, nil
}

func sep(dsn string) string {
	if strings.Contains(dsn, "?") {
		return "&"
	}
	return "?"
}

// dbError wraps a driver failure as DATABASE_ERROR.
func dbError(op string, err error) error {
	return utils.NewError(utils.ErrCodeDatabaseError, op).WithCause(err).Build()
}

// dbTime normalizes timestamps to UTC at the precision every supported
// database keeps.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func dbTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := dbTime(*t)
	return &v
}

// insert runs an INSERT and returns the new id, using RETURNING where the
// driver has no LastInsertId.
func insert(ctx context.Context, exec sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	if exec.DriverName() == DriverPostgres {
		var id int64
		err := exec.QueryRowxContext(ctx, exec.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
