// Package sqlstore implements the document store on a relational database.
// SQLite (modernc, pure Go) serves local runs and tests; MySQL serves relational deployments.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mentorgate/internal/config"
	"mentorgate/internal/store"
	"mentorgate/lib/sl"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	driverSQLite = "sqlite"
	driverMySQL  = "mysql"

	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
	mysqlLockWait       = 1205

	txAttempts = 3
)

// dialect holds what differs between the supported engines.
type dialect struct {
	name        string
	forUpdate   string
	schema      func(prefix string) []string
	upsertUser  string
	isDuplicate func(err error) bool
	// isRetryable reports a transaction rolled back by the engine that may succeed if rerun.
	isRetryable func(err error) bool
}

var sqliteDialect = dialect{
	name:      driverSQLite,
	forUpdate: "",
	schema: func(p string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %smentor_codes (
				code VARCHAR(64) NOT NULL PRIMARY KEY,
				status VARCHAR(16) NOT NULL,
				created_at BIGINT NOT NULL,
				assigned_user_id VARCHAR(128) NULL,
				assigned_email VARCHAR(255) NULL,
				assigned_name VARCHAR(255) NULL,
				used_at BIGINT NULL,
				updated_at BIGINT NOT NULL)`, p),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %smentor_codes_created ON %smentor_codes (created_at)`, p, p),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %smentor_requests (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				email VARCHAR(255) NOT NULL,
				user_id VARCHAR(128) NOT NULL,
				name VARCHAR(255) NOT NULL,
				code VARCHAR(64) NOT NULL,
				status VARCHAR(16) NOT NULL,
				requested_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL)`, p),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %smentor_requests_requested ON %smentor_requests (requested_at)`, p, p),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %susers (
				username VARCHAR(64) NOT NULL PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				token VARCHAR(128) NOT NULL UNIQUE,
				role VARCHAR(16) NOT NULL,
				telegram_id BIGINT NOT NULL DEFAULT 0,
				telegram_username VARCHAR(64) NOT NULL DEFAULT '',
				telegram_enabled INTEGER NOT NULL DEFAULT 0,
				log_level INTEGER NOT NULL DEFAULT 0,
				registered_at BIGINT NOT NULL)`, p),
		}
	},
	upsertUser: `INSERT INTO %susers
		(username, name, email, token, role, telegram_id, telegram_username, telegram_enabled, log_level, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			token = excluded.token,
			role = excluded.role,
			telegram_id = excluded.telegram_id`,
	isDuplicate: func(err error) bool {
		var sqliteErr *sqlite.Error
		if !errors.As(err, &sqliteErr) {
			return false
		}
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
	isRetryable: func(err error) bool { return false },
}

var mysqlDialect = dialect{
	name:      driverMySQL,
	forUpdate: " FOR UPDATE",
	schema: func(p string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %smentor_codes (
				code VARCHAR(64) NOT NULL PRIMARY KEY,
				status VARCHAR(16) NOT NULL,
				created_at BIGINT NOT NULL,
				assigned_user_id VARCHAR(128) NULL,
				assigned_email VARCHAR(255) NULL,
				assigned_name VARCHAR(255) NULL,
				used_at BIGINT NULL,
				updated_at BIGINT NOT NULL,
				INDEX idx_created (created_at)) ENGINE=InnoDB`, p),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %smentor_requests (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				email VARCHAR(255) NOT NULL,
				user_id VARCHAR(128) NOT NULL,
				name VARCHAR(255) NOT NULL,
				code VARCHAR(64) NOT NULL,
				status VARCHAR(16) NOT NULL,
				requested_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				INDEX idx_requested (requested_at)) ENGINE=InnoDB`, p),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %susers (
				username VARCHAR(64) NOT NULL PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				token VARCHAR(128) NOT NULL UNIQUE,
				role VARCHAR(16) NOT NULL,
				telegram_id BIGINT NOT NULL DEFAULT 0,
				telegram_username VARCHAR(64) NOT NULL DEFAULT '',
				telegram_enabled TINYINT(1) NOT NULL DEFAULT 0,
				log_level INT NOT NULL DEFAULT 0,
				registered_at BIGINT NOT NULL) ENGINE=InnoDB`, p),
		}
	},
	upsertUser: `INSERT INTO %susers
		(username, name, email, token, role, telegram_id, telegram_username, telegram_enabled, log_level, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			email = VALUES(email),
			token = VALUES(token),
			role = VALUES(role),
			telegram_id = VALUES(telegram_id)`,
	isDuplicate: func(err error) bool {
		var mysqlErr *mysql.MySQLError
		return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
	},
	isRetryable: func(err error) bool {
		var mysqlErr *mysql.MySQLError
		return errors.As(err, &mysqlErr) && (mysqlErr.Number == mysqlDeadlock || mysqlErr.Number == mysqlLockWait)
	},
}

type SqlStore struct {
	db         *sql.DB
	d          dialect
	prefix     string
	statements map[string]*sql.Stmt
	mu         sync.Mutex
	hub        *hub
	poll       time.Duration
	log        *slog.Logger
}

// OpenSQLite opens (creating if needed) a SQLite database file. The pool is limited to a
// single connection, which serializes transactions.
func OpenSQLite(path string, poll time.Duration, log *slog.Logger) (*SqlStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open(driverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(1)

	return open(db, sqliteDialect, "", poll, log)
}

// OpenMySQL connects to MySQL, waiting for the server to come up.
func OpenMySQL(conf config.MySQLConfig, poll time.Duration, log *slog.Logger) (*SqlStore, error) {
	// clientFoundRows makes RowsAffected count matched rows, as SQLite does
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?clientFoundRows=true",
		conf.UserName, conf.Password, conf.HostName, conf.Port, conf.Database)
	db, err := sql.Open(driverMySQL, connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 10-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i == 2 {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(10 * time.Second)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	return open(db, mysqlDialect, conf.Prefix, poll, log)
}

func open(db *sql.DB, d dialect, prefix string, poll time.Duration, log *slog.Logger) (*SqlStore, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SqlStore{
		db:         db,
		d:          d,
		prefix:     prefix,
		statements: make(map[string]*sql.Stmt),
		hub:        newHub(),
		poll:       poll,
		log:        log.With(sl.Module("sqlstore"), slog.String("driver", d.name)),
	}
	for _, stmt := range d.schema(prefix) {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return s, nil
}

func (s *SqlStore) Close() error {
	s.closeStmt()
	return s.db.Close()
}

func (s *SqlStore) NewId() string {
	return uuid.NewString()
}

func (s *SqlStore) table(name string) string {
	return s.prefix + name
}

// RunTx runs fn inside a database transaction and notifies change feeds after commit.
// A transaction the engine rolled back as a deadlock victim is rerun from the start.
func (s *SqlStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !s.d.isRetryable(err) || ctx.Err() != nil {
			return err
		}
		s.log.With(slog.Int("attempt", attempt)).Debug("transaction retried", sl.Err(err))
	}
	return err
}

func (s *SqlStore) runTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	t := &tx{tx: sqlTx, s: s, touched: make(map[string]bool)}
	if err = fn(ctx, t); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	for collection := range t.touched {
		s.hub.notify(collection)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

var (
	_ store.Store     = (*SqlStore)(nil)
	_ store.UserStore = (*SqlStore)(nil)
)
