package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"traderesonance/server/config"
	"traderesonance/server/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrEntryExists   = errors.New("entry already exists")
	ErrRequestClosed = errors.New("request already decided")
)

// EntryExistsError is returned when a create collides with the (city, product)
// unique constraint. Existing is the row that won.
type EntryExistsError struct {
	Existing *models.Entry
}

func (e *EntryExistsError) Error() string {
	return fmt.Sprintf("entry already exists for %s / %s", e.Existing.City, e.Existing.Product)
}

func (e *EntryExistsError) Unwrap() error {
	return ErrEntryExists
}

type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewDatabase opens the database selected by the configuration.
func NewDatabase(cfg *config.Config, log *logrus.Logger) (*Database, error) {
	if log == nil {
		log = logrus.New()
	}

	var dialector gorm.Dialector
	switch cfg.Driver() {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	default:
		path := cfg.DSN()
		if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(path + "?_foreign_keys=on")
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	maxConn := cfg.DBMaxConn
	if cfg.Driver() == config.DriverSQLite || maxConn <= 0 {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY
		maxConn = 1
	}
	sqlDB.SetMaxOpenConns(maxConn)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &Database{db: gdb, logger: log}, nil
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// Ping checks that the database answers.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation reports whether err comes from the (city, product)
// unique constraint, whichever driver produced it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
