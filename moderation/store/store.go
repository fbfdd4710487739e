package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	// ErrNotFound wraps gorm's record-not-found for callers outside this package.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a conditional update lost its compare-and-swap
	// (eg, a review item or appeal was resolved concurrently).
	ErrConflict = errors.New("conditional update conflict")
)

// Store wraps the persistent backend. All guardian state that must
// survive restarts and be shared across instances lives here; the only
// other shared mutable state is the counter/flag stores.
type Store struct {
	DB *gorm.DB
}

// NewStore opens the database indicated by dburl (sqlite:// or
// postgres://), runs migrations, and returns the store.
func NewStore(dburl string, maxConnections int) (*Store, error) {
	db, err := setupDatabase(dburl, maxConnections)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Healthcheck pings the underlying database.
func (s *Store) Healthcheck(ctx context.Context) error {
	sqldb, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}

func (s *Store) migrate() error {
	return s.DB.AutoMigrate(
		&Violation{},
		&Strike{},
		&ScopeRestriction{},
		&ReviewItem{},
		&AdminPenalty{},
		&Appeal{},
		&MassReportEvent{},
		&NotificationPref{},
	)
}

func setupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	isSqlite := false
	openConns := maxConnections
	if strings.HasPrefix(dburl, "sqlite://") {
		sqliteSuffix := dburl[len("sqlite://"):]
		// if this isn't ":memory:", ensure that directory exists (eg, if db
		// file is being initialized)
		if !strings.Contains(sqliteSuffix, ":memory:") {
			_ = os.MkdirAll(filepath.Dir(sqliteSuffix), os.ModePerm)
		}
		dial = sqlite.Open(sqliteSuffix)
		openConns = 1
		isSqlite = true
	} else if strings.HasPrefix(dburl, "postgresql://") || strings.HasPrefix(dburl, "postgres://") {
		// can pass entire URL, with prefix, to gorm driver
		dial = postgres.Open(dburl)
	} else {
		return nil, fmt.Errorf("unsupported or unrecognized database URL scheme")
	}

	gormLogger := slogGorm.New()

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxIdleConns(openConns)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
