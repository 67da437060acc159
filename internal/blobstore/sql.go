package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// Fixed names of the blob database and its single table
const (
	DatabaseName    = "EpubReaderDB"
	ObjectStoreName = "books"
)

type bookBlob struct {
	ID      string `gorm:"primaryKey;column:id"`
	Data    []byte
	SavedAt time.Time
}

func (bookBlob) TableName() string {
	return ObjectStoreName
}

// SQLStore keeps blobs in a SQLite database opened on first use
type SQLStore struct {
	dir    string
	logger zerolog.Logger

	mu     sync.Mutex
	db     *gorm.DB
	warned bool
}

// NewSQLStore creates a store whose database file lives in dir.
// Nothing is touched on disk until the first operation.
func NewSQLStore(dir string, logger zerolog.Logger) *SQLStore {
	return &SQLStore{
		dir:    dir,
		logger: logger,
	}
}

// Path returns the database file path
func (s *SQLStore) Path() string {
	return filepath.Join(s.dir, DatabaseName+".sqlite")
}

// open connects and creates the schema if absent; a failed open is retried on the next call
func (s *SQLStore) open() (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := s.connect()
	if err != nil {
		if !s.warned {
			s.logger.Warn().Err(err).Str("path", s.Path()).Msg("blob database unavailable, books will be kept in memory only")
			s.warned = true
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if s.warned {
		s.logger.Info().Str("path", s.Path()).Msg("blob database available again")
		s.warned = false
	}
	s.db = db
	return db, nil
}

func (s *SQLStore) connect() (*gorm.DB, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(s.Path()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if !db.Migrator().HasTable(&bookBlob{}) {
		if err := db.AutoMigrate(&bookBlob{}); err != nil {
			if sqlDB, derr := db.DB(); derr == nil {
				sqlDB.Close()
			}
			return nil, fmt.Errorf("failed to create %s table: %w", ObjectStoreName, err)
		}
		s.logger.Debug().Str("path", s.Path()).Msg("blob schema created")
	}

	return db, nil
}

// Put stores the bytes for id
func (s *SQLStore) Put(ctx context.Context, id string, data []byte) error {
	db, err := s.open()
	if err != nil {
		return err
	}

	rec := bookBlob{ID: id, Data: data, SavedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save blob %s: %w", id, err)
	}
	return nil
}

// Get returns the record for id
func (s *SQLStore) Get(ctx context.Context, id string) (types.BlobRecord, bool, error) {
	db, err := s.open()
	if err != nil {
		return types.BlobRecord{}, false, err
	}

	var rec bookBlob
	err = db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.BlobRecord{}, false, nil
	}
	if err != nil {
		return types.BlobRecord{}, false, fmt.Errorf("failed to load blob %s: %w", id, err)
	}

	return types.BlobRecord{ID: rec.ID, Data: rec.Data, SavedAt: rec.SavedAt}, true, nil
}

// Delete removes the record for id
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	db, err := s.open()
	if err != nil {
		return err
	}

	if err := db.WithContext(ctx).Where("id = ?", id).Delete(&bookBlob{}).Error; err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}
	return nil
}

// Ping opens the database if needed and reports whether it is usable
func (s *SQLStore) Ping(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection if it was opened
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}
