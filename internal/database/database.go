package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readstack/internal/entities"
)

// SchemaVersion is bumped whenever a table shape changes. Opening a database
// stamped with another version drops every table and starts empty.
const SchemaVersion = 4

// Table names used for change notifications.
const (
	TableBooks    = "books"
	TableQuotes   = "quotes"
	TableSessions = "reading_sessions"
)

// ErrNotFound is returned by write paths that require an existing record.
var ErrNotFound = errors.New("record not found")

type schemaInfo struct {
	ID      uint `gorm:"primaryKey"`
	Version int
}

func (schemaInfo) TableName() string {
	return "schema_info"
}

func models() []any {
	return []any{
		&entities.Book{},
		&entities.Quote{},
		&entities.ReadingSession{},
	}
}

type Database struct {
	DB     *gorm.DB
	hub    *Hub
	logger *zap.Logger

	// writeMu serializes every write so read-modify-write sequences
	// observe a stable row.
	writeMu sync.Mutex
}

func NewDatabase(dbPath string, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dsn := dbPath + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	database := &Database{
		DB:     db,
		hub:    NewHub(),
		logger: log,
	}

	if err := database.migrate(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("database initialized", zap.String("path", dbPath), zap.Int("schema_version", SchemaVersion))

	return database, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Hub returns the change hub notified after every committed write.
func (d *Database) Hub() *Hub {
	return d.hub
}

// Logger returns the logger the database was opened with.
func (d *Database) Logger() *zap.Logger {
	return d.logger
}

// Write runs fn in a transaction while holding the write lock and, once the
// transaction commits, notifies watchers of the given tables.
func (d *Database) Write(ctx context.Context, fn func(tx *gorm.DB) error, tables ...string) error {
	d.writeMu.Lock()
	err := d.DB.WithContext(ctx).Transaction(fn)
	d.writeMu.Unlock()

	if err != nil {
		return err
	}
	d.hub.Publish(tables...)
	return nil
}

func (d *Database) migrate() error {
	m := d.DB.Migrator()

	stale, err := d.storedSchemaIsStale()
	if err != nil {
		return err
	}
	if stale {
		d.logger.Warn("schema version changed, dropping local data",
			zap.Int("schema_version", SchemaVersion))

		tables := append(models(), &schemaInfo{})
		for _, model := range tables {
			if m.HasTable(model) {
				if err := m.DropTable(model); err != nil {
					return fmt.Errorf("drop table: %w", err)
				}
			}
		}
	}

	if err := d.DB.AutoMigrate(append(models(), &schemaInfo{})...); err != nil {
		return err
	}

	return d.DB.Save(&schemaInfo{ID: 1, Version: SchemaVersion}).Error
}

// storedSchemaIsStale reports whether existing tables were written by a
// different schema version, including unversioned databases.
func (d *Database) storedSchemaIsStale() (bool, error) {
	m := d.DB.Migrator()

	if !m.HasTable(&schemaInfo{}) {
		for _, model := range models() {
			if m.HasTable(model) {
				return true, nil
			}
		}
		return false, nil
	}

	var info schemaInfo
	err := d.DB.First(&info, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read schema version: %w", err)
	}
	return info.Version != SchemaVersion, nil
}
