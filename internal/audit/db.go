package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type auditRow struct {
	ID         string    `gorm:"primaryKey"`
	Timestamp  time.Time `gorm:"index;not null"`
	ItemCount  int       `gorm:"not null"`
	TotalBytes int64     `gorm:"not null"`
	Method     string    `gorm:"not null"`
}

func (auditRow) TableName() string {
	return "deletion_audit"
}

// DBSink stores records in a SQLite database.
type DBSink struct {
	db *gorm.DB
}

// OpenDB opens or creates the database at path and migrates its schema.
func OpenDB(path string) (*DBSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&auditRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	_ = os.Chmod(path, 0o600)

	return &DBSink{db: db}, nil
}

// Append inserts r.
func (s *DBSink) Append(ctx context.Context, r Record) error {
	row := auditRow{
		ID:         r.ID,
		Timestamp:  r.Timestamp,
		ItemCount:  r.ItemCount,
		TotalBytes: r.TotalBytes,
		Method:     r.Method,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first.
func (s *DBSink) List(ctx context.Context, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []auditRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = Record{
			ID:         row.ID,
			Timestamp:  row.Timestamp.UTC(),
			ItemCount:  row.ItemCount,
			TotalBytes: row.TotalBytes,
			Method:     row.Method,
		}
	}
	return records, nil
}

// Close releases the database handle.
func (s *DBSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
