// Package sqlstore is a Store backed by GORM, supporting both SQLite
// (single-node, default) and PostgreSQL (shared, HA-capable) through the
// same model and query code, following the project's usual dual-dialector
// pattern for the control-plane database.
package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quantbridge/fixgo/pkg/store"
)

// DatabaseType selects the SQL backend.
type DatabaseType string

const (
	DatabaseTypeSQLite   DatabaseType = "sqlite"
	DatabaseTypePostgres DatabaseType = "postgres"
)

// SQLiteConfig is the SQLite-specific connection configuration.
type SQLiteConfig struct {
	Path string
}

// PostgresConfig is the PostgreSQL-specific connection configuration.
type PostgresConfig struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

func (c *PostgresConfig) dsn() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	return dsn
}

// Config selects and configures the backend.
type Config struct {
	Type     DatabaseType
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

func (c *Config) applyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}
	if c.Type == DatabaseTypePostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 25
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 5
		}
	}
}

// sequenceRow is the persisted sequence cursor pair for one epoch.
type sequenceRow struct {
	EpochGUID    string `gorm:"primaryKey;column:epoch_guid"`
	NextIncoming uint32 `gorm:"column:next_incoming"`
	NextOutgoing uint32 `gorm:"column:next_outgoing"`
}

func (sequenceRow) TableName() string { return "sequences" }

// outgoingMessageRow is one sent message kept for resend replay.
type outgoingMessageRow struct {
	Key       uint   `gorm:"primaryKey;autoIncrement;column:key"`
	EpochGUID string `gorm:"column:epoch_guid;index"`
	MsgSeqNum uint32 `gorm:"column:msg_seq_num"`
	SendTime  int64  `gorm:"column:send_time"`
	Message   []byte `gorm:"column:message"`
}

func (outgoingMessageRow) TableName() string { return "outgoing_messages" }

// Store is a Store backed by a *gorm.DB.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured backend and migrates the schema.
func Open(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if dir := filepath.Dir(config.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlstore: create database directory: %w", err)
			}
		}
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)
	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.dsn())
	default:
		return nil, fmt.Errorf("sqlstore: unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}

	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlstore: underlying connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)

		if err := migratePostgres(config.Postgres); err != nil {
			return nil, err
		}
	} else {
		if err := db.AutoMigrate(&sequenceRow{}, &outgoingMessageRow{}); err != nil {
			return nil, fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) StoreOutgoing(ctx context.Context, epoch string, msgSeqNum uint32, sendTime time.Time, payload []byte) error {
	row := outgoingMessageRow{EpochGUID: epoch, MsgSeqNum: msgSeqNum, SendTime: sendTime.UnixNano(), Message: payload}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlstore: store outgoing: %w", err)
	}
	return nil
}

func (s *Store) GetSequences(ctx context.Context, epoch string) (uint32, uint32, error) {
	var row sequenceRow
	err := s.db.WithContext(ctx).Where("epoch_guid = ?", epoch).FirstOrCreate(&row, sequenceRow{
		EpochGUID:    epoch,
		NextIncoming: 1,
		NextOutgoing: 1,
	}).Error
	if err != nil {
		return 0, 0, fmt.Errorf("sqlstore: get sequences: %w", err)
	}
	return row.NextIncoming, row.NextOutgoing, nil
}

func (s *Store) SetSequences(ctx context.Context, epoch string, nextIncoming, nextOutgoing uint32) error {
	err := s.db.WithContext(ctx).
		Where("epoch_guid = ?", epoch).
		Assign(sequenceRow{NextIncoming: nextIncoming, NextOutgoing: nextOutgoing}).
		FirstOrCreate(&sequenceRow{EpochGUID: epoch}).Error
	if err != nil {
		return fmt.Errorf("sqlstore: set sequences: %w", err)
	}
	return nil
}

// GetPrevMessages restricts to the newest last rows (by insertion order)
// before filtering to [beginSeqNo, endSeqNo], returning newest-first.
func (s *Store) GetPrevMessages(ctx context.Context, epoch string, beginSeqNo, endSeqNo, last uint32) ([]store.Message, error) {
	var rows []outgoingMessageRow
	err := s.db.WithContext(ctx).
		Where("epoch_guid = ?", epoch).
		Order("key DESC").
		Limit(int(last)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get prev messages: %w", err)
	}

	out := make([]store.Message, 0, len(rows))
	for _, r := range rows {
		if r.MsgSeqNum >= beginSeqNo && r.MsgSeqNum <= endSeqNo {
			out = append(out, store.Message{MsgSeqNum: r.MsgSeqNum, Payload: r.Message})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MsgSeqNum > out[j].MsgSeqNum })
	return out, nil
}

func (s *Store) LastSendTime(ctx context.Context, epoch string) (time.Time, error) {
	var row outgoingMessageRow
	err := s.db.WithContext(ctx).
		Where("epoch_guid = ?", epoch).
		Order("send_time DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: last send time: %w", err)
	}
	if row.Key == 0 {
		return time.Time{}, store.ErrNotFound
	}
	return time.Unix(0, row.SendTime), nil
}

func (s *Store) Disconnect(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlstore: underlying connection: %w", err)
	}
	return sqlDB.Close()
}

var _ store.Store = (*Store)(nil)
