package pds

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connector establishes a database connection. It is the only storage capability the
// rest of the package depends on.
type Connector interface {
	Connect(ctx context.Context) (*gorm.DB, error)
}

// Account is a hosted repository owner
type Account struct {
	DID             string `gorm:"column:did;primaryKey"`
	Handle          string `gorm:"column:handle;uniqueIndex;not null"`
	InvitesDisabled bool   `gorm:"column:invites_disabled;not null;default:false"`
	CreatedAt       string `gorm:"column:created_at;not null"`
}

// RecordRow stores the canonical DAG-CBOR bytes of a record along with their CID.
type RecordRow struct {
	URI        string `gorm:"column:uri;primaryKey"`
	Repo       string `gorm:"column:repo;not null;index:idx_records_repo_collection,priority:1"`
	Collection string `gorm:"column:collection;not null;index:idx_records_repo_collection,priority:2"`
	RKey       string `gorm:"column:rkey;not null"`
	CID        string `gorm:"column:cid;not null"`
	Value      []byte `gorm:"column:value;not null"`
	IndexedAt  string `gorm:"column:indexed_at;not null"`
}

func (RecordRow) TableName() string {
	return "records"
}

type InviteCode struct {
	Code       string `gorm:"column:code;primaryKey"`
	ForAccount string `gorm:"column:for_account;not null;index"`
	CreatedBy  string `gorm:"column:created_by;not null"`
	CreatedAt  string `gorm:"column:created_at;not null"`
}

// DialectorConnector opens a gorm connection for a dialector, logging through slog and
// migrating the schema on connect.
type DialectorConnector struct {
	Dialector    gorm.Dialector
	Logger       *slog.Logger
	MaxOpenConns int
}

var _ Connector = (*DialectorConnector)(nil)

func (c *DialectorConnector) Connect(ctx context.Context) (*gorm.DB, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(c.Dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: slogGorm.New(
			slogGorm.WithHandler(logger.With("component", "store").Handler()),
			slogGorm.WithTraceAll(),
			slogGorm.SetLogLevel(slogGorm.DefaultLogType, slog.LevelDebug),
			slogGorm.SetLogLevel(slogGorm.SlowQueryLogType, slog.LevelWarn),
			slogGorm.SetLogLevel(slogGorm.ErrorLogType, slog.LevelError),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.WithContext(ctx).AutoMigrate(&Account{}, &RecordRow{}, &InviteCode{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

// NewConnector picks a driver from the URL scheme: sqlite:// or postgres(ql)://.
func NewConnector(dbURL string, logger *slog.Logger) (*DialectorConnector, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	switch u.Scheme {
	case "sqlite":
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite URL is missing a path")
		}
		return &DialectorConnector{
			Dialector: sqlite.Open(path),
			Logger:    logger,
			// sqlite serializes writers anyway
			MaxOpenConns: 1,
		}, nil
	case "postgres", "postgresql":
		return &DialectorConnector{
			Dialector:    postgres.Open(dbURL),
			Logger:       logger,
			MaxOpenConns: 40,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database URL scheme: %q", u.Scheme)
	}
}
