package pds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdscore/go-pdscore/pdsutil"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrRecordNotFound  = errors.New("record not found")
	ErrInvalidRecord   = errors.New("invalid record")
	ErrInvitesDisabled = errors.New("account invites are disabled")
)

// Store holds account, invite and record state.
type Store struct {
	db       *gorm.DB
	hostname string
	clock    pdsutil.Clock
	random   pdsutil.RandomSource
	logger   *slog.Logger

	// injected sources need not be safe for concurrent use
	randLock sync.Mutex

	// record keys are TIDs; this keeps them strictly increasing even if the clock
	// stalls or steps backwards
	tidLock       sync.Mutex
	lastTIDMicros int64
}

// NewStore connects through conn. clock and random are used for timestamps, record keys
// and invite codes; hostname prefixes invite codes.
func NewStore(ctx context.Context, conn Connector, hostname string, clock pdsutil.Clock, random pdsutil.RandomSource, logger *slog.Logger) (*Store, error) {
	db, err := conn.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &Store{
		db:       db,
		hostname: hostname,
		clock:    clock,
		random:   random,
		logger:   logger.With("component", "store"),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) nextTIDMicros() int64 {
	s.tidLock.Lock()
	defer s.tidLock.Unlock()
	now := s.clock.Now().UnixMicro()
	if now <= s.lastTIDMicros {
		now = s.lastTIDMicros + 1
	}
	s.lastTIDMicros = now
	return now
}

func (s *Store) randomToken() (string, error) {
	s.randLock.Lock()
	defer s.randLock.Unlock()
	return pdsutil.RandomToken(s.random)
}
