package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"microlend/core/events"
	"microlend/native/lending"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

var ErrClosed = errors.New("lending indexer: closed")

// Indexer stores committed lending events in SQL for audit queries. It
// implements events.Emitter so it can be attached to the node directly.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	seq    uint64
	closed bool
}

var _ events.Emitter = (*Indexer)(nil)

// Open opens (or creates) a SQLite index at dsn. Use ":memory:" for an
// ephemeral index.
func Open(dsn string, log *slog.Logger) (*Indexer, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("lending indexer: dsn required")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("lending indexer: open %s: %w", dsn, err)
	}
	if strings.Contains(dsn, ":memory:") {
		// Every connection to an in-memory database sees a fresh schema.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, log)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("lending indexer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("lending indexer: migrate: %w", err)
	}
	var last struct{ Max uint64 }
	if err := db.Model(&EventRecord{}).Select("COALESCE(MAX(seq), 0) AS max").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("lending indexer: load sequence: %w", err)
	}
	return &Indexer{db: db, logger: log, now: time.Now, seq: last.Max}, nil
}

// Emit records evt. Events outside the lending module are ignored. Storage
// failures are logged; the chain state is already committed at this point.
func (ix *Indexer) Emit(evt events.Event) {
	if ix == nil || evt == nil {
		return
	}
	if !strings.HasPrefix(evt.EventType(), lending.ModuleName+".") {
		return
	}
	if err := ix.Record(context.Background(), evt); err != nil {
		ix.logger.Error("index lending event", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Record persists evt synchronously.
func (ix *Indexer) Record(ctx context.Context, evt events.Event) error {
	payload := evt.Event()
	if payload == nil {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}
	record := EventRecord{
		ID:         uuid.New(),
		Seq:        ix.seq + 1,
		Type:       payload.Type,
		Account:    accountOf(payload.Attributes),
		Amount:     amountOf(payload.Attributes),
		Attributes: payload.Clone().Attributes,
		CreatedAt:  ix.now().UTC(),
	}
	if raw, ok := payload.Attributes["loanId"]; ok {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			record.LoanID = &id
		}
	}
	if err := ix.db.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}
	ix.seq = record.Seq
	return nil
}

// Filter narrows an event query. Zero values match everything.
type Filter struct {
	Type    string
	Account string
	LoanID  *uint64
	// AfterSeq returns only events recorded after the given sequence.
	AfterSeq uint64
	Limit    int
}

// Events returns matching events in recording order.
func (ix *Indexer) Events(ctx context.Context, filter Filter) ([]EventRecord, error) {
	if ix == nil || ix.db == nil {
		return nil, ErrClosed
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	query := ix.db.WithContext(ctx).Model(&EventRecord{}).Where("seq > ?", filter.AfterSeq)
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if account := strings.TrimSpace(filter.Account); account != "" {
		query = query.Where("account = ?", account)
	}
	if filter.LoanID != nil {
		query = query.Where("loan_id = ?", *filter.LoanID)
	}
	var records []EventRecord
	if err := query.Order("seq ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// LoanHistory returns every event recorded for loanID.
func (ix *Indexer) LoanHistory(ctx context.Context, loanID uint64) ([]EventRecord, error) {
	return ix.Events(ctx, Filter{LoanID: &loanID, Limit: maxLimit})
}

// Close releases the underlying connection.
func (ix *Indexer) Close() error {
	if ix == nil {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func accountOf(attrs map[string]string) string {
	for _, key := range []string{"borrower", "owner", "contributor"} {
		if value := attrs[key]; value != "" {
			return value
		}
	}
	return ""
}

func amountOf(attrs map[string]string) string {
	for _, key := range []string{"amount", "principal"} {
		if value := attrs[key]; value != "" {
			return value
		}
	}
	return ""
}
