package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"firechain/core/events"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Entry is one persisted reward event.
type Entry struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
	// Seq preserves emission order within a process.
	Seq     uint64 `gorm:"index;not null"`
	Type    string `gorm:"size:64;index;not null"`
	Subject string `gorm:"size:128;index"`
	Era     *uint32
	Amount  string `gorm:"size:80"`
	// Attributes holds the full attribute map as JSON.
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName pins the table name independently of the struct name.
func (Entry) TableName() string { return "reward_journal" }

// Open connects to the journal database.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}
	return db, nil
}

// AutoMigrate creates or updates the journal schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}

// Sink persists every emitted event. Write failures are logged and never
// propagate back into the emitter.
type Sink struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	seq uint64
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger overrides the logger used for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// New migrates the schema and returns a sink writing to db.
func New(db *gorm.DB, opts ...Option) (*Sink, error) {
	if db == nil {
		return nil, errors.New("journal: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	sink := &Sink{db: db, logger: slog.Default(), now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(sink)
	}
	var last Entry
	if err := db.Order("seq desc").Limit(1).Find(&last).Error; err != nil {
		return nil, fmt.Errorf("journal: load sequence: %w", err)
	}
	sink.seq = last.Seq
	return sink, nil
}

// Emit implements events.Emitter.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	if err := s.Record(context.Background(), evt); err != nil {
		s.logger.Error("journal write failed", "type", evt.EventType(), "error", err)
	}
}

// Record persists evt and returns the write error.
func (s *Sink) Record(ctx context.Context, evt events.Event) error {
	rendered := evt.Event()
	if rendered == nil {
		return nil
	}
	attrs, err := json.Marshal(rendered.Attributes)
	if err != nil {
		return err
	}
	entry := Entry{
		ID:         uuid.New(),
		Type:       rendered.Type,
		Subject:    subjectOf(rendered.Attributes),
		Amount:     rendered.Attr("amount"),
		Attributes: string(attrs),
		CreatedAt:  s.now(),
	}
	if raw := rendered.Attr("era"); raw != "" {
		if era, err := strconv.ParseUint(raw, 10, 32); err == nil {
			v := uint32(era)
			entry.Era = &v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Seq = s.seq + 1
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}
	s.seq = entry.Seq
	return nil
}

// Entries lists journal rows in emission order. An empty kind returns every
// type. A limit of zero means no limit.
func (s *Sink) Entries(ctx context.Context, kind string, limit int) ([]Entry, error) {
	query := s.db.WithContext(ctx).Order("seq asc")
	if kind != "" {
		query = query.Where("type = ?", kind)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []Entry
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PaidTo sums the recorded payouts to recipient.
func (s *Sink) PaidTo(ctx context.Context, recipient string) (*uint256.Int, error) {
	var amounts []string
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Where("type = ? AND subject = ?", events.TypeRewardDistributed, recipient).
		Pluck("amount", &amounts).Error
	if err != nil {
		return nil, err
	}
	total := new(uint256.Int)
	for _, raw := range amounts {
		amount, err := uint256.FromDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("journal: corrupt amount %q: %w", raw, err)
		}
		if _, overflow := total.AddOverflow(total, amount); overflow {
			return nil, fmt.Errorf("journal: payout total overflow for %s", recipient)
		}
	}
	return total, nil
}

func subjectOf(attrs map[string]string) string {
	for _, key := range []string{"recipient", "validator"} {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}
