package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"firechain/core/events"
	"firechain/crypto"
	"firechain/observability/metrics"
)

const tracerName = "firechain/rewards"

// Engine computes era rewards into the ledger and releases them through the
// claim gate. Operations are expected to be invoked sequentially by the state
// transition layer; the ledger serialises them regardless.
type Engine struct {
	cfg       Config
	precision Precision
	pool      crypto.AccountID
	ledger    *Ledger
	deps      Dependencies

	resolver IdentityResolver
	emitter  events.Emitter
	logger   *slog.Logger
	metrics  *metrics.RewardsMetrics
	tracer   trace.Tracer
	clock    func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithEmitter routes notifications to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// WithLogger overrides the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *metrics.RewardsMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithResolver overrides how validator ids are turned into accounts.
func WithResolver(resolver IdentityResolver) Option {
	return func(e *Engine) {
		if resolver != nil {
			e.resolver = resolver
		}
	}
}

// WithClock overrides the time source used for era summaries.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithTracer overrides the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// New constructs an engine. The ledger must have been initialised with the
// pool account derived from cfg.
func New(cfg Config, ledger *Ledger, deps Dependencies, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, fmt.Errorf("rewards: ledger required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	precision, err := NewPrecision(cfg.Precision)
	if err != nil {
		return nil, err
	}
	pool, err := cfg.PoolAccount()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	stored, ok, err := ledger.PoolAccount()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGenesisRequired
	}
	if stored != pool {
		return nil, fmt.Errorf("%w: genesis pool %s, configured %s", ErrPoolMismatch, stored, pool)
	}
	version, err := ledger.Version()
	if err != nil {
		return nil, err
	}
	if version < LedgerVersion {
		return nil, fmt.Errorf("%w: found version %d, want %d", ErrMigrationRequired, version, LedgerVersion)
	}
	engine := &Engine{
		cfg:       cfg.Clone(),
		precision: precision,
		pool:      pool,
		ledger:    ledger,
		deps:      deps,
		resolver:  AccountResolver{},
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	engine.logger = engine.logger.With("component", "rewards")
	return engine, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.cfg.Clone()
}

// PoolAccount returns the account payouts are funded from.
func (e *Engine) PoolAccount() crypto.AccountID {
	if e == nil {
		return crypto.AccountID{}
	}
	return e.pool
}

// Ledger exposes the underlying store for read-only queries.
func (e *Engine) Ledger() *Ledger {
	if e == nil {
		return nil
	}
	return e.ledger
}

func (e *Engine) emit(evts []events.Event) {
	for _, evt := range evts {
		e.emitter.Emit(evt)
	}
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (e *Engine) start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return e.tracer.Start(ctx, name, opts...)
}
