package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"firechain/config"
	"firechain/core/epoch"
	"firechain/core/events"
	"firechain/core/rewards"
	"firechain/integrations/journal"
	"firechain/integrations/webhooks"
	"firechain/native/bank"
	"firechain/observability"
	"firechain/observability/logging"
	"firechain/observability/metrics"
	telemetry "firechain/observability/otel"
	"firechain/storage"
)

const serviceName = "rewardsd"

// cliEnv lazily opens the resources a command needs and releases them in
// reverse order on close.
type cliEnv struct {
	configPath   string
	snapshotPath string
	stdout       io.Writer
	stderr       io.Writer

	cfg       *config.Config
	engineCfg rewards.Config
	logger    *slog.Logger
	db        *storage.LevelDB
	ledger    *rewards.Ledger
	bank      *bank.Bank
	emitter   events.Emitter
	sink      *journal.Sink
	closers   []func()
}

func (e *cliEnv) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *cliEnv) onClose(fn func()) {
	e.closers = append(e.closers, fn)
}

// load reads the config, configures logging and telemetry and opens the
// ledger database.
func (e *cliEnv) load() error {
	if e.cfg != nil {
		return nil
	}
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	engineCfg, err := cfg.Rewards.ToEngineConfig()
	if err != nil {
		return err
	}
	existential, err := cfg.Bank.ExistentialDepositAmount()
	if err != nil {
		return err
	}

	logOut := e.stderr
	if strings.TrimSpace(cfg.LogFile) != "" {
		file, err := logging.RotatingFile(cfg.ResolvePath(cfg.LogFile), 0, 0)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		e.onClose(func() { _ = file.Close() })
		logOut = file
	}
	env := cfg.Environment
	if fromEnv := strings.TrimSpace(os.Getenv("FIRE_ENV")); fromEnv != "" {
		env = fromEnv
	}
	e.logger = logging.Setup(serviceName, env,
		logging.WithWriter(logOut),
		logging.WithLevel(logging.ParseLevel(cfg.LogLevel)),
	)

	otelCfg := telemetry.FromEnv(serviceName, env)
	if otelCfg.Traces || otelCfg.Metrics {
		shutdown, err := telemetry.Init(context.Background(), otelCfg)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		e.onClose(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				e.logger.Warn("telemetry shutdown failed", "error", err)
			}
		})
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return fmt.Errorf("open ledger database: %w", err)
	}
	e.onClose(db.Close)

	e.cfg = cfg
	e.engineCfg = engineCfg
	e.db = db
	e.ledger = rewards.NewLedger(db)
	e.bank = bank.New(db, existential)
	return nil
}

func (e *cliEnv) snapshot() (*epoch.Snapshot, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	path := e.snapshotPath
	if path == "" {
		path = e.cfg.ResolvePath(e.cfg.SnapshotFile)
	}
	snap, err := epoch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load era snapshot: %w", err)
	}
	return snap, nil
}

// emitters opens the optional journal and webhook sinks once per process.
func (e *cliEnv) emitters() (events.Emitter, error) {
	if e.emitter != nil {
		return e.emitter, nil
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	fanout := events.Fanout{observability.Events()}
	if driver := strings.TrimSpace(e.cfg.Journal.Driver); driver != "" {
		dsn := e.cfg.Journal.DSN
		if driver == journal.DriverSQLite && !strings.HasPrefix(dsn, "file:") {
			dsn = e.cfg.ResolvePath(dsn)
		}
		db, err := journal.Open(driver, dsn)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			e.onClose(func() { _ = sqlDB.Close() })
		}
		sink, err := journal.New(db, journal.WithLogger(e.logger.With("component", "journal")))
		if err != nil {
			return nil, err
		}
		e.logger.Info("payout journal enabled", "driver", driver, "dsn", logging.RedactDSN(dsn))
		e.sink = sink
		fanout = append(fanout, sink)
	}
	if url := strings.TrimSpace(e.cfg.Webhook.URL); url != "" {
		secret := os.Getenv(e.cfg.Webhook.SecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("webhook secret env %s is empty", e.cfg.Webhook.SecretEnv)
		}
		dispatcher, err := webhooks.NewDispatcher(url, []byte(secret),
			webhooks.WithTopics(e.cfg.Webhook.Topics...),
			webhooks.WithLogger(e.logger.With("component", "webhook")),
		)
		if err != nil {
			return nil, err
		}
		e.onClose(dispatcher.Close)
		e.logger.Info("webhook forwarding enabled",
			logging.MaskField("url", url),
			"secret_env", e.cfg.Webhook.SecretEnv,
			"topics", len(e.cfg.Webhook.Topics))
		fanout = append(fanout, dispatcher)
	}
	e.emitter = fanout
	return e.emitter, nil
}

// engine builds a reward engine backed by the given snapshot.
func (e *cliEnv) engine(snap *epoch.Snapshot) (*rewards.Engine, error) {
	emitter, err := e.emitters()
	if err != nil {
		return nil, err
	}
	return rewards.New(e.engineCfg, e.ledger, rewards.Dependencies{
		Points:     snap,
		Exposures:  snap,
		Currency:   e.bank,
		Validators: snap,
	},
		rewards.WithEmitter(emitter),
		rewards.WithLogger(e.logger),
		rewards.WithMetrics(metrics.Rewards()),
	)
}

// currentEngine loads the configured snapshot and builds an engine on it.
func (e *cliEnv) currentEngine() (*rewards.Engine, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return e.engine(snap)
}

// readEngine builds an engine for read-only commands. Without a snapshot on
// disk an empty era 0 snapshot is used.
func (e *cliEnv) readEngine() (*rewards.Engine, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	snap, err := e.snapshot()
	if errors.Is(err, fs.ErrNotExist) {
		snap, err = &epoch.Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	return e.engine(snap)
}
