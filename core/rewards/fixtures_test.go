package rewards

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"firechain/core/events"
	"firechain/crypto"
	"firechain/storage"
)

func testAccount(b byte) crypto.AccountID {
	var id crypto.AccountID
	id[0] = 0xaa
	id[crypto.AccountIDLength-1] = b
	return id
}

func idOf(account crypto.AccountID) ValidatorID {
	return ValidatorID(account.String())
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type stubPoints struct {
	era    uint32
	total  uint32
	points map[crypto.AccountID]uint32
}

func (s *stubPoints) ActiveEra() (uint32, error) { return s.era, nil }

func (s *stubPoints) PointsOf(validator crypto.AccountID, era uint32) (uint32, error) {
	return s.points[validator], nil
}

func (s *stubPoints) TotalPoints(era uint32) (uint32, error) { return s.total, nil }

type stubExposures struct {
	exposures  map[crypto.AccountID]Exposure
	commission map[crypto.AccountID]Perbill
}

func (s *stubExposures) ExposureOf(validator crypto.AccountID, era uint32) (Exposure, error) {
	exposure, ok := s.exposures[validator]
	if !ok {
		return Exposure{Own: new(uint256.Int), Total: new(uint256.Int)}, nil
	}
	return exposure.Clone(), nil
}

func (s *stubExposures) CommissionOf(validator crypto.AccountID) (Perbill, error) {
	return s.commission[validator], nil
}

type stubValidators struct {
	ids []ValidatorID
}

func (s *stubValidators) CurrentValidators() ([]ValidatorID, error) {
	return append([]ValidatorID(nil), s.ids...), nil
}

type transferCall struct {
	to     crypto.AccountID
	amount *uint256.Int
}

// stubCurrency keeps balances in memory and honours the keep-alive flag
// against a fixed existential deposit.
type stubCurrency struct {
	existential *uint256.Int
	balances    map[crypto.AccountID]*uint256.Int
	failFor     map[crypto.AccountID]error
	transfers   []transferCall
}

func newStubCurrency(existential uint64) *stubCurrency {
	return &stubCurrency{
		existential: u(existential),
		balances:    make(map[crypto.AccountID]*uint256.Int),
		failFor:     make(map[crypto.AccountID]error),
	}
}

func (c *stubCurrency) balance(account crypto.AccountID) *uint256.Int {
	if bal, ok := c.balances[account]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (c *stubCurrency) fund(account crypto.AccountID, amount uint64) {
	c.balances[account] = new(uint256.Int).Add(c.balance(account), u(amount))
}

func (c *stubCurrency) Transfer(from, to crypto.AccountID, amount *uint256.Int, keepAlive bool) error {
	if err := c.failFor[to]; err != nil {
		return err
	}
	balance := c.balance(from)
	floor := new(uint256.Int)
	if keepAlive {
		floor.Set(c.existential)
	}
	needed := new(uint256.Int).Add(amount, floor)
	if balance.Lt(needed) {
		return fmt.Errorf("transfer %s: %w", amount.Dec(), ErrInsufficientBalance)
	}
	c.balances[from] = new(uint256.Int).Sub(balance, amount)
	c.balances[to] = new(uint256.Int).Add(c.balance(to), amount)
	c.transfers = append(c.transfers, transferCall{to: to, amount: new(uint256.Int).Set(amount)})
	return nil
}

type fixture struct {
	cfg        Config
	db         *storage.MemDB
	ledger     *Ledger
	points     *stubPoints
	exposures  *stubExposures
	validators *stubValidators
	currency   *stubCurrency
	recorder   *events.Recorder
	engine     *Engine
	pool       crypto.AccountID
}

// smallConfig yields an era budget of yearly/10 with no precision digits.
func smallConfig(yearly uint64) Config {
	return Config{
		YearlyBudget:   u(yearly),
		MinutesPerYear: 10,
		EraMinutes:     1,
		Precision:      0,
		PoolSeed:       DefaultPoolSeed,
	}
}

// failingDB fails every batch write after the first healthy ones.
type failingDB struct {
	*storage.MemDB
	healthy int
	writes  int
}

func (d *failingDB) NewBatch() storage.Batch {
	return &failingBatch{Batch: d.MemDB.NewBatch(), db: d}
}

type failingBatch struct {
	storage.Batch
	db *failingDB
}

func (b *failingBatch) Write() error {
	b.db.writes++
	if b.db.writes > b.db.healthy {
		return errDiskFull
	}
	return b.Batch.Write()
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		cfg:        cfg,
		db:         storage.NewMemDB(),
		points:     &stubPoints{era: 1, points: make(map[crypto.AccountID]uint32)},
		exposures:  &stubExposures{exposures: make(map[crypto.AccountID]Exposure), commission: make(map[crypto.AccountID]Perbill)},
		validators: &stubValidators{},
		currency:   newStubCurrency(1),
		recorder:   &events.Recorder{},
	}
	f.ledger = NewLedger(f.db)
	pool, err := cfg.PoolAccount()
	if err != nil {
		t.Fatalf("pool account: %v", err)
	}
	f.pool = pool
	if err := f.ledger.InitGenesis(pool); err != nil {
		t.Fatalf("init genesis: %v", err)
	}
	f.engine = f.engineOver(t, f.ledger)
	return f
}

// engineOn builds a second engine sharing the fixture's stubs over db.
func (f *fixture) engineOn(t *testing.T, db storage.Database) *Engine {
	t.Helper()
	return f.engineOver(t, NewLedger(db))
}

func (f *fixture) engineOver(t *testing.T, ledger *Ledger) *Engine {
	t.Helper()
	engine, err := New(f.cfg, ledger, Dependencies{
		Points:     f.points,
		Exposures:  f.exposures,
		Currency:   f.currency,
		Validators: f.validators,
	}, WithEmitter(f.recorder), WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

// addValidator registers a validator with the given points for the active era.
func (f *fixture) addValidator(account crypto.AccountID, points uint32) {
	f.validators.ids = append(f.validators.ids, idOf(account))
	f.points.points[account] = points
}

func (f *fixture) setExposure(validator crypto.AccountID, own uint64, commission Perbill, nominators ...IndividualExposure) {
	total := u(own)
	for _, n := range nominators {
		total = new(uint256.Int).Add(total, n.Value)
	}
	f.exposures.exposures[validator] = Exposure{Own: u(own), Total: total, Others: nominators}
	f.exposures.commission[validator] = commission
}

func (f *fixture) nextEra(total uint32, points map[crypto.AccountID]uint32) {
	f.points.era++
	f.points.total = total
	for account := range f.points.points {
		f.points.points[account] = 0
	}
	for account, p := range points {
		f.points.points[account] = p
	}
}

func (f *fixture) pending(t *testing.T, validator crypto.AccountID) uint64 {
	t.Helper()
	amount, err := f.engine.PendingReward(validator)
	if err != nil {
		t.Fatalf("pending reward: %v", err)
	}
	return amount.Uint64()
}

func (f *fixture) nominatorPending(t *testing.T, validator, nominator crypto.AccountID) uint64 {
	t.Helper()
	amount, err := f.engine.NominatorPendingReward(validator, nominator)
	if err != nil {
		t.Fatalf("nominator pending: %v", err)
	}
	return amount.Uint64()
}

func (f *fixture) receipts(t *testing.T, account crypto.AccountID) uint64 {
	t.Helper()
	amount, err := f.engine.LifetimeReceipts(account)
	if err != nil {
		t.Fatalf("lifetime receipts: %v", err)
	}
	return amount.Uint64()
}

var (
	errCurrencyOffline = errors.New("currency offline")
	errDiskFull        = errors.New("disk full")
)
