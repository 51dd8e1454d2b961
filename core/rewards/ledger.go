package rewards

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	coreerrors "firechain/core/errors"
	"firechain/crypto"
	"firechain/storage"
)

// LedgerVersion is the storage layout written by this package. Version 0 kept
// nominator rewards keyed by nominator only.
const LedgerVersion uint64 = 1

const (
	ledgerVersionKey = "rewards/meta/version"
	ledgerPoolKey    = "rewards/meta/pool"
	ledgerLastEraKey = "rewards/meta/last-era"
	ledgerQueueKey   = "rewards/queue"

	validatorPendingPrefix = "rewards/validator/"
	nominatorPendingPrefix = "rewards/nominator/"
	nominatorIndexPrefix   = "rewards/index/"
	receiptsPrefix         = "rewards/receipts/"
	eraSummaryPrefix       = "rewards/era/"
	eraSummaryKeyFormat    = eraSummaryPrefix + "%010d"
	legacyNominatorPrefix  = "rewards/legacy/nominator/"
)

func validatorPendingKey(validator crypto.AccountID) []byte {
	return []byte(validatorPendingPrefix + validator.Hex())
}

func nominatorPendingKey(validator, nominator crypto.AccountID) []byte {
	return []byte(nominatorPendingPrefix + validator.Hex() + "/" + nominator.Hex())
}

func nominatorIndexKey(validator crypto.AccountID) []byte {
	return []byte(nominatorIndexPrefix + validator.Hex())
}

func receiptsKey(account crypto.AccountID) []byte {
	return []byte(receiptsPrefix + account.Hex())
}

func eraSummaryKey(era uint32) []byte {
	return []byte(fmt.Sprintf(eraSummaryKeyFormat, era))
}

func legacyNominatorKey(nominator crypto.AccountID) []byte {
	return []byte(legacyNominatorPrefix + nominator.Hex())
}

type storedEraSummary struct {
	Era                uint64
	TotalPoints        uint64
	Budget             *uint256.Int
	ValidatorsCredited *uint256.Int
	NominatorsCredited *uint256.Int
	Validators         uint64
	ComputedAt         uint64
}

// Ledger persists pending rewards, the claim queue and lifetime receipts.
// Mutations go through Update so each operation is applied atomically.
type Ledger struct {
	db storage.Database
	mu sync.RWMutex
}

// NewLedger constructs a reward ledger backed by the supplied key-value store.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// Update runs fn inside a transaction and commits its writes when fn returns
// nil. Any error discards every write staged by fn.
func (l *Ledger) Update(fn func(tx *Tx) error) error {
	if l == nil || l.db == nil {
		return ErrNotInitialised
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tx := l.begin()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// View runs fn against a read-only snapshot of the ledger.
func (l *Ledger) View(fn func(tx *Tx) error) error {
	if l == nil || l.db == nil {
		return ErrNotInitialised
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(l.begin())
}

// InitGenesis records the pool account and the storage version. Running it
// again with the same pool is a no-op.
func (l *Ledger) InitGenesis(pool crypto.AccountID) error {
	if pool.IsZero() {
		return fmt.Errorf("rewards: pool account must not be zero")
	}
	return l.Update(func(tx *Tx) error {
		existing, ok, err := tx.PoolAccount()
		if err != nil {
			return err
		}
		if ok {
			if existing != pool {
				return fmt.Errorf("%w: genesis pool %s, requested %s", ErrPoolMismatch, existing, pool)
			}
			return nil
		}
		if err := tx.putRLP([]byte(ledgerPoolKey), pool); err != nil {
			return err
		}
		return tx.putRLP([]byte(ledgerVersionKey), LedgerVersion)
	})
}

// PoolAccount returns the pool recorded at genesis.
func (l *Ledger) PoolAccount() (crypto.AccountID, bool, error) {
	var (
		pool crypto.AccountID
		ok   bool
	)
	err := l.View(func(tx *Tx) error {
		var err error
		pool, ok, err = tx.PoolAccount()
		return err
	})
	return pool, ok, err
}

// Version returns the stored layout version (0 when never written).
func (l *Ledger) Version() (uint64, error) {
	var version uint64
	err := l.View(func(tx *Tx) error {
		var err error
		version, err = tx.Version()
		return err
	})
	return version, err
}

// ValidatorPending returns the unclaimed reward of a validator.
func (l *Ledger) ValidatorPending(validator crypto.AccountID) (*uint256.Int, error) {
	return l.readBalance(validatorPendingKey(validator))
}

// NominatorPending returns the unclaimed reward of a nominator behind validator.
func (l *Ledger) NominatorPending(validator, nominator crypto.AccountID) (*uint256.Int, error) {
	return l.readBalance(nominatorPendingKey(validator, nominator))
}

// LifetimeReceipts returns everything ever paid to account.
func (l *Ledger) LifetimeReceipts(account crypto.AccountID) (*uint256.Int, error) {
	return l.readBalance(receiptsKey(account))
}

// Nominators returns the nominators with a pending reward under validator.
func (l *Ledger) Nominators(validator crypto.AccountID) ([]crypto.AccountID, error) {
	var out []crypto.AccountID
	err := l.View(func(tx *Tx) error {
		var err error
		out, err = tx.Nominators(validator)
		return err
	})
	return out, err
}

// Queue returns the validators admitted for settlement.
func (l *Ledger) Queue() ([]crypto.AccountID, error) {
	var out []crypto.AccountID
	err := l.View(func(tx *Tx) error {
		var err error
		out, err = tx.Queue()
		return err
	})
	return out, err
}

// EraSummary returns the stored summary for era, if retained.
func (l *Ledger) EraSummary(era uint32) (*EraSummary, bool, error) {
	var (
		summary *EraSummary
		ok      bool
	)
	err := l.View(func(tx *Tx) error {
		var err error
		summary, ok, err = tx.EraSummary(era)
		return err
	})
	return summary, ok, err
}

// EraSummaries returns every retained summary in ascending era order.
func (l *Ledger) EraSummaries() ([]EraSummary, error) {
	if l == nil || l.db == nil {
		return nil, ErrNotInitialised
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var (
		out     []EraSummary
		iterErr error
	)
	err := l.db.Iterate([]byte(eraSummaryPrefix), func(_, value []byte) bool {
		var stored storedEraSummary
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			iterErr = err
			return false
		}
		out = append(out, stored.summary())
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}

func (l *Ledger) readBalance(key []byte) (*uint256.Int, error) {
	var out *uint256.Int
	err := l.View(func(tx *Tx) error {
		var err error
		out, err = tx.balance(key)
		return err
	})
	return out, err
}

func (l *Ledger) begin() *Tx {
	return &Tx{db: l.db, writes: make(map[string]txWrite)}
}

type txWrite struct {
	value   []byte
	deleted bool
}

// Tx stages ledger writes in memory until the enclosing Update commits them.
// Reads observe the staged writes.
type Tx struct {
	db     storage.Database
	writes map[string]txWrite
	order  []string
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if w, ok := tx.writes[string(key)]; ok {
		if w.deleted {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	value, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (tx *Tx) stage(key []byte, w txWrite) {
	k := string(key)
	if _, seen := tx.writes[k]; !seen {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = w
}

func (tx *Tx) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	tx.stage(key, txWrite{value: encoded})
	return nil
}

func (tx *Tx) getRLP(key []byte, out interface{}) (bool, error) {
	data, ok, err := tx.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("rewards: decode %s: %w", key, err)
	}
	return true, nil
}

func (tx *Tx) delete(key []byte) {
	tx.stage(key, txWrite{deleted: true})
}

func (tx *Tx) commit() error {
	if len(tx.order) == 0 {
		return nil
	}
	batch := tx.db.NewBatch()
	for _, key := range tx.order {
		w := tx.writes[key]
		if w.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), w.value)
	}
	return batch.Write()
}

func (tx *Tx) balance(key []byte) (*uint256.Int, error) {
	out := new(uint256.Int)
	if _, err := tx.getRLP(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// setBalance stores amount, removing the entry when it is zero.
func (tx *Tx) setBalance(key []byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		tx.delete(key)
		return nil
	}
	return tx.putRLP(key, amount)
}

func (tx *Tx) addBalance(key []byte, amount *uint256.Int) (*uint256.Int, error) {
	current, err := tx.balance(key)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.IsZero() {
		return current, nil
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return nil, fmt.Errorf("%w: %s", coreerrors.ErrBalanceOverflow, key)
	}
	return sum, tx.setBalance(key, sum)
}

// takeBalance returns the balance under key and removes the entry.
func (tx *Tx) takeBalance(key []byte) (*uint256.Int, error) {
	current, err := tx.balance(key)
	if err != nil {
		return nil, err
	}
	if !current.IsZero() {
		tx.delete(key)
	}
	return current, nil
}

func (tx *Tx) accounts(key []byte) ([]crypto.AccountID, error) {
	var out []crypto.AccountID
	if _, err := tx.getRLP(key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tx *Tx) setAccounts(key []byte, list []crypto.AccountID) error {
	if len(list) == 0 {
		tx.delete(key)
		return nil
	}
	return tx.putRLP(key, list)
}

// PoolAccount returns the pool recorded at genesis.
func (tx *Tx) PoolAccount() (crypto.AccountID, bool, error) {
	var pool crypto.AccountID
	ok, err := tx.getRLP([]byte(ledgerPoolKey), &pool)
	return pool, ok, err
}

// Version returns the stored layout version.
func (tx *Tx) Version() (uint64, error) {
	var version uint64
	if _, err := tx.getRLP([]byte(ledgerVersionKey), &version); err != nil {
		return 0, err
	}
	return version, nil
}

// SetVersion records the storage layout version.
func (tx *Tx) SetVersion(version uint64) error {
	return tx.putRLP([]byte(ledgerVersionKey), version)
}

// ValidatorPending returns the unclaimed reward of a validator.
func (tx *Tx) ValidatorPending(validator crypto.AccountID) (*uint256.Int, error) {
	return tx.balance(validatorPendingKey(validator))
}

// AddValidatorPending credits validator and returns the new pending total.
func (tx *Tx) AddValidatorPending(validator crypto.AccountID, amount *uint256.Int) (*uint256.Int, error) {
	return tx.addBalance(validatorPendingKey(validator), amount)
}

// NominatorPending returns the unclaimed reward of nominator behind validator.
func (tx *Tx) NominatorPending(validator, nominator crypto.AccountID) (*uint256.Int, error) {
	return tx.balance(nominatorPendingKey(validator, nominator))
}

// AddNominatorPending credits nominator under validator and records it in the
// validator's nominator index.
func (tx *Tx) AddNominatorPending(validator, nominator crypto.AccountID, amount *uint256.Int) (*uint256.Int, error) {
	total, err := tx.addBalance(nominatorPendingKey(validator, nominator), amount)
	if err != nil {
		return nil, err
	}
	if total.IsZero() {
		return total, nil
	}
	return total, tx.indexNominator(validator, nominator)
}

// Nominators returns the nominator index of validator in insertion order.
func (tx *Tx) Nominators(validator crypto.AccountID) ([]crypto.AccountID, error) {
	return tx.accounts(nominatorIndexKey(validator))
}

// SetNominators replaces the nominator index of validator.
func (tx *Tx) SetNominators(validator crypto.AccountID, nominators []crypto.AccountID) error {
	return tx.setAccounts(nominatorIndexKey(validator), nominators)
}

func (tx *Tx) indexNominator(validator, nominator crypto.AccountID) error {
	list, err := tx.Nominators(validator)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == nominator {
			return nil
		}
	}
	return tx.SetNominators(validator, append(list, nominator))
}

// LifetimeReceipts returns everything ever paid to account.
func (tx *Tx) LifetimeReceipts(account crypto.AccountID) (*uint256.Int, error) {
	return tx.balance(receiptsKey(account))
}

// AddLifetimeReceipts increments the receipts of account.
func (tx *Tx) AddLifetimeReceipts(account crypto.AccountID, amount *uint256.Int) (*uint256.Int, error) {
	return tx.addBalance(receiptsKey(account), amount)
}

// SubLifetimeReceipts reverses a receipt increment, stopping at zero.
func (tx *Tx) SubLifetimeReceipts(account crypto.AccountID, amount *uint256.Int) error {
	current, err := tx.balance(receiptsKey(account))
	if err != nil {
		return err
	}
	if amount == nil || current.Lt(amount) {
		return tx.setBalance(receiptsKey(account), nil)
	}
	return tx.setBalance(receiptsKey(account), current.Sub(current, amount))
}

// Queue returns the validators admitted for settlement.
func (tx *Tx) Queue() ([]crypto.AccountID, error) {
	return tx.accounts([]byte(ledgerQueueKey))
}

// Queued reports whether validator is in the claim queue.
func (tx *Tx) Queued(validator crypto.AccountID) (bool, error) {
	queue, err := tx.Queue()
	if err != nil {
		return false, err
	}
	for _, existing := range queue {
		if existing == validator {
			return true, nil
		}
	}
	return false, nil
}

// Enqueue appends validator to the claim queue. It returns ErrAlreadyQueued
// when the validator is present.
func (tx *Tx) Enqueue(validator crypto.AccountID) error {
	queue, err := tx.Queue()
	if err != nil {
		return err
	}
	for _, existing := range queue {
		if existing == validator {
			return ErrAlreadyQueued
		}
	}
	return tx.setAccounts([]byte(ledgerQueueKey), append(queue, validator))
}

// Dequeue removes validator from the claim queue if present.
func (tx *Tx) Dequeue(validator crypto.AccountID) error {
	queue, err := tx.Queue()
	if err != nil {
		return err
	}
	filtered := queue[:0]
	for _, existing := range queue {
		if existing != validator {
			filtered = append(filtered, existing)
		}
	}
	return tx.setAccounts([]byte(ledgerQueueKey), filtered)
}

// LastEra returns the most recently computed era.
func (tx *Tx) LastEra() (uint32, bool, error) {
	var era uint64
	ok, err := tx.getRLP([]byte(ledgerLastEraKey), &era)
	return uint32(era), ok, err
}

// EraSummary returns the stored summary for era.
func (tx *Tx) EraSummary(era uint32) (*EraSummary, bool, error) {
	var stored storedEraSummary
	ok, err := tx.getRLP(eraSummaryKey(era), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	summary := stored.summary()
	return &summary, true, nil
}

// PutEraSummary stores summary, advances the last computed era and prunes
// summaries older than history eras (0 keeps everything).
func (tx *Tx) PutEraSummary(summary EraSummary, history uint64) error {
	stored := storedEraSummary{
		Era:                uint64(summary.Era),
		TotalPoints:        uint64(summary.TotalPoints),
		Budget:             copyBalance(summary.Budget),
		ValidatorsCredited: copyBalance(summary.ValidatorsCredited),
		NominatorsCredited: copyBalance(summary.NominatorsCredited),
		Validators:         uint64(summary.Validators),
		ComputedAt:         summary.ComputedAt,
	}
	if err := tx.putRLP(eraSummaryKey(summary.Era), stored); err != nil {
		return err
	}
	if err := tx.putRLP([]byte(ledgerLastEraKey), uint64(summary.Era)); err != nil {
		return err
	}
	if history == 0 || uint64(summary.Era) < history {
		return nil
	}
	cutoff := string(eraSummaryKey(uint32(uint64(summary.Era) - history + 1)))
	var stale [][]byte
	err := tx.db.Iterate([]byte(eraSummaryPrefix), func(key, _ []byte) bool {
		if string(key) >= cutoff {
			return false
		}
		stale = append(stale, key)
		return true
	})
	if err != nil {
		return err
	}
	for _, key := range stale {
		tx.delete(key)
	}
	return nil
}

func (s storedEraSummary) summary() EraSummary {
	return EraSummary{
		Era:                uint32(s.Era),
		TotalPoints:        uint32(s.TotalPoints),
		Budget:             copyBalance(s.Budget),
		ValidatorsCredited: copyBalance(s.ValidatorsCredited),
		NominatorsCredited: copyBalance(s.NominatorsCredited),
		Validators:         uint32(s.Validators),
		ComputedAt:         s.ComputedAt,
	}
}
