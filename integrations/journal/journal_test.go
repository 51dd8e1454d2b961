package journal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"firechain/core/events"
	"firechain/crypto"
)

func setupJournalDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	return db
}

func testAccount(b byte) crypto.AccountID {
	var id crypto.AccountID
	id[crypto.AccountIDLength-1] = b
	return id
}

func TestSinkPersistsEventsInOrder(t *testing.T) {
	db := setupJournalDB(t)
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	sink, err := New(db, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	validator, nominator := testAccount(1), testAccount(2)
	sink.Emit(events.RewardEraComputed{Era: 4, Budget: uint256.NewInt(76), Credited: uint256.NewInt(75), Validators: 1})
	sink.Emit(events.RewardQueued{Validator: validator})
	sink.Emit(events.RewardDistributed{Recipient: validator, Amount: uint256.NewInt(40)})
	sink.Emit(events.RewardDistributed{Recipient: nominator, Amount: uint256.NewInt(15)})
	sink.Emit(events.RewardInsufficientBalance{Recipient: nominator})

	all, err := sink.Entries(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, entry := range all {
		require.Equal(t, uint64(i+1), entry.Seq)
		require.True(t, entry.CreatedAt.Equal(fixed))
	}
	require.Equal(t, events.TypeRewardEraComputed, all[0].Type)
	require.NotNil(t, all[0].Era)
	require.Equal(t, uint32(4), *all[0].Era)
	require.Equal(t, validator.String(), all[1].Subject)
	require.Nil(t, all[1].Era)

	paid, err := sink.Entries(context.Background(), events.TypeRewardDistributed, 1)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	require.Equal(t, "40", paid[0].Amount)
}

func TestSinkPaidTo(t *testing.T) {
	sink, err := New(setupJournalDB(t))
	require.NoError(t, err)
	recipient := testAccount(7)
	for _, amount := range []uint64{10, 25, 5} {
		sink.Emit(events.RewardDistributed{Recipient: recipient, Amount: uint256.NewInt(amount)})
	}
	sink.Emit(events.RewardDistributed{Recipient: testAccount(8), Amount: uint256.NewInt(99)})

	total, err := sink.PaidTo(context.Background(), recipient.String())
	require.NoError(t, err)
	require.Equal(t, uint64(40), total.Uint64())

	none, err := sink.PaidTo(context.Background(), testAccount(9).String())
	require.NoError(t, err)
	require.True(t, none.IsZero())
}

func TestSinkResumesSequence(t *testing.T) {
	db := setupJournalDB(t)
	first, err := New(db)
	require.NoError(t, err)
	first.Emit(events.RewardQueued{Validator: testAccount(1)})
	first.Emit(events.RewardQueued{Validator: testAccount(2)})

	second, err := New(db)
	require.NoError(t, err)
	second.Emit(events.RewardQueued{Validator: testAccount(3)})

	entries, err := second.Entries(context.Background(), events.TypeRewardQueued, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(3), entries[2].Seq)
	require.Equal(t, testAccount(3).String(), entries[2].Subject)
}

func TestSinkLogsWriteFailures(t *testing.T) {
	db := setupJournalDB(t)
	var buf bytes.Buffer
	sink, err := New(db, WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	require.NoError(t, err)
	require.NoError(t, db.Migrator().DropTable(&Entry{}))

	sink.Emit(events.RewardQueued{Validator: testAccount(1)})
	require.Contains(t, buf.String(), "journal write failed")
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "root@/rewards")
	require.ErrorContains(t, err, "unsupported driver")
}
