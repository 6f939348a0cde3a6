package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincoach/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMergePreservesLedger(t *testing.T) {
	persisted := &Payload{
		AccountID: "acc-1",
		Status:    "active",
		Transactions: []SourceTransaction{
			{ID: "t1", Type: TxnTypeCredit, Amount: dec("500")},
		},
		AllocatedTransactionIDs: NewStringSet("t1"),
	}
	fresh := &Payload{
		Transactions: []SourceTransaction{
			{ID: "t1", Type: TxnTypeCredit, Amount: dec("500")},
			{ID: "t2", Type: TxnTypeCredit, Amount: dec("900")},
		},
		AllocatedTransactionIDs: NewStringSet("t0"),
	}

	merged := Merge(persisted, fresh)
	require.NotNil(t, merged)

	// fresh replaces the transaction list wholesale
	assert.Len(t, merged.Transactions, 2)
	// ledger is the union of both sides
	assert.True(t, merged.AllocatedTransactionIDs.Contains("t0"))
	assert.True(t, merged.AllocatedTransactionIDs.Contains("t1"))
	assert.Equal(t, "acc-1", merged.AccountID)
}

func TestMergeAdoptsIdentityOnlyWhenAbsent(t *testing.T) {
	bal := dec("1200")
	persisted := &Payload{AllocatedTransactionIDs: NewStringSet()}
	fresh := &Payload{AccountID: "acc-9", Status: "active", Balance: &bal}

	merged := Merge(persisted, fresh)
	assert.Equal(t, "acc-9", merged.AccountID)
	assert.Equal(t, "active", merged.Status)
	require.NotNil(t, merged.Balance)
	assert.True(t, merged.Balance.Equal(bal))

	// once set, identity fields stick
	newBal := dec("99")
	again := Merge(merged, &Payload{AccountID: "other", Status: "frozen", Balance: &newBal})
	assert.Equal(t, "acc-9", again.AccountID)
	assert.Equal(t, "active", again.Status)
	assert.True(t, again.Balance.Equal(bal))
}

func TestMergeNilSides(t *testing.T) {
	fresh := &Payload{Transactions: []SourceTransaction{{ID: "t1"}}}
	merged := Merge(nil, fresh)
	require.NotNil(t, merged)
	assert.NotNil(t, merged.AllocatedTransactionIDs)

	persisted := &Payload{AllocatedTransactionIDs: NewStringSet("t1")}
	assert.Same(t, persisted, Merge(persisted, nil))
}

func TestStringSetJSONRoundTrip(t *testing.T) {
	s := NewStringSet("b", "a", "c")
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	// stored form is a sorted plain array
	assert.JSONEq(t, `["a","b","c"]`, string(raw))

	var back StringSet
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Contains("b"))
	assert.False(t, back.Contains("z"))
}

func TestFlexTimeZoneHandling(t *testing.T) {
	var tx SourceTransaction
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","timestamp":"2026-08-20T10:30:00"}`), &tx))
	assert.Equal(t, shared.IST, tx.Timestamp.Location())
	assert.Equal(t, 10, tx.Timestamp.Hour())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"t2","timestamp":"2026-08-20T10:30:00Z"}`), &tx))
	assert.Equal(t, time.UTC, tx.Timestamp.Location())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"t3","timestamp":"2026-08-20"}`), &tx))
	assert.Equal(t, 0, tx.Timestamp.Hour())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"t4","timestamp":"not a date"}`), &tx))
	assert.True(t, tx.Timestamp.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"t5"}`), &tx))
	assert.True(t, tx.Timestamp.IsZero())
}

func TestLiftedTransactionsPromotesEntries(t *testing.T) {
	p := &Payload{
		Transactions: []SourceTransaction{{ID: "t1", Type: TxnTypeCredit, Amount: dec("100")}},
		Entries: []SourceEntry{
			{Date: "2026-08-20", Description: "Daily Earnings", Amount: dec("850"), Type: TxnTypeCredit},
			{Date: "bad-date", Description: "dropped", Amount: dec("10"), Type: TxnTypeDebit},
		},
	}

	lifted := p.LiftedTransactions()
	require.Len(t, lifted, 2)
	entry := lifted[1]
	assert.Equal(t, "entry_2026-08-20_daily_earnings_850", entry.ID)
	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, shared.IST), entry.Timestamp.Time)
	assert.True(t, entry.IsCredit())
}

func TestLiftedTransactionsKeepProviderEntryID(t *testing.T) {
	p := &Payload{
		Entries: []SourceEntry{
			{ID: "entry_recent_001", Date: "2026-08-30", Description: "Scheduled Payout", Amount: dec("1240"), Type: TxnTypeCredit},
		},
	}

	lifted := p.LiftedTransactions()
	require.Len(t, lifted, 1)
	assert.Equal(t, "entry_recent_001", lifted[0].ID)
}

func TestLiftedTransactionsEntryIDsSurviveReordering(t *testing.T) {
	payout := SourceEntry{ID: "entry_recent_001", Date: "2026-08-30", Description: "Scheduled Payout", Amount: dec("1240"), Type: TxnTypeCredit}
	cash := SourceEntry{Date: "2026-08-29", Description: "Daily Earnings", Amount: dec("850"), Type: TxnTypeCredit}

	p := &Payload{
		Entries:                 []SourceEntry{payout, cash},
		AllocatedTransactionIDs: NewStringSet(),
	}
	first := p.LiftedTransactions()
	require.Len(t, first, 2)
	p.AllocatedTransactionIDs.Add(first[0].ID, first[1].ID)

	// the provider prepends a new entry, shifting every position
	extra := SourceEntry{ID: "entry_recent_002", Date: "2026-08-31", Description: "Ride Bonus", Amount: dec("300"), Type: TxnTypeCredit}
	p.Entries = []SourceEntry{extra, payout, cash}

	for _, txn := range p.LiftedTransactions()[1:] {
		assert.True(t, p.AllocatedTransactionIDs.Contains(txn.ID),
			"shifted entry %s must keep its allocated id", txn.ID)
	}
	assert.False(t, p.AllocatedTransactionIDs.Contains("entry_recent_002"))
}
