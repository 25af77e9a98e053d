package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmledger/internal/core"
	"calmledger/internal/ledger"
	"calmledger/internal/log"
)

func slotBackends(t *testing.T) map[string]Slot {
	t.Helper()
	dir := t.TempDir()

	fileSlot, err := NewFileSlot(filepath.Join(dir, "state"))
	require.NoError(t, err)
	sqliteSlot, err := NewSQLiteSlot(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteSlot.Close() })

	return map[string]Slot{
		"memory": NewMemorySlot(),
		"file":   fileSlot,
		"sqlite": sqliteSlot,
	}
}

func sampleState() ledger.State {
	return ledger.State{
		Accounts: []core.Account{
			{ID: "a1", Name: "Cash", Initial: core.Cents(0)},
			{ID: "a2", Name: "Bank", Initial: core.Cents(-1250)},
		},
		Tags: []core.Tag{{ID: "t1", Name: "Food", Color: "#aabbcc"}},
		Transactions: []core.Transaction{
			{
				ID: "x2", Kind: core.Expense, Amount: core.Cents(1234), Date: core.NewDate(2024, 3, 2),
				AccountID: "a1", TagIDs: []string{"t1"}, Note: "lunch", CreatedAt: 2,
				RecurringID: "r1", RecurringKey: "manual:2024-03-02",
			},
			{
				ID: "x1", Kind: core.Income, Amount: core.Cents(100000), Date: core.NewDate(2024, 3, 1),
				AccountID: "a2", TagIDs: []string{}, CreatedAt: 1,
			},
		},
		Recurrings: []core.RecurringTemplate{
			{ID: "r1", Name: "Rent", Kind: core.Expense, Amount: core.Cents(70000), AccountID: "a2", TagIDs: []string{}, Active: false},
		},
	}
}

func TestStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, slot := range slotBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStateStore(slot, "", log.Discard())
			want := sampleState()

			require.NoError(t, store.Save(ctx, want))
			got, report := store.Load(ctx)

			assert.False(t, report.Fallback())
			assert.False(t, report.Missing)
			assert.Equal(t, want, got)
		})
	}
}

func TestStateStoreOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, slot := range slotBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStateStore(slot, "k", log.Discard())
			require.NoError(t, store.Save(ctx, sampleState()))

			next := sampleState()
			next.Tags = []core.Tag{}
			require.NoError(t, store.Save(ctx, next))

			got, _ := store.Load(ctx)
			assert.Empty(t, got.Tags)
			assert.Len(t, got.Accounts, 2)
		})
	}
}

func TestLoadMissingSlot(t *testing.T) {
	store := NewStateStore(NewMemorySlot(), "", log.Discard())

	st, report := store.Load(context.Background())

	assert.True(t, report.Missing)
	assert.False(t, report.Fallback())
	assert.NotNil(t, st.Accounts)
	assert.Empty(t, st.Accounts)
	assert.Empty(t, st.Transactions)
}

func TestLoadCorruptValue(t *testing.T) {
	for _, value := range []string{"{not json", `[1,2,3]`, `"text"`, "null"} {
		t.Run(value, func(t *testing.T) {
			slot := NewMemorySlot()
			require.NoError(t, slot.Put(context.Background(), DefaultKey, []byte(value)))
			store := NewStateStore(slot, "", log.Discard())

			st, report := store.Load(context.Background())

			assert.Error(t, report.Corrupt)
			assert.True(t, report.Fallback())
			assert.Empty(t, st.Accounts)
			assert.Empty(t, st.Tags)
			assert.Empty(t, st.Transactions)
			assert.Empty(t, st.Recurrings)
		})
	}
}

func TestLoadFallsBackPerField(t *testing.T) {
	doc := `{
		"accounts": [{"id":"a1","name":"Cash","initial":5}],
		"tags": "oops",
		"transactions": [{"id":"x1","type":"expense","amount":"1.50","date":"2024-01-02","accountId":"a1","createdAt":3}],
		"recurrings": {"id":"r1"}
	}`
	slot := NewMemorySlot()
	require.NoError(t, slot.Put(context.Background(), DefaultKey, []byte(doc)))
	store := NewStateStore(slot, "", log.Discard())

	st, report := store.Load(context.Background())

	assert.ElementsMatch(t, []string{"tags", "recurrings"}, report.InvalidFields)
	require.Len(t, st.Accounts, 1)
	assert.Equal(t, int64(500), st.Accounts[0].Initial.Cents)
	assert.Empty(t, st.Tags)
	assert.Empty(t, st.Recurrings)
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, int64(150), st.Transactions[0].Amount.Cents)
	assert.Equal(t, []string{}, st.Transactions[0].TagIDs)
}

func TestLoadSkipsOnlyMalformedRecords(t *testing.T) {
	doc := `{
		"accounts": [{"id":"a1","name":"Cash","initial":"abc"}, {"id":"a2","name":"Bank","initial":"12.5"}, null],
		"tags": [{"id":"t1","name":"Food","color":"#aabbcc"}, 7],
		"transactions": [
			{"id":"x1","type":"income","amount":"5","date":"2024-03-01","accountId":"a2","tagIds":["t1","gone"],"createdAt":1},
			{"id":"x2","type":"gift","amount":"5","date":"2024-03-01","accountId":"a2","createdAt":2},
			{"id":"x3","type":"income","amount":"5","date":"01/03/2024","accountId":"a2","createdAt":3}
		],
		"recurrings": []
	}`
	slot := NewMemorySlot()
	require.NoError(t, slot.Put(context.Background(), DefaultKey, []byte(doc)))
	store := NewStateStore(slot, "", log.Discard())

	st, report := store.Load(context.Background())

	assert.Empty(t, report.InvalidFields)
	assert.Equal(t, map[string]int{"accounts": 2, "tags": 1, "transactions": 2}, report.Skipped)
	assert.True(t, report.Fallback())
	require.Len(t, st.Accounts, 1)
	assert.Equal(t, "a2", st.Accounts[0].ID)
	require.Len(t, st.Tags, 1)
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, []string{"t1"}, st.Transactions[0].TagIDs)
}

func TestLoadDropsRecordsOfMissingAccounts(t *testing.T) {
	doc := `{
		"accounts": [{"id":"a1","name":"Cash","initial":0}, {"id":"a2","name":"Bank","initial":"oops"}],
		"tags": [],
		"transactions": [
			{"id":"x1","type":"income","amount":"5","date":"2024-03-01","accountId":"a1","createdAt":1},
			{"id":"x2","type":"expense","amount":"3","date":"2024-03-02","accountId":"a2","createdAt":2}
		],
		"recurrings": [{"id":"r1","name":"Rent","type":"expense","amount":"700","accountId":"a2","tagIds":[],"active":true}]
	}`
	slot := NewMemorySlot()
	require.NoError(t, slot.Put(context.Background(), DefaultKey, []byte(doc)))
	store := NewStateStore(slot, "", log.Discard())

	st, report := store.Bootstrap(context.Background(), nil)

	assert.False(t, report.Seeded)
	assert.Equal(t, 2, report.Orphans)
	assert.Equal(t, map[string]int{"accounts": 1}, report.Skipped)
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, "x1", st.Transactions[0].ID)
	assert.Empty(t, st.Recurrings)

	l := ledger.New(st)
	assert.Equal(t, int64(500), l.TotalBalance().Cents)
}

func TestBootstrapNeverPersistsOrphans(t *testing.T) {
	ctx := context.Background()
	doc := `{
		"accounts": [{"id":"a1","name":"Cash","initial":"oops"}],
		"transactions": [{"id":"x1","type":"income","amount":"5","date":"2024-03-01","accountId":"a1","createdAt":1}],
		"recurrings": [{"id":"r1","name":"Rent","type":"expense","amount":"700","accountId":"a1","active":true}]
	}`
	slot := NewMemorySlot()
	require.NoError(t, slot.Put(ctx, DefaultKey, []byte(doc)))
	store := NewStateStore(slot, "", log.Discard())

	st, report := store.Bootstrap(ctx, func() string { return "seed" })
	require.True(t, report.Seeded)
	assert.Equal(t, 2, report.Orphans)
	assert.Empty(t, st.Transactions)
	assert.Empty(t, st.Recurrings)

	again, report := store.Load(ctx)
	assert.False(t, report.Fallback())
	assert.Equal(t, []core.Account{{ID: "seed", Name: SeedAccountName}}, again.Accounts)
	assert.Empty(t, again.Transactions)
	assert.Empty(t, again.Recurrings)
}

type failingSlot struct{ MemorySlot }

func (failingSlot) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk gone")
}

func (failingSlot) Put(context.Context, string, []byte) error {
	return errors.New("disk gone")
}

func TestLoadReadError(t *testing.T) {
	store := NewStateStore(&failingSlot{}, "", log.Discard())

	st, report := store.Load(context.Background())

	assert.Error(t, report.ReadErr)
	assert.Empty(t, st.Accounts)
}

func TestBootstrapSeedsOnce(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	store := NewStateStore(slot, "", log.Discard())
	ids := 0
	newID := func() string {
		ids++
		return "seed-" + string(rune('0'+ids))
	}

	first, report := store.Bootstrap(ctx, newID)
	require.True(t, report.Seeded)
	require.Len(t, first.Accounts, 1)
	assert.Equal(t, SeedAccountName, first.Accounts[0].Name)
	assert.Equal(t, int64(0), first.Accounts[0].Initial.Cents)

	second, report := store.Bootstrap(ctx, newID)
	assert.False(t, report.Seeded)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, ids)
}

func TestBootstrapKeepsExistingAccounts(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore(NewMemorySlot(), "", log.Discard())
	require.NoError(t, store.Save(ctx, sampleState()))

	st, report := store.Bootstrap(ctx, nil)

	assert.False(t, report.Seeded)
	assert.Len(t, st.Accounts, 2)
}

func TestBootstrapSurvivesSaveFailure(t *testing.T) {
	store := NewStateStore(&failingSlot{}, "", log.Discard())

	st, report := store.Bootstrap(context.Background(), nil)

	assert.True(t, report.Seeded)
	assert.Len(t, st.Accounts, 1)
}

func TestFileNameSanitisesKey(t *testing.T) {
	assert.Equal(t, "calm-expenses_mobile-first.json", fileName(DefaultKey))
	assert.Equal(t, "a_b_c.json", fileName("a/b c"))
}

func TestSQLiteSlotReopenKeepsSchemaAndData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	first, err := NewSQLiteSlot(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.SchemaVersion())
	require.NoError(t, first.Put(ctx, "k", []byte(`{"accounts":[]}`)))
	require.NoError(t, first.Close())

	second, err := NewSQLiteSlot(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })
	assert.Equal(t, uint(1), second.SchemaVersion())
	require.NoError(t, second.Ping(ctx))

	raw, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"accounts":[]}`, string(raw))
}
