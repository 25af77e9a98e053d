package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"calmledger/internal/core"
	"calmledger/internal/ledger"
	"calmledger/internal/log"
	"calmledger/internal/storage"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type failingSaver struct{ calls int }

func (f *failingSaver) Save(context.Context, ledger.State) error {
	f.calls++
	return errors.New("quota exceeded")
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func seededState() ledger.State {
	return ledger.State{
		Accounts:     []core.Account{{ID: "cash", Name: "Cash"}},
		Tags:         []core.Tag{},
		Transactions: []core.Transaction{},
		Recurrings:   []core.RecurringTemplate{},
	}
}

func newService(t *testing.T, opts ...Option) (*LedgerService, *storage.StateStore, *fixedClock) {
	t.Helper()
	clock := &fixedClock{now: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	store := storage.NewStateStore(storage.NewMemorySlot(), "", log.Discard())
	base := []Option{WithClock(clock.Now), WithLocation(time.UTC), WithIDFunc(sequence())}
	svc := NewLedgerService(seededState(), store, append(base, opts...)...)
	return svc, store, clock
}

func TestMutationsArePersisted(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t)

	tag, err := svc.AddTag(ctx, core.TagInput{Name: "Food", Color: "#112233"})
	require.NoError(t, err)
	_, err = svc.AddTransaction(ctx, core.TransactionInput{
		Kind: core.Expense, Amount: "12,345", AccountID: "cash", TagIDs: []string{tag.ID},
	})
	require.NoError(t, err)

	loaded, report := store.Load(ctx)
	require.False(t, report.Fallback())
	assert.Equal(t, svc.State(), loaded)
	require.Len(t, loaded.Transactions, 1)
	assert.Equal(t, int64(1235), loaded.Transactions[0].Amount.Cents)
	assert.Equal(t, "2024-03-15", loaded.Transactions[0].Date.String())
	assert.Equal(t, uint64(2), svc.Revision())
}

func TestFailedValidationChangesNothing(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{}
	svc, store, _ := newService(t, WithPublisher(pub))

	_, err := svc.AddTransaction(ctx, core.TransactionInput{Kind: core.Expense, Amount: "0.004", AccountID: "cash"})

	require.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, uint64(0), svc.Revision())
	_, report := store.Load(ctx)
	assert.True(t, report.Missing, "nothing should have been written")
	pub.AssertNotCalled(t, "PublishLedgerEvent", mock.Anything, mock.Anything)
}

func TestSaveFailureIsSwallowed(t *testing.T) {
	saver := &failingSaver{}
	svc := NewLedgerService(seededState(), saver, WithIDFunc(sequence()))

	acc, err := svc.AddAccount(context.Background(), core.AccountInput{Name: "Bank", Initial: "10"})

	require.NoError(t, err)
	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, int64(1000), svc.AccountBalance(acc.ID).Cents)
	assert.Len(t, svc.State().Accounts, 2)
}

func TestEventsArePublished(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{}
	svc, _, _ := newService(t, WithPublisher(pub))

	pub.On("PublishLedgerEvent", ctx, mock.MatchedBy(func(ev core.LedgerEvent) bool {
		return ev.Type == core.EventRecurringCreated && ev.Revision == 1
	})).Return(nil).Once()
	pub.On("PublishLedgerEvent", ctx, mock.MatchedBy(func(ev core.LedgerEvent) bool {
		return ev.Type == core.EventRecurringMaterialized && ev.Revision == 2
	})).Return(errors.New("broker down")).Once()

	tpl, err := svc.AddRecurring(ctx, core.RecurringInput{Name: "Rent", Kind: core.Expense, Amount: "700", AccountID: "cash"})
	require.NoError(t, err)
	_, err = svc.MaterializeToday(ctx, tpl.ID)
	require.NoError(t, err, "publish failures must not surface")

	pub.AssertExpectations(t)
}

func TestMaterializeTodayFollowsClock(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newService(t)

	tpl, err := svc.AddRecurring(ctx, core.RecurringInput{Name: "Gym", Kind: core.Expense, Amount: "30", AccountID: "cash"})
	require.NoError(t, err)

	first, err := svc.MaterializeToday(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "manual:2024-03-15", first.RecurringKey)
	assert.Equal(t, "Gym", first.Note)

	_, err = svc.MaterializeToday(ctx, tpl.ID)
	require.ErrorIs(t, err, core.ErrDuplicateRecurring)

	clock.Set(time.Date(2024, 3, 16, 0, 30, 0, 0, time.UTC))
	second, err := svc.MaterializeToday(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "manual:2024-03-16", second.RecurringKey)

	assert.Equal(t, int64(-6000), svc.AccountBalance("cash").Cents)
}

func TestTodayUsesConfiguredZone(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata not available")
	}
	svc, _, clock := newService(t, WithLocation(rome))
	clock.Set(time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC))

	assert.Equal(t, "2024-04-01", svc.Today().String())
	assert.Equal(t, 4, svc.Dashboard(core.Date{}).Month)
}

func TestSnapshotLimitsTransactions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	for i := 1; i <= 5; i++ {
		_, err := svc.AddTransaction(ctx, core.TransactionInput{
			Kind: core.Income, Amount: "1", AccountID: "cash", Date: fmt.Sprintf("2024-03-0%d", i),
		})
		require.NoError(t, err)
	}

	snap := svc.Snapshot(3)

	require.Len(t, snap.Transactions, 3)
	assert.Equal(t, "2024-03-05", snap.Transactions[0].Date.String())
	assert.Equal(t, int64(500), snap.TotalBalance.Cents)
	require.Len(t, snap.Accounts, 1)
	assert.Equal(t, int64(500), snap.Accounts[0].Balance.Cents)
	assert.Equal(t, uint64(5), snap.Revision)
}

func TestDeleteOperations(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	acc, err := svc.AddAccount(ctx, core.AccountInput{Name: "Card"})
	require.NoError(t, err)
	tx, err := svc.AddTransaction(ctx, core.TransactionInput{Kind: core.Expense, Amount: "5", AccountID: acc.ID})
	require.NoError(t, err)
	_, err = svc.AddRecurring(ctx, core.RecurringInput{Name: "Netflix", Kind: core.Expense, Amount: "9.99", AccountID: acc.ID})
	require.NoError(t, err)

	refs, err := svc.AccountReferences(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.Cascade{Transactions: 1, Recurrings: 1}, refs)

	_, err = svc.AccountReferences("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.ErrorIs(t, svc.DeleteTransaction(ctx, "missing"), core.ErrNotFound)
	require.NoError(t, svc.DeleteTransaction(ctx, tx.ID))

	removed, err := svc.DeleteAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.Cascade{Recurrings: 1}, removed)
	assert.Empty(t, svc.State().Recurrings)
}

func TestConcurrentMutationsAreSerialised(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(seededState(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddTransaction(ctx, core.TransactionInput{Kind: core.Income, Amount: "1", AccountID: "cash"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), svc.Revision())
	assert.Equal(t, int64(5000), svc.TotalBalance().Cents)
}
