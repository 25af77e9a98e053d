// Package services coordinates the ledger with persistence and event
// publishing.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"calmledger/internal/core"
	"calmledger/internal/ledger"
	"calmledger/internal/log"
)

// StateSaver persists the full ledger state.
type StateSaver interface {
	Save(ctx context.Context, st ledger.State) error
}

// EventPublisher announces applied mutations. Publishing is best effort.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

// LedgerService owns the ledger. Every call runs under one mutex, so each
// mutation validates, applies and persists before the next one starts.
type LedgerService struct {
	mu       sync.Mutex
	ledger   *ledger.Ledger
	store    StateSaver
	events   EventPublisher
	clock    func() time.Time
	loc      *time.Location
	revision uint64

	logger *log.Logger
	audit  *log.StructuredLogger
	idFunc func() string
}

type Option func(*LedgerService)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *LedgerService) { s.clock = clock }
}

// WithLocation sets the time zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.events = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDFunc replaces the identifier generator.
func WithIDFunc(fn func() string) Option {
	return func(s *LedgerService) { s.idFunc = fn }
}

// NewLedgerService wraps an already loaded state. store may be nil, in
// which case nothing is persisted.
func NewLedgerService(initial ledger.State, store StateSaver, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		clock:  time.Now,
		loc:    time.Local,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.audit = log.NewStructuredLogger(s.logger)

	var ledgerOpts []ledger.Option
	if s.idFunc != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithIDFunc(s.idFunc))
	}
	s.ledger = ledger.New(initial, ledgerOpts...)
	return s
}

// Snapshot is a consistent read of the whole ledger.
type Snapshot struct {
	Revision     uint64                   `json:"revision"`
	Today        core.Date                `json:"today"`
	Accounts     []core.AccountBalance    `json:"accounts"`
	Tags         []core.Tag               `json:"tags"`
	Transactions []core.Transaction       `json:"transactions"`
	Recurrings   []core.RecurringTemplate `json:"recurrings"`
	TotalBalance core.Money               `json:"totalBalance"`
}

// Snapshot returns copies of every collection. limit caps the number of
// transactions, newest first; limit <= 0 returns them all.
func (s *LedgerService) Snapshot(limit int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Revision:     s.revision,
		Today:        s.today(),
		Accounts:     s.ledger.Balances(),
		Tags:         s.ledger.Tags(),
		Transactions: s.ledger.Transactions(limit),
		Recurrings:   s.ledger.Recurrings(),
		TotalBalance: s.ledger.TotalBalance(),
	}
}

// State returns a copy of the persisted shape.
func (s *LedgerService) State() ledger.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.State()
}

// Revision counts applied mutations since start-up.
func (s *LedgerService) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Today is the current calendar date in the service's time zone.
func (s *LedgerService) Today() core.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.today()
}

func (s *LedgerService) AccountBalance(id string) core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.AccountBalance(id)
}

func (s *LedgerService) TotalBalance() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.TotalBalance()
}

func (s *LedgerService) MonthTotals(ref core.Date) core.MonthTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.MonthTotals(ref)
}

// Dashboard computes the statistics panel for ref's month. A zero ref
// means today.
func (s *LedgerService) Dashboard(ref core.Date) core.Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.IsZero() {
		ref = s.today()
	}
	return s.ledger.Dashboard(ref)
}

// DashboardAt is Dashboard plus the revision it was computed at.
func (s *LedgerService) DashboardAt(ref core.Date) (core.Dashboard, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.IsZero() {
		ref = s.today()
	}
	return s.ledger.Dashboard(ref), s.revision
}

// AccountReferences reports what DeleteAccount would remove. An unknown
// account is core.ErrNotFound.
func (s *LedgerService) AccountReferences(id string) (ledger.Cascade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledger.Account(id); !ok {
		return ledger.Cascade{}, fmt.Errorf("account %q: %w", id, core.ErrNotFound)
	}
	return s.ledger.AccountReferences(id), nil
}

func (s *LedgerService) AddAccount(ctx context.Context, in core.AccountInput) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.ledger.AddAccount(in)
	if err != nil {
		return core.Account{}, err
	}
	s.commit(ctx, core.EventAccountCreated, acc.ID)
	return acc, nil
}

func (s *LedgerService) UpdateAccount(ctx context.Context, id string, in core.AccountInput) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.ledger.UpdateAccount(id, in)
	if err != nil {
		return core.Account{}, err
	}
	s.commit(ctx, core.EventAccountUpdated, acc.ID)
	return acc, nil
}

// DeleteAccount removes the account with its transactions and templates.
func (s *LedgerService) DeleteAccount(ctx context.Context, id string) (ledger.Cascade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.ledger.DeleteAccount(id)
	if err != nil {
		return ledger.Cascade{}, err
	}
	s.commit(ctx, core.EventAccountDeleted, id)
	return removed, nil
}

func (s *LedgerService) AddTag(ctx context.Context, in core.TagInput) (core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag, err := s.ledger.AddTag(in)
	if err != nil {
		return core.Tag{}, err
	}
	s.commit(ctx, core.EventTagCreated, tag.ID)
	return tag, nil
}

func (s *LedgerService) UpdateTag(ctx context.Context, id string, in core.TagInput) (core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag, err := s.ledger.UpdateTag(id, in)
	if err != nil {
		return core.Tag{}, err
	}
	s.commit(ctx, core.EventTagUpdated, tag.ID)
	return tag, nil
}

func (s *LedgerService) DeleteTag(ctx context.Context, id string) (ledger.Cascade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stripped, err := s.ledger.DeleteTag(id)
	if err != nil {
		return ledger.Cascade{}, err
	}
	s.commit(ctx, core.EventTagDeleted, id)
	return stripped, nil
}

// AddTransaction records a transaction; an empty date means today.
func (s *LedgerService) AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.ledger.AddTransaction(in, s.today(), s.clock().UnixMilli())
	if err != nil {
		return core.Transaction{}, err
	}
	s.commit(ctx, core.EventTransactionCreated, tx.ID)
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.DeleteTransaction(id); err != nil {
		return err
	}
	s.commit(ctx, core.EventTransactionDeleted, id)
	return nil
}

func (s *LedgerService) AddRecurring(ctx context.Context, in core.RecurringInput) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, err := s.ledger.AddRecurring(in)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	s.commit(ctx, core.EventRecurringCreated, tpl.ID)
	return tpl, nil
}

// ToggleRecurring flips the template's active flag.
func (s *LedgerService) ToggleRecurring(ctx context.Context, id string) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, err := s.ledger.ToggleRecurring(id)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	s.commit(ctx, core.EventRecurringToggled, tpl.ID)
	return tpl, nil
}

// DeleteRecurring removes the template; transactions it produced stay.
func (s *LedgerService) DeleteRecurring(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.DeleteRecurring(id); err != nil {
		return err
	}
	s.commit(ctx, core.EventRecurringDeleted, id)
	return nil
}

// MaterializeToday turns the template into today's transaction, at most
// once per template and day.
func (s *LedgerService) MaterializeToday(ctx context.Context, templateID string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.ledger.MaterializeToday(templateID, s.today(), s.clock().UnixMilli())
	if err != nil {
		return core.Transaction{}, err
	}
	s.commit(ctx, core.EventRecurringMaterialized, tx.ID)
	return tx, nil
}

func (s *LedgerService) today() core.Date {
	return core.DateOf(s.clock().In(s.loc))
}

// commit persists the state and announces the change. Callers hold s.mu.
// Neither a failed save nor a failed publish undoes the mutation.
func (s *LedgerService) commit(ctx context.Context, evType core.EventType, entityID string) {
	if s.store != nil {
		if err := s.store.Save(ctx, s.ledger.State()); err != nil {
			s.audit.LogError(ctx, "Failed to persist ledger", err, log.ComponentStorage, log.OpSave,
				log.NewFields().WithEntity(evType.Entity(), entityID))
		}
	}
	s.revision++
	s.audit.LogMutation(ctx, evType.Verb(), evType.Entity(), entityID, s.revision)

	if s.events == nil {
		return
	}
	ev := core.LedgerEvent{
		Type:     evType,
		EntityID: entityID,
		Revision: s.revision,
		At:       s.clock().UTC(),
	}
	if err := s.events.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, string(evType), log.FieldEntityID, entityID, log.FieldError, err.Error())
	}
}
