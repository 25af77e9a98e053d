// Package ledger holds the in-memory ledger: accounts, tags, transactions and
// recurring templates, plus every computation derived from them.
//
// A Ledger is not safe for concurrent use; services.LedgerService serialises
// access. Every mutation validates its input before touching any collection,
// so a failed call leaves the ledger unchanged.
package ledger

import (
	"sort"

	"calmledger/internal/core"
)

// State is the persisted shape of the ledger: four arrays, nothing else.
type State struct {
	Accounts     []core.Account           `json:"accounts"`
	Tags         []core.Tag               `json:"tags"`
	Transactions []core.Transaction       `json:"transactions"`
	Recurrings   []core.RecurringTemplate `json:"recurrings"`
}

// Clone returns a deep copy so callers can never alias ledger internals.
func (s State) Clone() State {
	out := State{
		Accounts:     append(make([]core.Account, 0, len(s.Accounts)), s.Accounts...),
		Tags:         append(make([]core.Tag, 0, len(s.Tags)), s.Tags...),
		Transactions: make([]core.Transaction, len(s.Transactions)),
		Recurrings:   make([]core.RecurringTemplate, len(s.Recurrings)),
	}
	for i, tx := range s.Transactions {
		tx.TagIDs = cloneIDs(tx.TagIDs)
		out.Transactions[i] = tx
	}
	for i, r := range s.Recurrings {
		r.TagIDs = cloneIDs(r.TagIDs)
		out.Recurrings[i] = r
	}
	return out
}

type Ledger struct {
	state State
	newID func() string
}

type Option func(*Ledger)

// WithIDFunc replaces the identifier generator.
func WithIDFunc(fn func() string) Option {
	return func(l *Ledger) {
		l.newID = fn
	}
}

// New builds a ledger from a loaded state. The state is copied and the
// transactions are put in display order.
func New(s State, opts ...Option) *Ledger {
	l := &Ledger{
		state: s.Clone(),
		newID: core.NewID,
	}
	for _, opt := range opts {
		opt(l)
	}
	sortTransactions(l.state.Transactions)
	return l
}

// State returns a copy of the four collections.
func (l *Ledger) State() State {
	return l.state.Clone()
}

// Accounts returns a copy of the accounts in insertion order.
func (l *Ledger) Accounts() []core.Account {
	return append([]core.Account(nil), l.state.Accounts...)
}

// Tags returns a copy of the tags in insertion order.
func (l *Ledger) Tags() []core.Tag {
	return append([]core.Tag(nil), l.state.Tags...)
}

// Recurrings returns a copy of the recurring templates.
func (l *Ledger) Recurrings() []core.RecurringTemplate {
	return l.State().Recurrings
}

// Transactions returns the newest transactions first. limit <= 0 means all.
func (l *Ledger) Transactions(limit int) []core.Transaction {
	all := l.State().Transactions
	if limit > 0 && len(all) > limit {
		return all[:limit]
	}
	return all
}

func (l *Ledger) Account(id string) (core.Account, bool) {
	i := l.accountIndex(id)
	if i < 0 {
		return core.Account{}, false
	}
	return l.state.Accounts[i], true
}

func (l *Ledger) accountIndex(id string) int {
	for i, a := range l.state.Accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) tagIndex(id string) int {
	for i, t := range l.state.Tags {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) transactionIndex(id string) int {
	for i, tx := range l.state.Transactions {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) recurringIndex(id string) int {
	for i, r := range l.state.Recurrings {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// sortTransactions orders by date descending, then creation time descending.
func sortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		return a.CreatedAt > b.CreatedAt
	})
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return append(make([]string, 0, len(ids)), ids...)
}
