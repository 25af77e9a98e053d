package ledger

import (
	"calmledger/internal/core"
)

// Cascade reports how many dependent records a delete removed or touched.
type Cascade struct {
	Transactions int `json:"transactions"`
	Recurrings   int `json:"recurrings"`
}

func notFound(kind, id string) error {
	return &notFoundError{kind: kind, id: id}
}

type notFoundError struct {
	kind, id string
}

func (e *notFoundError) Error() string {
	return e.kind + " " + e.id + " not found"
}

func (e *notFoundError) Unwrap() error {
	return core.ErrNotFound
}

func (l *Ledger) AddAccount(in core.AccountInput) (core.Account, error) {
	acc, err := in.Account()
	if err != nil {
		return core.Account{}, err
	}
	acc.ID = l.newID()
	l.state.Accounts = append(l.state.Accounts, acc)
	return acc, nil
}

// UpdateAccount renames an account and replaces its initial balance.
func (l *Ledger) UpdateAccount(id string, in core.AccountInput) (core.Account, error) {
	i := l.accountIndex(id)
	if i < 0 {
		return core.Account{}, notFound("account", id)
	}
	upd, err := in.Account()
	if err != nil {
		return core.Account{}, err
	}
	l.state.Accounts[i].Name = upd.Name
	l.state.Accounts[i].Initial = upd.Initial
	return l.state.Accounts[i], nil
}

// AccountReferences counts the transactions and templates that point at an
// account, i.e. what DeleteAccount would remove.
func (l *Ledger) AccountReferences(id string) Cascade {
	var c Cascade
	for _, tx := range l.state.Transactions {
		if tx.AccountID == id {
			c.Transactions++
		}
	}
	for _, r := range l.state.Recurrings {
		if r.AccountID == id {
			c.Recurrings++
		}
	}
	return c
}

// DeleteAccount removes the account and every transaction and recurring
// template that references it.
func (l *Ledger) DeleteAccount(id string) (Cascade, error) {
	i := l.accountIndex(id)
	if i < 0 {
		return Cascade{}, notFound("account", id)
	}
	c := l.AccountReferences(id)

	txs := l.state.Transactions[:0]
	for _, tx := range l.state.Transactions {
		if tx.AccountID != id {
			txs = append(txs, tx)
		}
	}
	l.state.Transactions = txs

	recs := l.state.Recurrings[:0]
	for _, r := range l.state.Recurrings {
		if r.AccountID != id {
			recs = append(recs, r)
		}
	}
	l.state.Recurrings = recs

	l.state.Accounts = append(l.state.Accounts[:i], l.state.Accounts[i+1:]...)
	return c, nil
}

func (l *Ledger) AddTag(in core.TagInput) (core.Tag, error) {
	tag, err := in.Tag()
	if err != nil {
		return core.Tag{}, err
	}
	tag.ID = l.newID()
	l.state.Tags = append(l.state.Tags, tag)
	return tag, nil
}

func (l *Ledger) UpdateTag(id string, in core.TagInput) (core.Tag, error) {
	i := l.tagIndex(id)
	if i < 0 {
		return core.Tag{}, notFound("tag", id)
	}
	upd, err := in.Tag()
	if err != nil {
		return core.Tag{}, err
	}
	l.state.Tags[i].Name = upd.Name
	l.state.Tags[i].Color = upd.Color
	return l.state.Tags[i], nil
}

// DeleteTag removes the tag and strips its id from every transaction and
// template. The records themselves are kept.
func (l *Ledger) DeleteTag(id string) (Cascade, error) {
	i := l.tagIndex(id)
	if i < 0 {
		return Cascade{}, notFound("tag", id)
	}
	var c Cascade
	for j := range l.state.Transactions {
		if ids, removed := withoutID(l.state.Transactions[j].TagIDs, id); removed {
			l.state.Transactions[j].TagIDs = ids
			c.Transactions++
		}
	}
	for j := range l.state.Recurrings {
		if ids, removed := withoutID(l.state.Recurrings[j].TagIDs, id); removed {
			l.state.Recurrings[j].TagIDs = ids
			c.Recurrings++
		}
	}
	l.state.Tags = append(l.state.Tags[:i], l.state.Tags[i+1:]...)
	return c, nil
}

// AddTransaction records a one-off transaction. An empty input date means
// today; createdAt only breaks ordering ties.
func (l *Ledger) AddTransaction(in core.TransactionInput, today core.Date, createdAt int64) (core.Transaction, error) {
	tx, err := in.Transaction(today)
	if err != nil {
		return core.Transaction{}, err
	}
	if l.accountIndex(tx.AccountID) < 0 {
		return core.Transaction{}, unknownAccount(tx.AccountID)
	}
	tx.ID = l.newID()
	tx.TagIDs = l.knownTagIDs(tx.TagIDs)
	tx.CreatedAt = createdAt
	l.appendTransaction(tx)
	return tx, nil
}

func (l *Ledger) DeleteTransaction(id string) error {
	i := l.transactionIndex(id)
	if i < 0 {
		return notFound("transaction", id)
	}
	l.state.Transactions = append(l.state.Transactions[:i], l.state.Transactions[i+1:]...)
	return nil
}

func (l *Ledger) AddRecurring(in core.RecurringInput) (core.RecurringTemplate, error) {
	r, err := in.Template()
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	if l.accountIndex(r.AccountID) < 0 {
		return core.RecurringTemplate{}, unknownAccount(r.AccountID)
	}
	r.ID = l.newID()
	r.TagIDs = l.knownTagIDs(r.TagIDs)
	l.state.Recurrings = append(l.state.Recurrings, r)
	return r, nil
}

// ToggleRecurring flips the active flag of a template.
func (l *Ledger) ToggleRecurring(id string) (core.RecurringTemplate, error) {
	i := l.recurringIndex(id)
	if i < 0 {
		return core.RecurringTemplate{}, notFound("recurring template", id)
	}
	l.state.Recurrings[i].Active = !l.state.Recurrings[i].Active
	return l.state.Recurrings[i], nil
}

// DeleteRecurring removes a template. Transactions it already produced stay.
func (l *Ledger) DeleteRecurring(id string) error {
	i := l.recurringIndex(id)
	if i < 0 {
		return notFound("recurring template", id)
	}
	l.state.Recurrings = append(l.state.Recurrings[:i], l.state.Recurrings[i+1:]...)
	return nil
}

func (l *Ledger) appendTransaction(tx core.Transaction) {
	l.state.Transactions = append(l.state.Transactions, tx)
	sortTransactions(l.state.Transactions)
}

// knownTagIDs drops unknown and repeated ids, keeping first-seen order.
func (l *Ledger) knownTagIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || l.tagIndex(id) < 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func unknownAccount(id string) error {
	return &core.ValidationError{Field: "accountId", Message: "account " + id + " does not exist", Err: core.ErrNotFound}
}

func withoutID(ids []string, id string) ([]string, bool) {
	out := ids[:0:0]
	removed := false
	for _, v := range ids {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	if !removed {
		return ids, false
	}
	return out, true
}
