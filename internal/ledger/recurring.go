package ledger

import (
	"fmt"

	"calmledger/internal/core"
)

// MaterializeToday turns a recurring template into a transaction dated
// today. A template can be materialized once per day: a second call with the
// same template and day fails with core.ErrDuplicateRecurring. A template
// whose account is gone fails validation and creates nothing. Inactive
// templates are accepted; asking the user first is the caller's job.
func (l *Ledger) MaterializeToday(templateID string, today core.Date, createdAt int64) (core.Transaction, error) {
	i := l.recurringIndex(templateID)
	if i < 0 {
		return core.Transaction{}, notFound("recurring template", templateID)
	}
	r := l.state.Recurrings[i]
	if l.accountIndex(r.AccountID) < 0 {
		return core.Transaction{}, unknownAccount(r.AccountID)
	}
	key := core.RecurringKeyFor(today)

	for _, tx := range l.state.Transactions {
		if tx.RecurringID == r.ID && tx.RecurringKey == key {
			return core.Transaction{}, fmt.Errorf("%w: %s on %s", core.ErrDuplicateRecurring, r.Name, today)
		}
	}

	tx := core.Transaction{
		ID:           l.newID(),
		Kind:         r.Kind,
		Amount:       r.Amount,
		Date:         today,
		AccountID:    r.AccountID,
		TagIDs:       cloneIDs(r.TagIDs),
		Note:         r.Name,
		CreatedAt:    createdAt,
		RecurringID:  r.ID,
		RecurringKey: key,
	}
	l.appendTransaction(tx)
	return tx, nil
}
