package ledger

import (
	"calmledger/internal/core"
)

// AccountBalance is the initial balance plus the signed sum of the
// account's transactions. Unknown accounts start from zero.
func (l *Ledger) AccountBalance(id string) core.Money {
	var cents int64
	if acc, ok := l.Account(id); ok {
		cents = acc.Initial.Cents
	}
	for _, tx := range l.state.Transactions {
		if tx.AccountID != id {
			continue
		}
		cents += tx.Kind.Sign() * tx.Amount.Cents
	}
	return core.Cents(cents)
}

// Balances returns every account with its derived balance.
func (l *Ledger) Balances() []core.AccountBalance {
	out := make([]core.AccountBalance, 0, len(l.state.Accounts))
	for _, a := range l.state.Accounts {
		out = append(out, core.AccountBalance{Account: a, Balance: l.AccountBalance(a.ID)})
	}
	return out
}

// TotalBalance sums AccountBalance over all accounts.
func (l *Ledger) TotalBalance() core.Money {
	var total core.Money
	for _, a := range l.state.Accounts {
		total = total.Add(l.AccountBalance(a.ID))
	}
	return total
}

// MonthTotals sums income and expense for the month containing ref, over
// [first of month, first of next month).
func (l *Ledger) MonthTotals(ref core.Date) core.MonthTotals {
	start := ref.FirstOfMonth()
	end := start.AddMonths(1)
	totals := core.MonthTotals{Start: start, End: end}
	for _, tx := range l.state.Transactions {
		if tx.Date.Before(start.Time) || !tx.Date.Before(end.Time) {
			continue
		}
		if tx.Kind == core.Income {
			totals.Income = totals.Income.Add(tx.Amount)
		} else {
			totals.Expense = totals.Expense.Add(tx.Amount)
		}
	}
	return totals
}

// Dashboard is the month-to-date panel: month totals plus total balance.
func (l *Ledger) Dashboard(ref core.Date) core.Dashboard {
	return core.Dashboard{
		Year:    ref.Year(),
		Month:   int(ref.Month()),
		Totals:  l.MonthTotals(ref),
		Balance: l.TotalBalance(),
	}
}
