package core

// MonthTotals sums income and expense over the half-open range [Start, End).
type MonthTotals struct {
	Start   Date  `json:"start"`
	End     Date  `json:"end"`
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// Net is income minus expense for the month.
func (m MonthTotals) Net() Money {
	return Money{Cents: m.Income.Cents - m.Expense.Cents}
}

// AccountBalance pairs an account with its derived balance.
type AccountBalance struct {
	Account
	Balance Money `json:"balance"`
}

// Dashboard is the month-to-date statistics panel.
type Dashboard struct {
	Year    int         `json:"year"`
	Month   int         `json:"month"` // 1-12
	Totals  MonthTotals `json:"totals"`
	Balance Money       `json:"balance"`
}
