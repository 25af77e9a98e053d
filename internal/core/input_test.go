package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTransactionInput(t *testing.T) {
	today := NewDate(2024, 3, 15)

	tx, err := TransactionInput{Kind: Expense, Amount: "12.345", AccountID: " acc ", Note: "  lunch "}.Transaction(today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Amount.Cents != 1235 || tx.Date != today || tx.AccountID != "acc" || tx.Note != "lunch" {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	tx, err = TransactionInput{Kind: Income, Amount: "5", Date: "2024-02-29", AccountID: "acc"}.Transaction(today)
	if err != nil || tx.Date.String() != "2024-02-29" {
		t.Fatalf("explicit date: %+v %v", tx, err)
	}

	bad := []struct {
		name  string
		in    TransactionInput
		field string
	}{
		{"zero amount", TransactionInput{Kind: Expense, Amount: "0", AccountID: "a"}, "amount"},
		{"negative amount", TransactionInput{Kind: Expense, Amount: "-5", AccountID: "a"}, "amount"},
		{"missing amount", TransactionInput{Kind: Expense, AccountID: "a"}, "amount"},
		{"bad kind", TransactionInput{Kind: "gift", Amount: "1", AccountID: "a"}, "type"},
		{"missing account", TransactionInput{Kind: Expense, Amount: "1", AccountID: "  "}, "accountId"},
		{"bad date", TransactionInput{Kind: Expense, Amount: "1", AccountID: "a", Date: "15/03/2024"}, "date"},
	}
	for _, tc := range bad {
		_, err := tc.in.Transaction(today)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Fatalf("%s: expected validation error on %s, got %v", tc.name, tc.field, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation", tc.name)
		}
	}
}

func TestAccountInput(t *testing.T) {
	acc, err := AccountInput{Name: " Bank ", Initial: "-10.005"}.Account()
	if err != nil || acc.Name != "Bank" || acc.Initial.Cents != -1001 {
		t.Fatalf("unexpected %+v %v", acc, err)
	}
	acc, err = AccountInput{Name: "Cash"}.Account()
	if err != nil || acc.Initial.Cents != 0 {
		t.Fatalf("empty initial should be zero: %+v %v", acc, err)
	}
	if _, err := (AccountInput{Name: "   "}).Account(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := (AccountInput{Name: "x", Initial: "lots"}).Account(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for bad initial, got %v", err)
	}
}

func TestTagInput(t *testing.T) {
	if _, err := (TagInput{Name: "Food", Color: "#84d19a"}).Tag(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range []string{"red", "#12345", ""} {
		_, err := TagInput{Name: "Food", Color: c}.Tag()
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "color" {
			t.Fatalf("%q: expected color error, got %v", c, err)
		}
	}
}

func TestRecurringInputDefaultsActive(t *testing.T) {
	r, err := RecurringInput{Name: "Rent", Kind: Expense, Amount: "700", AccountID: "a"}.Template()
	if err != nil || !r.Active || r.Amount.Cents != 70000 {
		t.Fatalf("unexpected %+v %v", r, err)
	}
	off := false
	r, err = RecurringInput{Name: "Rent", Kind: Expense, Amount: "700", AccountID: "a", Active: &off}.Template()
	if err != nil || r.Active {
		t.Fatalf("expected inactive template: %+v %v", r, err)
	}
	if _, err := (RecurringInput{Name: "", Kind: Expense, Amount: "1", AccountID: "a"}).Template(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank name")
	}
}

func TestNumericTextDecodesNumbersAndStrings(t *testing.T) {
	var in TransactionInput
	if err := json.Unmarshal([]byte(`{"type":"income","amount":12.5,"accountId":"a"}`), &in); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if in.Amount != "12.5" {
		t.Fatalf("got %q", in.Amount)
	}
	if err := json.Unmarshal([]byte(`{"amount":"3,20"}`), &in); err != nil || in.Amount != "3,20" {
		t.Fatalf("unmarshal string: %q %v", in.Amount, err)
	}
}
