package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, 2, 29)
	b, err := json.Marshal(d)
	if err != nil || string(b) != `"2024-02-29"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil || !back.Equal(d.Time) {
		t.Fatalf("unmarshal: %v %v", back, err)
	}
	if err := json.Unmarshal([]byte(`"29/02/2024"`), &back); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
	if err := json.Unmarshal([]byte(`20240229`), &back); err == nil {
		t.Fatalf("expected error for number")
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 2024-03-31 20:00 UTC is already April 1st at UTC+10.
	ts := time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC).In(loc)
	if got := DateOf(ts).String(); got != "2024-04-01" {
		t.Fatalf("got %s", got)
	}
}

func TestMonthBounds(t *testing.T) {
	d := NewDate(2024, 12, 17)
	start := d.FirstOfMonth()
	end := start.AddMonths(1)
	if start.String() != "2024-12-01" || end.String() != "2025-01-01" {
		t.Fatalf("got %s %s", start, end)
	}
}

func TestKind(t *testing.T) {
	if Income.Sign() != 1 || Expense.Sign() != -1 {
		t.Fatalf("unexpected signs")
	}
	if Kind("transfer").Valid() {
		t.Fatalf("transfer should be invalid")
	}
}

func TestRecurringKeyFor(t *testing.T) {
	if got := RecurringKeyFor(NewDate(2025, 1, 5)); got != "manual:2025-01-05" {
		t.Fatalf("got %s", got)
	}
}

func TestTagValidate(t *testing.T) {
	cases := []struct {
		color string
		ok    bool
	}{
		{"#84d19a", true},
		{"#84D19A", true},
		{"red", false},
		{"#12345", false},
		{"#1234567", false},
		{"84d19a", false},
	}
	for _, tc := range cases {
		err := Tag{Name: "t", Color: tc.color}.Validate()
		if tc.ok != (err == nil) {
			t.Fatalf("%q: ok=%v err=%v", tc.color, tc.ok, err)
		}
	}
	if err := (Tag{Name: "  ", Color: "#000000"}).Validate(); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}

func TestEventTypeParts(t *testing.T) {
	if got := EventRecurringMaterialized.Entity(); got != "recurring" {
		t.Errorf("Entity() = %q", got)
	}
	if got := EventRecurringMaterialized.Verb(); got != "materialized" {
		t.Errorf("Verb() = %q", got)
	}
	if got := EventType("odd").Verb(); got != "" {
		t.Errorf("Verb() of undotted type = %q", got)
	}
}
