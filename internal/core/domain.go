package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date form used for storage and the API.
const DateLayout = "2006-01-02"

// RecurringKeyPrefix prefixes the dedup key of manually materialized templates.
const RecurringKeyPrefix = "manual:"

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind carries the sign of a transaction; stored amounts are always positive.
	Kind string

	// Date is a calendar date. The time part is always midnight UTC.
	Date struct {
		time.Time
	}

	Account struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Initial Money  `json:"initial"`
	}

	Tag struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}

	Transaction struct {
		ID           string   `json:"id"`
		Kind         Kind     `json:"type"`
		Amount       Money    `json:"amount"`
		Date         Date     `json:"date"`
		AccountID    string   `json:"accountId"`
		TagIDs       []string `json:"tagIds"`
		Note         string   `json:"note"`
		CreatedAt    int64    `json:"createdAt"` // unix milliseconds
		RecurringID  string   `json:"recurringId,omitempty"`
		RecurringKey string   `json:"recurringKey,omitempty"`
	}

	RecurringTemplate struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Kind      Kind     `json:"type"`
		Amount    Money    `json:"amount"`
		AccountID string   `json:"accountId"`
		TagIDs    []string `json:"tagIds"`
		Active    bool     `json:"active"`
	}
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Sign returns +1 for income and -1 for expense.
func (k Kind) Sign() int64 {
	if k == Income {
		return 1
	}
	return -1
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// AddMonths shifts d by n months; callers pass first-of-month dates so no
// day overflow can occur.
func (d Date) AddMonths(n int) Date {
	return Date{Time: d.Time.AddDate(0, n, 0)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// RecurringKeyFor returns the dedup key for a manual instantiation on day.
func RecurringKeyFor(day Date) string {
	return RecurringKeyPrefix + day.String()
}

// IsHexColor reports whether s is a #rrggbb colour.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	return nil
}

func (t Tag) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if !IsHexColor(t.Color) {
		return &ValidationError{Field: "color", Message: "color must be a #rrggbb hex value"}
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return &ValidationError{Field: "type", Message: "type must be income or expense"}
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "date is required"}
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return &ValidationError{Field: "accountId", Message: "account is required"}
	}
	return nil
}

func (r RecurringTemplate) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if !r.Kind.Valid() {
		return &ValidationError{Field: "type", Message: "type must be income or expense"}
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.AccountID) == "" {
		return &ValidationError{Field: "accountId", Message: "account is required"}
	}
	return nil
}
