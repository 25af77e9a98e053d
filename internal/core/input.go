package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NumericText holds a user-typed number. It decodes from either a JSON
// string or a JSON number so form posts and API clients both work.
type NumericText string

func (n *NumericText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = NumericText(num.String())
	return nil
}

// Inputs accepted at the mutation entry points.
type (
	AccountInput struct {
		Name    string      `json:"name" validate:"required"`
		Initial NumericText `json:"initial"`
	}

	TagInput struct {
		Name  string `json:"name" validate:"required"`
		Color string `json:"color" validate:"required,hexcolor6"`
	}

	TransactionInput struct {
		Kind      Kind        `json:"type" validate:"required,oneof=income expense"`
		Amount    NumericText `json:"amount" validate:"required"`
		Date      string      `json:"date" validate:"omitempty,datetime=2006-01-02"`
		AccountID string      `json:"accountId" validate:"required"`
		TagIDs    []string    `json:"tagIds"`
		Note      string      `json:"note"`
	}

	RecurringInput struct {
		Name      string      `json:"name" validate:"required"`
		Kind      Kind        `json:"type" validate:"required,oneof=income expense"`
		Amount    NumericText `json:"amount" validate:"required"`
		AccountID string      `json:"accountId" validate:"required"`
		TagIDs    []string    `json:"tagIds"`
		Active    *bool       `json:"active"`
	}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
		return IsHexColor(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Account validates the input and returns an account without an ID.
func (in AccountInput) Account() (Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return Account{}, err
	}
	var initial Money
	if raw := strings.TrimSpace(string(in.Initial)); raw != "" {
		m, err := ParseMoney(raw)
		if err != nil {
			return Account{}, &ValidationError{Field: "initial", Message: "initial balance must be a number", Err: err}
		}
		initial = m
	}
	return Account{Name: in.Name, Initial: initial}, nil
}

// Tag validates the input and returns a tag without an ID.
func (in TagInput) Tag() (Tag, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if err := validateStruct(in); err != nil {
		return Tag{}, err
	}
	return Tag{Name: in.Name, Color: in.Color}, nil
}

// Transaction validates the input; an empty date means today.
func (in TransactionInput) Transaction(today Date) (Transaction, error) {
	in.Date = strings.TrimSpace(in.Date)
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.Amount = NumericText(strings.TrimSpace(string(in.Amount)))
	if err := validateStruct(in); err != nil {
		return Transaction{}, err
	}
	amount, err := parseAmountField(in.Amount)
	if err != nil {
		return Transaction{}, err
	}
	date := today
	if in.Date != "" {
		if date, err = ParseDate(in.Date); err != nil {
			return Transaction{}, &ValidationError{Field: "date", Message: "date must be YYYY-MM-DD", Err: err}
		}
	}
	return Transaction{
		Kind:      in.Kind,
		Amount:    amount,
		Date:      date,
		AccountID: in.AccountID,
		TagIDs:    append([]string(nil), in.TagIDs...),
		Note:      strings.TrimSpace(in.Note),
	}, nil
}

// Template validates the input; templates are active unless stated otherwise.
func (in RecurringInput) Template() (RecurringTemplate, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.Amount = NumericText(strings.TrimSpace(string(in.Amount)))
	if err := validateStruct(in); err != nil {
		return RecurringTemplate{}, err
	}
	amount, err := parseAmountField(in.Amount)
	if err != nil {
		return RecurringTemplate{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return RecurringTemplate{
		Name:      in.Name,
		Kind:      in.Kind,
		Amount:    amount,
		AccountID: in.AccountID,
		TagIDs:    append([]string(nil), in.TagIDs...),
		Active:    active,
	}, nil
}

func parseAmountField(raw NumericText) (Money, error) {
	m, err := ParseAmount(string(raw))
	if err != nil {
		return Money{}, &ValidationError{Field: "amount", Message: "amount must be a number greater than 0", Err: ErrInvalidAmount}
	}
	return m, nil
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Message: fieldMessage(fe)}
	}
	return &ValidationError{Message: err.Error()}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "hexcolor6":
		return "color must be a #rrggbb hex value"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "datetime":
		return fe.Field() + " must be YYYY-MM-DD"
	default:
		return fe.Field() + " is invalid"
	}
}
