package core

import (
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

type (
	// Transaction is a single financial event. An ID of zero asks the store
	// to assign one on insert.
	Transaction struct {
		ID        int64   `json:"id"`
		RemoteID  string  `json:"remoteId"`
		Amount    float64 `json:"amount" validate:"gte=0"`
		Category  string  `json:"category" validate:"required"`
		Note      *string `json:"note"` // nil is stored as NULL
		IsIncome  bool    `json:"isIncome"`
		Timestamp int64   `json:"timestamp"`
		UserID    string  `json:"userId"`
	}

	// Category is a labeled bucket for transactions, partitioned by IsIncome.
	Category struct {
		ID       int64  `json:"id"`
		Name     string `json:"name" validate:"required"`
		IsIncome bool   `json:"isIncome"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyName     = errors.New("empty category name")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func (t Transaction) Validate() error {
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := validate.Struct(t); err != nil {
		return translate(err)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if err := validate.Struct(c); err != nil {
		return translate(err)
	}
	return nil
}

// translate maps validator field errors onto the package sentinels.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].StructField() {
	case "Amount":
		return ErrInvalidAmount
	case "Category":
		return ErrEmptyCategory
	case "Name":
		return ErrEmptyName
	}
	return err
}

// NoteOf returns a pointer to s, for building transactions with a note.
func NoteOf(s string) *string {
	return &s
}
