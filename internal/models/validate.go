package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DeafMist/hotel-radar/internal/apperr"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks ranges and date formats, then requires CheckOut after CheckIn.
func (q SearchQuery) Validate() error {
	if !q.Coordinate.Finite() {
		return &apperr.ValidationError{Field: "coordinate", Message: "must be finite"}
	}
	if err := validatorInstance().Struct(q); err != nil {
		return translate(err)
	}

	in, _ := time.Parse(time.DateOnly, q.CheckIn)
	out, _ := time.Parse(time.DateOnly, q.CheckOut)
	if !out.After(in) {
		return &apperr.ValidationError{Field: "checkOut", Message: "must be after checkIn"}
	}
	return nil
}

// Validate checks that the coordinate is finite and in range.
func (c Coordinate) Validate() error {
	if !c.Finite() {
		return &apperr.ValidationError{Field: "coordinate", Message: "must be finite"}
	}
	if err := validatorInstance().Struct(c); err != nil {
		return translate(err)
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &apperr.ValidationError{Message: err.Error()}
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "datetime":
		msg = fmt.Sprintf("must match %s", fe.Param())
	case "min", "gte":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		msg = fmt.Sprintf("must be at most %s", fe.Param())
	default:
		msg = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return &apperr.ValidationError{Field: field, Message: msg}
}
