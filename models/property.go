package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Property is a listing record as served by the properties backend. Instances
// are created on fetch and never mutated client-side.
type Property struct {
	ID       int     `json:"id"`
	Image    string  `json:"image"`
	Title    string  `json:"title"`
	Type     string  `json:"type"`
	Location string  `json:"location"`
	Details  string  `json:"details"`
	Host     string  `json:"host"`
	Price    float64 `json:"price"`
	Rating   float64 `json:"rating"`
	Guests   int     `json:"guests,omitempty"`
}

// PropertyInput is the write-path payload for the addProperty mutation. The
// server assigns the identifier.
type PropertyInput struct {
	Title    string  `json:"title" validate:"required,max=100"`
	Type     string  `json:"type" validate:"required"`
	Location string  `json:"location" validate:"required"`
	Image    string  `json:"image" validate:"required,url,min=10,max=500"`
	Details  string  `json:"details" validate:"required"`
	Host     string  `json:"host" validate:"required"`
	Price    float64 `json:"price" validate:"required,gte=1"`
	Rating   int     `json:"rating" validate:"required,gte=1,lte=5"`
}

var validate = validator.New()

// Validate checks the input against the form rules and returns per-field
// messages, or nil when the input is acceptable. A non-nil result means the
// payload must not be sent to the network.
func (in PropertyInput) Validate() map[string]string {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["input"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "url":
		return "must be a valid URL"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// ValidationError carries the per-field messages produced at the form
// boundary.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+" "+msg)
	}
	return "invalid property input: " + strings.Join(parts, "; ")
}
