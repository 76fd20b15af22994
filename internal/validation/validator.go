// Package validation checks request bodies with struct tags and reports field-level errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON names so clients see the fields they sent
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// FieldError describes one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Error collects every rejected field of a request
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewError builds an Error for a single field
func NewError(field, message string) *Error {
	return &Error{Fields: []FieldError{{Field: field, Message: message}}}
}

// Builder accumulates field errors from hand-written checks
type Builder struct {
	fields []FieldError
}

func (b *Builder) Add(field, message string) {
	b.fields = append(b.fields, FieldError{Field: field, Message: message})
}

// Check adds an error for field when ok is false
func (b *Builder) Check(ok bool, field, message string) {
	if !ok {
		b.Add(field, message)
	}
}

// Err returns nil when nothing was added
func (b *Builder) Err() error {
	if len(b.fields) == 0 {
		return nil
	}
	return &Error{Fields: b.fields}
}

// ValidateStruct runs the struct's validate tags
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := &Error{Fields: make([]FieldError, 0, len(validationErrors))}
	for _, fe := range validationErrors {
		out.Fields = append(out.Fields, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// ValidateVar checks a single value against a tag expression
func ValidateVar(field string, value any, tag string) error {
	if err := getValidator().Var(value, tag); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return NewError(field, message(validationErrors[0]))
		}
		return err
	}
	return nil
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid id"
	case "hexcolor":
		return "must be a hex color such as #aabbcc"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
