// Package validator wraps go-playground/validator behind a small injectable
// type so handlers validate transport DTOs through one shared instance.
package validator

import "github.com/go-playground/validator/v10"

// Validator validates structs and single values against binding tags.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator. Custom rules are added via RegisterValidation.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// Struct validates s against its field tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single value against the given tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation adds a custom validation function under the given tag.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
