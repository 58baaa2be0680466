package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks a decoded entity that violates its model constraints
var ErrValidation = errors.New("entity validation failed")

// EntityValidator checks decoded entities against their validate tags
type EntityValidator struct {
	validate *validator.Validate
}

// NewEntityValidator creates a new entity validator
func NewEntityValidator() *EntityValidator {
	return &EntityValidator{validate: validator.New()}
}

// Validate returns an ErrValidation error listing every violated field
func (v *EntityValidator) Validate(entity any) error {
	err := v.validate.Struct(entity)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	problems := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		problems = append(problems, fmt.Sprintf("%s failed %s (%v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
}
