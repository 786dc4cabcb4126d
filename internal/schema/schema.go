// Package schema is the structural shape oracle: the final gate confirming a
// document matches its declared shape before it is persisted.
package schema

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/evecs/backend/internal/apperr"
)

// Oracle validates documents against their struct validate tags.
type Oracle struct {
	v *validator.Validate
}

// New creates the oracle.
func New() *Oracle {
	return &Oracle{v: validator.New()}
}

// Validate checks doc's shape, returning a SchemaViolation naming the first
// offending field.
func (o *Oracle) Validate(doc any) error {
	err := o.v.Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Newf(apperr.KindSchemaViolation, fe.Field(),
			"document shape violation: field %q fails %q", fe.Field(), fe.Tag())
	}
	return apperr.Wrap(apperr.KindSchemaViolation, err, "document shape violation")
}

// ValidEmail reports whether s has a plausible email shape.
func (o *Oracle) ValidEmail(s string) bool {
	return o.v.Var(s, "required,email") == nil
}
