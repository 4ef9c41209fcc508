package settings

import (
	"errors"
	"fmt"

	"github.com/fuseinfotech/send2crm/internal/integrity"
	"github.com/fuseinfotech/send2crm/internal/validate"
	"github.com/fuseinfotech/send2crm/internal/version"
)

// ValidatorFunc adapts a function to FieldValidator.
type ValidatorFunc func(value string) error

func (f ValidatorFunc) Validate(value string) error { return f(value) }

var errNumeric = errors.New("setting should not be a number, please enter a valid value")

// NotNumeric rejects values that parse as a number.
type NotNumeric struct{}

func (NotNumeric) Validate(value string) error {
	if validate.Numeric(value) {
		return errNumeric
	}
	return nil
}

// Domain accepts a host name or an http(s) URL. Empty values pass unless Required.
type Domain struct {
	Required bool
}

func (d Domain) Validate(value string) error {
	if value == "" && !d.Required {
		return nil
	}
	if validate.Numeric(value) {
		return errNumeric
	}
	if err := validate.Domain(value); err != nil {
		return fmt.Errorf("enter a valid domain: %w", err)
	}
	return nil
}

// Version accepts an empty value or a semantic version with optional "v" prefix.
type Version struct{}

func (Version) Validate(value string) error {
	if value == "" || version.Valid(value) {
		return nil
	}
	return fmt.Errorf("%q is not a valid release version", value)
}

// Boolean accepts the checkbox encodings.
type Boolean struct{}

func (Boolean) Validate(value string) error {
	if validate.Boolean(value) {
		return nil
	}
	return fmt.Errorf("%q is not a valid on/off value", value)
}

// Integrity accepts an empty value, an SRI token such as "sha384-..." or a hex digest.
type Integrity struct{}

func (Integrity) Validate(value string) error {
	if value == "" {
		return nil
	}
	if _, err := integrity.Parse(value); err != nil {
		return fmt.Errorf("integrity hash has an unrecognised format")
	}
	return nil
}
