// Package passport implements a node's per-node, non-replicated
// descriptive record.
package passport

import "errors"

// defaultField is the initial value every new Passport carries. It has
// no semantic meaning to the engine or the node runtime; it is opaque
// node metadata, the way the original implementation's marker was.
const defaultField = "lawn"

// ErrEmptyField is returned by GetField when the field has somehow been
// left empty, and by SetField when asked to store an empty value.
var ErrEmptyField = errors.New("passport: field is empty")

// Passport is a node-local descriptor with one mutable, non-empty string
// field. It is not read by the engine and is never replicated.
type Passport struct {
	field string
}

// New returns a Passport with the fixed default field value.
func New() *Passport {
	return &Passport{field: defaultField}
}

// GetField returns the field, or ErrEmptyField if it has been left
// empty (which a correctly operating Passport should never allow).
func (p *Passport) GetField() (string, error) {
	if p.field == "" {
		return "", ErrEmptyField
	}
	return p.field, nil
}

// SetField stores a new field value, rejecting an empty string so the
// "field is never empty on any successful set" invariant (spec.md §3)
// holds.
func (p *Passport) SetField(value string) error {
	if value == "" {
		return ErrEmptyField
	}
	p.field = value
	return nil
}
