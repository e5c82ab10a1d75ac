// Package ident converts binary record identifiers to and from the
// URL-safe strings used in cookies, headers and persisted contexts.
package ident

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// WireLength is the length of every encoded identifier.
const WireLength = 22

var ErrInvalidIdentifier = errors.New("invalid identifier")

var encoding = base64.RawURLEncoding.Strict()

// ToWire encodes id as a fixed length, URL-safe string.
func ToWire(id uuid.UUID) string {
	return encoding.EncodeToString(id[:])
}

// FromWire decodes a string produced by ToWire.
func FromWire(s string) (uuid.UUID, error) {
	if len(s) != WireLength {
		return uuid.Nil, fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidIdentifier, WireLength, len(s))
	}

	raw, err := encoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}

	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	return id, nil
}

// MustFromWire is FromWire for literals in tests and fixtures.
func MustFromWire(s string) uuid.UUID {
	id, err := FromWire(s)
	if err != nil {
		panic(err)
	}
	return id
}
