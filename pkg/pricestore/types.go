package pricestore

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ====================================================================================
// This file defines the core value type and error kinds for the pricestore library.
// ====================================================================================

// ErrInvalidArgument is returned when a required top-level input is absent,
// e.g. a nil prices list on upload or a nil ids list on query. Individual nil
// elements inside a list are tolerated and skipped, never an error.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidPrice is returned by NewPrice when a required field is missing.
var ErrInvalidPrice = errors.New("invalid price")

// ErrInvalidBatch is returned when the referenced batch id does not name a
// currently open batch: it never existed, was already completed, or was
// already cancelled.
type ErrInvalidBatch struct {
	BatchID string
}

func (e ErrInvalidBatch) Error() string {
	return fmt.Sprintf("invalid or inactive batch id: %s", e.BatchID)
}

// Price is a single immutable price observation for one instrument.
//
// The payload is opaque to this library: it could be a float, a decimal, or a
// struct with bid/ask/volume. The store never inspects its structure; the
// producing and consuming layers own it.
type Price struct {
	id      string
	asOf    time.Time
	payload any
}

// NewPrice validates and constructs a Price. All three fields are required:
// a non-empty instrument id, a non-zero asOf timestamp, and a non-nil payload.
func NewPrice(id string, asOf time.Time, payload any) (*Price, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: instrument id must not be empty", ErrInvalidPrice)
	}
	if asOf.IsZero() {
		return nil, fmt.Errorf("%w: asOf timestamp must be set", ErrInvalidPrice)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: payload must not be nil", ErrInvalidPrice)
	}
	return &Price{id: id, asOf: asOf, payload: payload}, nil
}

// ID returns the instrument identifier.
func (p *Price) ID() string {
	return p.id
}

// AsOf returns the event timestamp of the observation.
func (p *Price) AsOf() time.Time {
	return p.asOf
}

// Payload returns the opaque price data.
func (p *Price) Payload() any {
	return p.payload
}

// Equal reports whether two prices carry the same id, asOf and payload.
// It exists for tests and diagnostics; the store itself never compares
// payloads.
func (p *Price) Equal(other *Price) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.id == other.id &&
		p.asOf.Equal(other.asOf) &&
		reflect.DeepEqual(p.payload, other.payload)
}

func (p *Price) String() string {
	return fmt.Sprintf("Price{id=%s, asOf=%s, payload=%v}", p.id, p.asOf.Format(time.RFC3339Nano), p.payload)
}
