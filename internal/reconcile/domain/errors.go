package domain

import "errors"

var (
	// ErrEmptyMeterID is returned when a series id has no meter.
	ErrEmptyMeterID = errors.New("reconcile: empty meter id")

	// ErrInvalidZone is returned when a zone key is empty.
	ErrInvalidZone = errors.New("reconcile: invalid zone key")

	// ErrInvalidKind is returned for an unknown series kind.
	ErrInvalidKind = errors.New("reconcile: invalid series kind")

	// ErrInvalidPrice is returned when a zone price is not positive.
	ErrInvalidPrice = errors.New("reconcile: invalid price")

	// ErrUnsortedDeltas is returned when the accumulator input is not in
	// ascending timestamp order.
	ErrUnsortedDeltas = errors.New("reconcile: deltas not sorted ascending")
)
