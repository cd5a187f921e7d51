package repository

import "errors"

// Sentinel errors shared by the credit ledger and the event store. Services
// translate these into HTTP responses; they never carry request context.
var (
	// ErrInsufficientCredits is returned when a debit would drive the
	// account balance below zero. The balance is left untouched.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned for zero or negative mutation amounts.
	ErrInvalidAmount = errors.New("invalid credit amount")

	// ErrEventAlreadyProcessed is returned when a processed-marker update
	// finds the event already marked by a concurrent handler.
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")

	// ErrEventNotFound is returned when marking an event that was never
	// ingested.
	ErrEventNotFound = errors.New("webhook event not found")

	// ErrStorageContention is returned after the bounded retry budget for
	// lock conflicts is exhausted. Callers may surface it as retryable.
	ErrStorageContention = errors.New("storage contention")
)
