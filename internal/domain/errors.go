package domain

import "errors"

var (
	// ErrBankNotFound is returned when a bank identifier has no resolvable source.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrEmptyBank means the source was found but no row parsed into a question.
	ErrEmptyBank = errors.New("question bank has no valid questions")
	// ErrInvalidBankID rejects identifiers that cannot be stored safely.
	ErrInvalidBankID = errors.New("invalid question bank id")
	// ErrParticipantOffline is returned by a delivery channel with no live connection for the participant.
	ErrParticipantOffline = errors.New("participant is not connected")
	// ErrPollLimits indicates a question exceeds what the delivery channel can present.
	ErrPollLimits = errors.New("question exceeds poll limits")
)
