package models

import "errors"

var (
	ErrInvalidAlertDraft  = errors.New("invalid alert draft")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnknownInstitution = errors.New("unknown institution")
	ErrEmptyRecipientSet  = errors.New("empty recipient set")
	ErrCountdownState     = errors.New("operation not allowed in current countdown state")
	ErrCountdownBusy      = errors.New("countdown already in progress")
	ErrInvalidRequest     = errors.New("invalid request")
)
