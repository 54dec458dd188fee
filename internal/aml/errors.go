package aml

import "errors"

var (
	// ErrDuplicateAlert is returned when an alert for the same
	// (tenant, transaction) pair already exists. Redelivered events hit
	// this path; it is a benign outcome, not a failure.
	ErrDuplicateAlert = errors.New("alert already exists for transaction")

	// ErrInvalidEvent marks an event rejected before scoring. The caller
	// routes such events to the quarantine topic.
	ErrInvalidEvent = errors.New("invalid transaction event")

	// ErrPublishFailed is returned when an alert was persisted but its
	// notification could not be published. The persisted alert stands;
	// transport-level retry is expected to recover the notification.
	ErrPublishFailed = errors.New("alert persisted but notification publish failed")
)
