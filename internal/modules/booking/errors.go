package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("permission denied")
	ErrValidation      = errors.New("validation error")
	ErrAdmissionDenied = errors.New("booking not possible")
	ErrExtensionDenied = errors.New("extension denied")
	ErrDataIntegrity   = errors.New("booking data integrity violation")
)

// AdmissionReason says why a creation request was turned down. Callers only
// ever see ErrAdmissionDenied; the reason is for logs and tests.
type AdmissionReason string

const (
	ReasonSlotUnavailable  AdmissionReason = "slot_unavailable"
	ReasonDuplicate        AdmissionReason = "duplicate"
	ReasonConflict         AdmissionReason = "conflict"
	ReasonCapacity         AdmissionReason = "capacity"
	ReasonDurationExceeded AdmissionReason = "duration_exceeded"
	ReasonZoneUnavailable  AdmissionReason = "zone_unavailable"
	ReasonNoPlace          AdmissionReason = "no_place"
)

type AdmissionError struct {
	Reason AdmissionReason
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAdmissionDenied, e.Reason)
}

func (e *AdmissionError) Is(target error) bool { return target == ErrAdmissionDenied }

// ExtensionReason enumerates extension rejections. Unlike admission, each one
// reaches the caller with its own message.
type ExtensionReason string

const (
	ExtensionNotActive      ExtensionReason = "not_active"
	ExtensionLimitExceeded  ExtensionReason = "limit_exceeded"
	ExtensionConflict       ExtensionReason = "conflict"
	ExtensionZoneUnresolved ExtensionReason = "zone_unresolved"
	ExtensionCapacity       ExtensionReason = "capacity_exceeded"
	ExtensionTimeTaken      ExtensionReason = "time_taken"
	ExtensionPartiallyTaken ExtensionReason = "partially_taken"
)

type ExtensionError struct {
	Reason  ExtensionReason
	Message string
}

func (e *ExtensionError) Error() string { return e.Message }

func (e *ExtensionError) Is(target error) bool { return target == ErrExtensionDenied }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
