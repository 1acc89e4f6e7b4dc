package appointments

import "errors"

var (
	// ErrNotFound is returned when no appointment has the requested id.
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrPermissionDenied is returned when the store rejects the caller's credentials.
	ErrPermissionDenied = errors.New("appointments: permission denied by store")

	// ErrAlreadyExists is returned when an insert collides with an existing id.
	ErrAlreadyExists = errors.New("appointments: appointment id already exists")

	// ErrStatusConflict is returned when another writer changed the status first.
	ErrStatusConflict = errors.New("appointments: status changed concurrently")

	// ErrInvalidTransition is returned for lifecycle moves the state machine forbids.
	ErrInvalidTransition = errors.New("appointments: invalid status transition")

	// ErrCancellationReasonRequired is returned when cancelling without a reason.
	ErrCancellationReasonRequired = errors.New("appointments: cancellation reason is required")

	// ErrTreatmentRequired is returned when no treatment option was chosen.
	ErrTreatmentRequired = errors.New("appointments: treatment is required")

	// ErrUnknownTreatment is returned for a preset label outside the list.
	ErrUnknownTreatment = errors.New("appointments: unknown treatment preset")

	// ErrCustomTreatmentRequired is returned when manual entry was chosen but left blank.
	ErrCustomTreatmentRequired = errors.New("appointments: custom treatment text is required")

	// ErrInvalidInput wraps field validation failures.
	ErrInvalidInput = errors.New("appointments: invalid input")

	// ErrEmptyPatch is returned by Update when there is nothing to write.
	ErrEmptyPatch = errors.New("appointments: nothing to update")
)

// IsValidationError reports whether err was raised before any store call
// because of bad input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrCancellationReasonRequired) ||
		errors.Is(err, ErrTreatmentRequired) ||
		errors.Is(err, ErrUnknownTreatment) ||
		errors.Is(err, ErrCustomTreatmentRequired) ||
		errors.Is(err, ErrEmptyPatch)
}
