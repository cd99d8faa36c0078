package intake

import "errors"

// Error taxonomy. Submission failures are reported through Result.Outcome;
// Result.Err wraps the matching sentinel and the underlying cause.
var (
	ErrLookupFailed          = errors.New("intake: lookup failed")
	ErrClientCreationFailed  = errors.New("intake: client creation failed")
	ErrDeviceCreationFailed  = errors.New("intake: device creation failed")
	ErrJobCardCreationFailed = errors.New("intake: job card creation failed")
	ErrTechnicianRequired    = errors.New("intake: technician required")
	ErrInvalidForm           = errors.New("intake: invalid form")

	ErrSubmissionInProgress = errors.New("intake: submission in progress")
	ErrSessionClosed        = errors.New("intake: session closed")
)
