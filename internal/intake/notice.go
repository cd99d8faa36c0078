package intake

import (
	"errors"
	"strings"
)

// Severity classifies a notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a user-visible message.
type Notice struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// OutcomeNotice returns the notice for a finished attempt. Every outcome has one.
func OutcomeNotice(r Result) Notice {
	switch r.Outcome {
	case StateCreated:
		return Notice{SeveritySuccess, "Job card submitted successfully and email sent!"}
	case StateCreatedNotificationFailed:
		return Notice{SeverityWarning, "Job card submitted, but failed to send email notification."}
	case StateTechnicianRequired:
		return Notice{SeverityWarning, "Please assign a technician before submitting."}
	case StateClientCreationFailed:
		return Notice{SeverityError, "Failed to create client record. Check the client details and try again."}
	case StateDeviceCreationFailed:
		return Notice{SeverityError, "Failed to create device record. Check the device details and try again."}
	case StateJobCardCreationFailed:
		return Notice{SeverityError, "Failed to submit job card."}
	case StateInvalid:
		var fe FieldErrors
		if errors.As(r.Err, &fe) {
			return Notice{SeverityWarning, "Please correct the highlighted fields: " + strings.Join(fe.Fields(), ", ") + "."}
		}
		return Notice{SeverityWarning, "Please correct the highlighted fields."}
	default:
		return Notice{SeverityError, "Submission did not finish."}
	}
}

// LookupNotice returns the notice for a lookup message. Absent results have
// none and report false.
func LookupNotice(msg Message) (Notice, bool) {
	switch m := msg.(type) {
	case ClientFound:
		return Notice{SeverityInfo, "Existing client data found. Prefilling form."}, true
	case DeviceFound:
		return Notice{SeverityInfo, "Existing device data found. Prefilling form."}, true
	case LookupError:
		if m.Entity == EntityDevice {
			return Notice{SeverityError, "Error checking device serial number."}, true
		}
		return Notice{SeverityError, "Error checking client phone number."}, true
	}
	return Notice{}, false
}
