package announce

import (
	"fmt"
	"strings"

	"github.com/zulandar/benchdesk/internal/intake"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// outcomeTitle returns the headline for a finished submission.
func outcomeTitle(r intake.Result) string {
	switch r.Outcome {
	case intake.StateCreated, intake.StateCreatedNotificationFailed:
		if r.JobCard != nil && !r.JobCard.ID.IsZero() {
			return fmt.Sprintf("Job card %s created", r.JobCard.ID)
		}
		return "Job card created"
	case intake.StateClientCreationFailed:
		return "Intake failed: client not created"
	case intake.StateDeviceCreationFailed:
		return "Intake failed: device not created"
	case intake.StateJobCardCreationFailed:
		return "Intake failed: job card not created"
	case intake.StateTechnicianRequired:
		return "Intake blocked: no technician assigned"
	case intake.StateInvalid:
		return "Intake rejected: invalid form"
	default:
		return "Intake " + string(r.Outcome)
	}
}

// FormatSubmission formats a finished submission. The severity and body
// follow the notice the operator saw.
func FormatSubmission(r intake.Result) FormattedEvent {
	notice := intake.OutcomeNotice(r)
	severity := string(notice.Severity)

	var body []string
	body = append(body, notice.Text)
	if r.OrphanedClient {
		body = append(body, fmt.Sprintf("Client %s was created but has no job card.", r.ClientID))
	}
	if r.Compensated {
		body = append(body, fmt.Sprintf("Client %s was deleted again.", r.ClientID))
	}

	var fields []Field
	if name := r.Values.ClientName; name != "" {
		fields = append(fields, Field{Name: "Client", Value: name, Short: true})
	}
	if phone := r.Values.ClientPhone; phone != "" {
		fields = append(fields, Field{Name: "Phone", Value: phone, Short: true})
	}
	if device := strings.TrimSpace(r.Values.Brand + " " + r.Values.DeviceModel); device != "" {
		fields = append(fields, Field{Name: "Device", Value: device, Short: true})
	}
	if serial := r.Values.DeviceSerialNumber; serial != "" {
		fields = append(fields, Field{Name: "Serial", Value: serial, Short: true})
	}
	if !r.TechnicianID.IsZero() {
		fields = append(fields, Field{Name: "Technician", Value: r.TechnicianID.String(), Short: true})
	}
	if problem := r.Values.ProblemDescription; problem != "" && r.Succeeded() {
		fields = append(fields, Field{Name: "Problem", Value: truncate(problem, 200)})
	}

	return FormattedEvent{
		Title:    outcomeTitle(r),
		Body:     strings.Join(body, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// truncate shortens s to at most n runes, appending "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
