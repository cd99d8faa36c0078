// Package announce posts intake submission outcomes to chat platforms
// (Slack, Discord) so the shop floor sees new job cards and failures.
package announce

import "context"

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Connect verifies credentials and prepares the platform client.
	Connect(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close shuts down the adapter.
	Close() error
}

// OutboundMessage is a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string           // target channel (empty = adapter default)
	Text      string           // plain-text fallback
	Events    []FormattedEvent // structured attachments
}

// FormattedEvent is a submission outcome formatted for display in chat.
type FormattedEvent struct {
	Title    string  // headline (e.g. "Job card 41 created")
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint (e.g. "#36a64f" for success)
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}
