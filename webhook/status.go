package webhook

import "fmt"

/* Status represents the current state of a webhook delivery
 * Follows the lifecycle: Pending -> Sent/Retrying, Retrying -> Sent/Retrying/Failed
 * Sent and Failed are terminal and are never reopened
 */
type Status int

const (
	Pending Status = iota + 1
	Sent
	Failed
	Retrying
	/* Disabled is reserved: no transition currently produces it
	 * Kept so the stored vocabulary stays stable if deliveries of
	 * deactivated endpoints ever get their own state
	 */
	Disabled
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	case Retrying:
		return "retrying"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ParseStatus creates a Status from a string
func ParseStatus(str string) (Status, error) {
	switch str {
	case "pending":
		return Pending, nil
	case "sent":
		return Sent, nil
	case "failed":
		return Failed, nil
	case "retrying":
		return Retrying, nil
	case "disabled":
		return Disabled, nil
	default:
		return 0, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status: %q", str)}
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Disabled {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Sent || s == Failed
}
