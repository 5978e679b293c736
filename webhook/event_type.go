package webhook

import "fmt"

/* EventType represents a domain event that can be relayed to subscribers
 * The set is closed: unknown strings are rejected at the API boundary
 * and internal code never handles raw event strings
 */
type EventType int

const (
	ItemCreated EventType = iota + 1
	ItemUpdated
	ItemDeleted
	PriceChanged
	UserRegistered
	UserSubscribed
	PaymentReceived
	ParsingStarted
	ParsingCompleted
	ParsingFailed
	AnalyticsGenerated
	ReportScheduled
	SocialPostCreated
	AchievementUnlocked
)

var eventTypeNames = map[EventType]string{
	ItemCreated:         "item.created",
	ItemUpdated:         "item.updated",
	ItemDeleted:         "item.deleted",
	PriceChanged:        "price.changed",
	UserRegistered:      "user.registered",
	UserSubscribed:      "user.subscribed",
	PaymentReceived:     "payment.received",
	ParsingStarted:      "parsing.started",
	ParsingCompleted:    "parsing.completed",
	ParsingFailed:       "parsing.failed",
	AnalyticsGenerated:  "analytics.generated",
	ReportScheduled:     "report.scheduled",
	SocialPostCreated:   "social.post_created",
	AchievementUnlocked: "achievement.unlocked",
}

// String returns the wire representation of the event type
func (e EventType) String() string {
	if name, ok := eventTypeNames[e]; ok {
		return name
	}
	return "unknown"
}

// ParseEventType creates an EventType from its wire representation
// Unknown strings are a validation error
func ParseEventType(str string) (EventType, error) {
	for et, name := range eventTypeNames {
		if name == str {
			return et, nil
		}
	}
	return 0, &ValidationError{Field: "event_type", Reason: fmt.Sprintf("unknown event type: %q", str)}
}

// ParseEventTypes converts a list of wire strings, rejecting the whole
// list if any entry is unknown or the list is empty
func ParseEventTypes(strs []string) ([]EventType, error) {
	if len(strs) == 0 {
		return nil, &ValidationError{Field: "events", Reason: "events must not be empty"}
	}
	events := make([]EventType, 0, len(strs))
	for _, s := range strs {
		et, err := ParseEventType(s)
		if err != nil {
			return nil, err
		}
		events = append(events, et)
	}
	return events, nil
}

// Validate checks if the event type is valid
func (e EventType) Validate() error {
	if _, ok := eventTypeNames[e]; !ok {
		return fmt.Errorf("invalid event type: %d", e)
	}
	return nil
}

// EventTypeNames returns the wire names of all known event types
func EventTypeNames() []string {
	names := make([]string, 0, len(eventTypeNames))
	for et := ItemCreated; et <= AchievementUnlocked; et++ {
		names = append(names, et.String())
	}
	return names
}
