package events

import (
	"encoding/json"
	"fmt"

	apperrors "backoffice/pkg/errors"
	"backoffice/pkg/events"
)

// Decode rebuilds the typed event for a broker message read back from one
// of this service's own topics. The topic name is the event type.
func Decode(eventType events.Type, payload []byte) (events.Event, error) {
	var evt events.Event
	switch eventType {
	case EventOrderCreated:
		evt = &OrderCreatedEvent{}
	case EventAttendanceRecorded:
		evt = &AttendanceRecordedEvent{}
	case EventSettingUpdated:
		evt = &SettingUpdatedEvent{}
	case EventApplicationCreated:
		evt = &ApplicationCreatedEvent{}
	case EventApplicationStatusChanged:
		evt = &ApplicationStatusChangedEvent{}
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", apperrors.ErrInvalidInput, eventType)
	}
	if err := json.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", eventType, err)
	}
	return evt, nil
}
