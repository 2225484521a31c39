// Package queue publishes reservation events to RabbitMQ and runs the
// background consumer that appends them to logs/reservation.log.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/table-reservation/internal/model"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "reservation_events"

// Encode serializes an event for the wire.
func Encode(ev model.ReservationEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses a message body.  Events without a type or reservation id
// are rejected.
func Decode(body []byte) (model.ReservationEvent, error) {
	var ev model.ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == 0 {
		return ev, fmt.Errorf("incomplete event: type=%q reservation_id=%d", ev.Type, ev.ReservationID)
	}
	return ev, nil
}

// FormatLine renders an event as one human-friendly log line ending in a
// newline.
func FormatLine(ev model.ReservationEvent) string {
	units := "[]"
	if len(ev.UnitIDs) > 0 {
		parts := make([]string, 0, len(ev.UnitIDs))
		for _, id := range ev.UnitIDs {
			parts = append(parts, fmt.Sprint(id))
		}
		units = "[" + strings.Join(parts, ",") + "]"
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | class_id=%d | status=%s | window=%s/%s | party=%d | tables=%d | units=%s | edits=%d\n",
		ev.OccurredAt, ev.Type, ev.ReservationID, ev.UserID, ev.ClassID, ev.Status,
		ev.StartsAt, ev.EndsAt, ev.PartySize, ev.UnitsRequired, units, ev.EditCount)
}
