package instance

import (
	"caseflow/domain/definition"
)

// Suppression is always derived from the full event map at query time.
// An event with no timestamp is never active and never suppresses.

// IsEventActive reports whether the named event has fired and is not
// suppressed by a later mutually-exclusive event.
func IsEventActive(d *definition.Definition, events EventMap, eventId string) bool {
	e := events[eventId]
	if e == nil || e.Time == nil {
		return false
	}
	return Suppressor(d, events, eventId) == nil
}

// Suppressor returns the event that currently suppresses the named event,
// or nil. A qualifying suppressor has a strictly later timestamp and
// declares the event in its Suppresses set; when several qualify, the one
// with the greatest timestamp wins and is reported.
func Suppressor(d *definition.Definition, events EventMap, eventId string) *InstanceEvent {
	e := events[eventId]
	if e == nil || e.Time == nil {
		return nil
	}

	var latest *InstanceEvent
	for id, other := range events {
		if id == eventId || other == nil || other.Time == nil {
			continue
		}
		otherDef := d.Event(id)
		if otherDef == nil || !otherDef.DoesSuppress(eventId) {
			continue
		}
		if !other.Time.Time().After(e.Time.Time()) {
			continue
		}
		if latest == nil || other.Time.Time().After(latest.Time.Time()) {
			latest = other
		}
	}
	return latest
}
