package models

import (
	"errors"
	"fmt"
	"strings"
)

// EventKind tags which underlying record an event projects.
type EventKind string

const (
	EventKindThreat   EventKind = "threat"
	EventKindEvidence EventKind = "evidence"
)

// ErrBadEventID reports a composite event id that cannot be parsed.
var ErrBadEventID = errors.New("malformed event id")

// EventRef addresses the record behind an event. Internally events are
// handled through this tagged reference; the composite string forms
// ("threat-<id>", "evidence-<id>" and the legacy "event-threat-<id>")
// exist only at the HTTP boundary.
type EventRef struct {
	Kind EventKind
	ID   string
}

// String renders the canonical composite id.
func (r EventRef) String() string {
	return string(r.Kind) + "-" + r.ID
}

// ParseEventRef decodes a composite event id.
func ParseEventRef(s string) (EventRef, error) {
	trimmed := strings.TrimPrefix(s, "event-")
	for _, kind := range []EventKind{EventKindThreat, EventKindEvidence} {
		prefix := string(kind) + "-"
		if strings.HasPrefix(trimmed, prefix) {
			id := strings.TrimPrefix(trimmed, prefix)
			if id == "" {
				return EventRef{}, fmt.Errorf("%w: %q", ErrBadEventID, s)
			}
			return EventRef{Kind: kind, ID: id}, nil
		}
	}
	return EventRef{}, fmt.Errorf("%w: %q", ErrBadEventID, s)
}
