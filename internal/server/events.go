package server

import (
	"time"

	"github.com/sjawhar/dictaite/internal/config"
	"github.com/sjawhar/dictaite/internal/dictation"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type StateEvent struct {
	Event
	State dictation.Snapshot `json:"state"`
}

type PreferencesChangedEvent struct {
	Event
	Preferences config.Preferences `json:"preferences"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
