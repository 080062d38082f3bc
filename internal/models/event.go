package models

type EventKind string

const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventImported EventKind = "imported"
	EventDeduped  EventKind = "deduped"
)

// EntryEvent describes a change to the entry table pushed to live clients
type EntryEvent struct {
	Kind  EventKind `json:"kind"`
	Entry *Entry    `json:"entry,omitempty"`
	Count int       `json:"count,omitempty"`
}
