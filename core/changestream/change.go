// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changestream

// OperationType classifies a change event.
type OperationType string

const (
	// Insert represents a new document in the collection.
	Insert OperationType = "insert"
	// Update represents a partial update to an existing document.
	Update OperationType = "update"
	// Replace represents an existing document being replaced wholesale.
	Replace OperationType = "replace"
	// Delete represents a document that has been removed.
	Delete OperationType = "delete"
	// Drop represents the collection being dropped.
	Drop OperationType = "drop"
	// Rename represents the collection being renamed.
	Rename OperationType = "rename"
	// DropDatabase represents the database being dropped.
	DropDatabase OperationType = "dropDatabase"
	// Invalidate is sent by the store when the stream can no longer
	// continue, for example after a drop or rename.
	Invalidate OperationType = "invalidate"
	// Close is never sent by the store. It tags the synthetic event
	// produced when a stream ends.
	Close OperationType = "close"
)

// Event represents a single change read from the change stream. It is
// forwarded verbatim; only the operation and the identifier are read.
type Event struct {
	// Operation is the kind of change.
	Operation OperationType
	// ID is the opaque change identifier. For MongoDB this is the
	// _data field of the resume token.
	ID string
	// Raw holds the BSON document exactly as it was received.
	Raw []byte
}

// CloseEvent returns the synthetic event delivered when a stream ends.
// It carries no payload.
func CloseEvent() Event {
	return Event{Operation: Close}
}

// IsClose reports whether the event is the synthetic close event.
func (e Event) IsClose() bool {
	return e.Operation == Close
}
