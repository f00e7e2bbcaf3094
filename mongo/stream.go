// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo

import (
	"context"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/juju/casbinwatcher/core/changestream"
)

// cursor is the subset of *mongo.ChangeStream used by Stream.
type cursor interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}

// Stream implements changestream.Stream over a MongoDB change stream.
type Stream struct {
	cursor  cursor
	current func() bson.Raw

	ready atomic.Bool
	event changestream.Event
}

func newStream(cs *mongo.ChangeStream) *Stream {
	s := &Stream{
		cursor:  cs,
		current: func() bson.Raw { return cs.Current },
	}
	// The driver runs the initial aggregate synchronously and records the
	// operation time the cursor starts at before Watch returns.
	s.ready.Store(true)
	return s
}

// Next is part of the changestream.Stream interface.
func (s *Stream) Next(ctx context.Context) bool {
	if !s.cursor.Next(ctx) {
		return false
	}
	// The driver reuses the buffer behind Current on the next call.
	raw := s.current()
	doc := make(bson.Raw, len(raw))
	copy(doc, raw)
	s.event = decodeEvent(doc)
	return true
}

// Event is part of the changestream.Stream interface.
func (s *Stream) Event() changestream.Event {
	return s.event
}

// Err is part of the changestream.Stream interface.
func (s *Stream) Err() error {
	return s.cursor.Err()
}

// Ready is part of the changestream.Stream interface.
func (s *Stream) Ready() bool {
	return s.ready.Load()
}

// Close is part of the changestream.Stream interface.
func (s *Stream) Close(ctx context.Context) error {
	return s.cursor.Close(ctx)
}

// decodeEvent reads the operation type and the resume token identifier
// from a change document. Missing or mistyped fields are left empty.
func decodeEvent(doc bson.Raw) changestream.Event {
	ev := changestream.Event{Raw: doc}
	if op, ok := doc.Lookup("operationType").StringValueOK(); ok {
		ev.Operation = changestream.OperationType(op)
	}
	if id, ok := doc.Lookup("_id", "_data").StringValueOK(); ok {
		ev.ID = id
	}
	return ev
}

// DecodeEvent unmarshals the raw document of an event into v.
func DecodeEvent(ev changestream.Event, v interface{}) error {
	return bson.Unmarshal(ev.Raw, v)
}
