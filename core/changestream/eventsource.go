// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changestream

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Driver opens connections to a replicated document store.
type Driver interface {
	// Connect establishes a connection to the store identified by url.
	Connect(ctx context.Context, url string, opts *options.ClientOptions) (Client, error)
}

// Client is an established connection to the store. It is owned by a
// single watcher.
type Client interface {
	// Database selects a database without checking that it exists. An
	// empty name selects the driver's default database.
	Database(name string) Database

	// Disconnect closes the connection.
	Disconnect(ctx context.Context) error
}

// Database is a named database on a Client.
type Database interface {
	// Name returns the name of the database.
	Name() string

	// Collection selects a collection without checking that it exists.
	Collection(name string) Collection
}

// Collection is a named collection within a Database.
type Collection interface {
	// Name returns the name of the collection.
	Name() string

	// Watch opens a change stream on the collection. The collection does
	// not need to exist yet; changes are observed from the moment it is
	// created.
	Watch(ctx context.Context, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions) (Stream, error)
}

// Stream is an open change stream. It is not safe for concurrent use,
// with the exception of Ready which may be called from any goroutine.
type Stream interface {
	// Next blocks until the next change is available, returning false
	// once the stream has ended. A false return is the stream's close
	// event; Err reports why it ended.
	Next(ctx context.Context) bool

	// Event returns the change read by the last successful Next.
	Event() Event

	// Err returns the error, if any, that ended the stream.
	Err() error

	// Ready reports whether the stream's cursor has recorded the
	// operation time it started at, meaning it is attached to the
	// operation log and will not miss later changes.
	Ready() bool

	// Close closes the stream.
	Close(ctx context.Context) error
}
