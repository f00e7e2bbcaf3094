// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package watcher

import (
	"time"

	"github.com/juju/clock"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/juju/casbinwatcher/core/changestream"
	"github.com/juju/casbinwatcher/core/logger"
	mongodriver "github.com/juju/casbinwatcher/mongo"
)

// DefaultCollectionName is the collection casbin keeps its policy rules
// in.
const DefaultCollectionName = "casbin"

// Config holds the options for NewWatcher. The zero value is usable.
type Config struct {
	// CollectionName is the collection to watch. Defaults to
	// DefaultCollectionName.
	CollectionName string

	// DatabaseName is the database holding the collection. When empty the
	// driver's default database is used: the one named in the URL, or
	// "test".
	DatabaseName string

	// CallbackStreamClose causes a synthetic close event to be passed to
	// the callback when the change stream ends.
	CallbackStreamClose bool

	// SkipWaitReady lets NewWatcher return before the change stream has
	// attached to the operation log. Changes made in that window may be
	// missed.
	SkipWaitReady bool

	// ReadyTimeout bounds how long NewWatcher waits for the change stream
	// to become ready. Zero waits until the context is done.
	ReadyTimeout time.Duration

	// ClientOptions are passed to the driver when connecting.
	ClientOptions *options.ClientOptions

	// StreamOptions are passed to the driver when opening the stream.
	StreamOptions *options.ChangeStreamOptions

	// Pipeline is an aggregation pipeline the server applies to the
	// stream before sending changes.
	Pipeline mongo.Pipeline

	// Logger receives diagnostics once they are enabled with
	// ToggleLogger. Defaults to logger.Default().
	Logger logger.Logger

	// Driver connects to the store. Defaults to the MongoDB driver.
	Driver changestream.Driver

	// Clock drives the readiness poll. Defaults to the wall clock.
	Clock clock.Clock

	// Metrics, when set, is updated as changes are dispatched.
	Metrics *Collector
}

// withDefaults returns a copy of the config with unset fields filled in.
// The default logger is built here rather than shared between watchers.
func (config Config) withDefaults() Config {
	if config.CollectionName == "" {
		config.CollectionName = DefaultCollectionName
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Driver == nil {
		config.Driver = mongodriver.Driver{}
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	return config
}
