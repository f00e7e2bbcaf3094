// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/casbinwatcher/core/changestream"
	coreerrors "github.com/juju/casbinwatcher/core/errors"
	"github.com/juju/casbinwatcher/core/logger"
)

// readyPollInterval is how often NewWatcher checks whether the change
// stream has attached to the operation log.
const readyPollInterval = time.Millisecond

// UpdateCallback is called with every change read from the stream.
type UpdateCallback func(changestream.Event)

// Watcher forwards changes on a MongoDB collection to a single callback,
// so that processes sharing a policy store can tell when another process
// has changed it.
//
// A Watcher owns its connection and change stream. Both are released by
// Close, which must be called once the Watcher is no longer needed.
type Watcher struct {
	catacomb catacomb.Catacomb

	client    changestream.Client
	stream    changestream.Stream
	namespace string
	clock     clock.Clock
	metrics   *Collector

	callbackClose bool

	mu            sync.Mutex
	callback      UpdateCallback
	logger        logger.Logger
	loggerEnabled bool
	changes       uint64
	closes        uint64
}

// NewWatcher connects to the store at url and opens a change stream on
// the configured collection. Unless config.SkipWaitReady is set it does
// not return until the stream is attached to the operation log, polling
// every millisecond; the wait ends early only when ctx is done or
// config.ReadyTimeout expires.
//
// An empty url fails with a ConfigurationError before anything else is
// attempted. Errors from the driver are returned unchanged, and nothing
// opened before a failure is left open.
func NewWatcher(ctx context.Context, url string, config Config) (*Watcher, error) {
	if url == "" {
		return nil, coreerrors.MissingURL()
	}
	config = config.withDefaults()

	client, err := config.Driver.Connect(ctx, url, config.ClientOptions)
	if err != nil {
		return nil, err
	}
	db := client.Database(config.DatabaseName)
	coll := db.Collection(config.CollectionName)
	stream, err := coll.Watch(ctx, config.Pipeline, config.StreamOptions)
	if err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}

	w := &Watcher{
		client:        client,
		stream:        stream,
		namespace:     fmt.Sprintf("%s.%s", db.Name(), coll.Name()),
		clock:         config.Clock,
		metrics:       config.Metrics,
		callbackClose: config.CallbackStreamClose,
		logger:        config.Logger,
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		_ = stream.Close(context.WithoutCancel(ctx))
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, errors.Trace(err)
	}

	if !config.SkipWaitReady {
		if err := w.waitReady(ctx, config.ReadyTimeout); err != nil {
			_ = w.Close(context.WithoutCancel(ctx))
			return nil, errors.Trace(err)
		}
	}
	return w, nil
}

// waitReady polls the stream's readiness marker. The store offers no
// event for this, only state that is filled in some time after the
// stream was opened.
func (w *Watcher) waitReady(ctx context.Context, timeout time.Duration) error {
	start := w.clock.Now()
	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = w.clock.After(timeout)
	}
	for !w.stream.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return errors.Timeoutf("change stream on %q ready", w.namespace)
		case <-w.catacomb.Dying():
			if err := w.catacomb.Wait(); err != nil {
				return err
			}
			return errors.Errorf("change stream on %q closed before it was ready", w.namespace)
		case <-w.clock.After(readyPollInterval):
		}
	}
	w.metrics.observeReady(w.clock.Now().Sub(start))
	return nil
}

// loop reads the stream until it ends or the watcher is killed.
func (w *Watcher) loop() error {
	ctx, cancel := w.scopedContext()
	defer cancel()

	for w.stream.Next(ctx) {
		w.handleChange(w.stream.Event())
	}
	w.handleClose()

	select {
	case <-w.catacomb.Dying():
		return w.catacomb.ErrDying()
	default:
	}
	if err := w.stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *Watcher) handleChange(ev changestream.Event) {
	w.mu.Lock()
	w.changes++
	callback := w.callback
	w.mu.Unlock()

	if log := w.diagnostics(); log != nil {
		log.Debugf("Received a change. ID: %s, type: %s", ev.ID, ev.Operation)
	}
	w.metrics.changeReceived(ev.Operation)
	if callback != nil {
		callback(ev)
	}
}

func (w *Watcher) handleClose() {
	w.mu.Lock()
	w.closes++
	callback := w.callback
	w.mu.Unlock()

	if log := w.diagnostics(); log != nil {
		log.Debugf("Received a close event")
	}
	w.metrics.streamClosed()
	if w.callbackClose && callback != nil {
		callback(changestream.CloseEvent())
	}
}

// diagnostics returns the logger when diagnostics are enabled, and nil
// otherwise.
func (w *Watcher) diagnostics() logger.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.loggerEnabled || w.logger == nil {
		return nil
	}
	return w.logger
}

// ToggleLogger switches diagnostics on or off and returns the new state.
// Without a logger diagnostics stay off and false is returned.
func (w *Watcher) ToggleLogger() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger == nil {
		w.loggerEnabled = false
		return false
	}
	w.loggerEnabled = !w.loggerEnabled
	return w.loggerEnabled
}

// SetLogger replaces the diagnostics sink. Setting a nil logger turns
// diagnostics off.
func (w *Watcher) SetLogger(log logger.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = log
	if log == nil {
		w.loggerEnabled = false
	}
}

// SetUpdateCallback registers the function called for every change,
// replacing any earlier one. A change already being dispatched when the
// callback is replaced is delivered to the old callback.
func (w *Watcher) SetUpdateCallback(callback UpdateCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callback = callback
}

// Update exists for callers expecting to trigger a refresh by hand.
// Changes are pushed by the change stream, so it does nothing and always
// returns false.
func (w *Watcher) Update() bool {
	if log := w.diagnostics(); log != nil {
		log.Infof("Update call is handled by the MongoDB Change Stream.")
	}
	return false
}

// Close stops dispatching changes, then closes the change stream and the
// connection, in that order. The first error is returned as it was
// reported by the driver. A Watcher must not be used after Close,
// whether or not it succeeded.
func (w *Watcher) Close(ctx context.Context) error {
	w.catacomb.Kill(nil)
	if err := w.catacomb.Wait(); err != nil {
		if log := w.diagnostics(); log != nil {
			log.Debugf("change stream on %s ended: %v", w.namespace, err)
		}
	}
	if err := w.stream.Close(ctx); err != nil {
		return err
	}
	return w.client.Disconnect(ctx)
}

// Kill is part of the worker.Worker interface. It stops dispatching
// changes but does not release the stream or connection; use Close for
// that.
func (w *Watcher) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface. It returns the error that
// ended the change stream, if any.
func (w *Watcher) Wait() error {
	return w.catacomb.Wait()
}

// Report returns runtime details of the watcher.
func (w *Watcher) Report() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return map[string]interface{}{
		"namespace":   w.namespace,
		"ready":       w.stream.Ready(),
		"diagnostics": w.loggerEnabled,
		"callback":    w.callback != nil,
		"changes":     w.changes,
		"closes":      w.closes,
	}
}

func (w *Watcher) scopedContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(w.catacomb.Context(context.Background()))
}
