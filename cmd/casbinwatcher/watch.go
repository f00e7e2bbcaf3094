// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/cmd/v4"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/juju/casbinwatcher/core/changestream"
	"github.com/juju/casbinwatcher/core/logger"
	"github.com/juju/casbinwatcher/mongo"
	"github.com/juju/casbinwatcher/watcher"
)

// Watcher is the part of *watcher.Watcher used by the watch command.
type Watcher interface {
	SetUpdateCallback(watcher.UpdateCallback)
	ToggleLogger() bool
	Wait() error
	Close(context.Context) error
}

// NewWatcherFunc creates a Watcher.
type NewWatcherFunc func(ctx context.Context, url string, config watcher.Config) (Watcher, error)

// ReplicaSetStatusFunc reports the replica set behind a URL.
type ReplicaSetStatusFunc func(url string, timeout time.Duration) (*mongo.ReplicaSetInfo, error)

func newWatcher(ctx context.Context, url string, config watcher.Config) (Watcher, error) {
	w, err := watcher.NewWatcher(ctx, url, config)
	if err != nil {
		return nil, err
	}
	return w, nil
}

const watchDoc = `
Print every change made to a casbin policy collection until interrupted.

Unless --no-wait is given, watching starts only once the change stream is
attached to the replica set's operation log, so no change made after the
first line of output is missed.

Options may also be read from a YAML file given with --config, whose keys
are the long flag names. Flags given on the command line take precedence.
`

const watchExamples = `
    casbinwatcher watch mongodb://localhost:27001,localhost:27002/casbin?replicaSet=rs0
    casbinwatcher watch --collection casbin_rule --forward-close <url>
    casbinwatcher watch --pipeline '[{"$match": {"operationType": "insert"}}]' <url>
`

type watchCommand struct {
	cmd.CommandBase
	out cmd.Output

	newWatcher       NewWatcherFunc
	replicaSetStatus ReplicaSetStatusFunc

	url             string
	configFile      string
	collection      string
	database        string
	forwardClose    bool
	noWait          bool
	readyTimeout    time.Duration
	pipelineText    string
	metricsAddr     string
	checkReplicaSet bool
	debug           bool

	pipeline []bson.D
}

func newWatchCommand() *watchCommand {
	return &watchCommand{
		newWatcher:       newWatcher,
		replicaSetStatus: mongo.ReplicaSetStatus,
	}
}

// Info implements cmd.Command.
func (c *watchCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "watch",
		Args:     "<mongo-url>",
		Purpose:  "Print changes made to a policy collection.",
		Doc:      watchDoc,
		Examples: watchExamples,
	}
}

// SetFlags implements cmd.Command.
func (c *watchCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	c.out.AddFlags(f, "json", cmd.DefaultFormatters.Formatters())
	f.StringVar(&c.configFile, "config", "", "YAML file to read options from")
	f.StringVar(&c.collection, "collection", "", "collection to watch (default \""+watcher.DefaultCollectionName+"\")")
	f.StringVar(&c.database, "db", "", "database holding the collection (default from the URL)")
	f.BoolVar(&c.forwardClose, "forward-close", false, "report the end of the change stream as a close event")
	f.BoolVar(&c.noWait, "no-wait", false, "do not wait for the change stream to be ready")
	f.DurationVar(&c.readyTimeout, "ready-timeout", 0, "give up waiting for the change stream after this long")
	f.StringVar(&c.pipelineText, "pipeline", "", "aggregation pipeline as an extended JSON array")
	f.StringVar(&c.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	f.BoolVar(&c.checkReplicaSet, "check-replicaset", false, "check the replica set before watching")
	f.BoolVar(&c.debug, "debug", false, "log diagnostics for every change")
}

// Init implements cmd.Command.
func (c *watchCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no mongo URL specified")
	}
	c.url = args[0]

	if c.configFile != "" {
		cfg, err := readConfigFile(c.configFile)
		if err != nil {
			return errors.Trace(err)
		}
		c.applyConfigFile(cfg)
	}

	var err error
	if c.pipeline, err = parsePipeline(c.pipelineText); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args[1:])
}

// applyConfigFile fills in every option left unset on the command line.
func (c *watchCommand) applyConfigFile(cfg fileConfig) {
	if c.collection == "" {
		c.collection = cfg.Collection
	}
	if c.database == "" {
		c.database = cfg.Database
	}
	if c.pipelineText == "" {
		c.pipelineText = cfg.Pipeline
	}
	if c.metricsAddr == "" {
		c.metricsAddr = cfg.MetricsAddr
	}
	if c.readyTimeout == 0 && cfg.ReadyTimeout != "" {
		// Validated when the file was read.
		c.readyTimeout, _ = time.ParseDuration(cfg.ReadyTimeout)
	}
	c.forwardClose = c.forwardClose || cfg.ForwardClose
	c.noWait = c.noWait || cfg.NoWait
	c.debug = c.debug || cfg.Debug
}

func (c *watchCommand) config(ctx *cmd.Context) watcher.Config {
	return watcher.Config{
		CollectionName:      c.collection,
		DatabaseName:        c.database,
		CallbackStreamClose: c.forwardClose,
		SkipWaitReady:       c.noWait,
		ReadyTimeout:        c.readyTimeout,
		Pipeline:            c.pipeline,
		Logger:              logger.New(ctx.Stderr, loggo.DEBUG),
	}
}

// Run implements cmd.Command.
func (c *watchCommand) Run(ctx *cmd.Context) error {
	stdctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.checkReplicaSet {
		info, err := c.replicaSetStatus(c.url, 30*time.Second)
		if err != nil {
			return errors.Trace(err)
		}
		ctx.Infof("replica set %q has %d members", info.Name, len(info.Members))
	}

	config := c.config(ctx)
	if c.metricsAddr != "" {
		config.Metrics = watcher.NewMetricsCollector()
		srv, err := serveMetrics(c.metricsAddr, config.Metrics)
		if err != nil {
			return errors.Trace(err)
		}
		defer srv.Close()
	}

	w, err := c.newWatcher(stdctx, c.url, config)
	if err != nil {
		return errors.Trace(err)
	}
	if c.debug {
		w.ToggleLogger()
	}

	events := make(chan changestream.Event)
	stopped := make(chan struct{})
	w.SetUpdateCallback(func(ev changestream.Event) {
		select {
		case events <- ev:
		case <-stopped:
		}
	})
	closeWatcher := func() error {
		close(stopped)
		return w.Close(context.Background())
	}

	dead := make(chan error, 1)
	go func() {
		dead <- w.Wait()
	}()

	ctx.Infof("watching for changes")
	for {
		select {
		case ev := <-events:
			if err := c.out.Write(ctx, newEventView(ev)); err != nil {
				_ = closeWatcher()
				return errors.Trace(err)
			}
		case err := <-dead:
			closeErr := closeWatcher()
			if err != nil {
				return errors.Annotate(err, "change stream ended")
			}
			return closeErr
		case <-stdctx.Done():
			return closeWatcher()
		}
	}
}

// eventView is how an event is printed.
type eventView struct {
	Operation string `json:"operation" yaml:"operation"`
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Change    string `json:"change,omitempty" yaml:"change,omitempty"`
}

func newEventView(ev changestream.Event) eventView {
	view := eventView{
		Operation: string(ev.Operation),
		ID:        ev.ID,
	}
	if len(ev.Raw) > 0 {
		view.Change = bson.Raw(ev.Raw).String()
	}
	return view
}

func serveMetrics(addr string, collector prometheus.Collector) (*http.Server, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return nil, errors.Trace(err)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Annotate(err, "serving metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(listener)
	}()
	return srv, nil
}
