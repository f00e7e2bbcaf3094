// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/juju/casbinwatcher/core/changestream"
)

// DefaultDatabaseName is used when neither the caller nor the connection
// string names a database. It matches the MongoDB shell default.
const DefaultDatabaseName = "test"

// Driver implements changestream.Driver on top of the official MongoDB
// driver.
type Driver struct{}

// Connect is part of the changestream.Driver interface. It returns once
// the primary has answered a ping. Errors from the driver are returned
// unchanged.
func (Driver) Connect(ctx context.Context, url string, opts *options.ClientOptions) (changestream.Client, error) {
	defaultDB, err := defaultDatabase(url)
	if err != nil {
		return nil, err
	}

	all := []*options.ClientOptions{options.Client().ApplyURI(url)}
	if opts != nil {
		all = append(all, opts)
	}
	client, err := mongo.Connect(ctx, all...)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &Client{
		client:    client,
		defaultDB: defaultDB,
	}, nil
}

// defaultDatabase returns the database named by the connection string,
// falling back to DefaultDatabaseName.
func defaultDatabase(url string) (string, error) {
	cs, err := connstring.ParseAndValidate(url)
	if err != nil {
		return "", err
	}
	if cs.Database == "" {
		return DefaultDatabaseName, nil
	}
	return cs.Database, nil
}

// Client is a connected MongoDB client.
type Client struct {
	client    *mongo.Client
	defaultDB string
}

// Database is part of the changestream.Client interface.
func (c *Client) Database(name string) changestream.Database {
	if name == "" {
		name = c.defaultDB
	}
	return &Database{db: c.client.Database(name)}
}

// Disconnect is part of the changestream.Client interface.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Database wraps a MongoDB database handle.
type Database struct {
	db *mongo.Database
}

// Name is part of the changestream.Database interface.
func (d *Database) Name() string {
	return d.db.Name()
}

// Collection is part of the changestream.Database interface.
func (d *Database) Collection(name string) changestream.Collection {
	return &Collection{coll: d.db.Collection(name)}
}

// Collection wraps a MongoDB collection handle.
type Collection struct {
	coll *mongo.Collection
}

// Name is part of the changestream.Collection interface.
func (c *Collection) Name() string {
	return c.coll.Name()
}

// Watch is part of the changestream.Collection interface.
func (c *Collection) Watch(ctx context.Context, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions) (changestream.Stream, error) {
	if pipeline == nil {
		pipeline = mongo.Pipeline{}
	}
	var streamOpts []*options.ChangeStreamOptions
	if opts != nil {
		streamOpts = append(streamOpts, opts)
	}
	cs, err := c.coll.Watch(ctx, pipeline, streamOpts...)
	if err != nil {
		return nil, err
	}
	return newStream(cs), nil
}
