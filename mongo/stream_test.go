// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo_test

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"go.mongodb.org/mongo-driver/bson"
	gc "gopkg.in/check.v1"

	"github.com/juju/casbinwatcher/core/changestream"
	"github.com/juju/casbinwatcher/mongo"
)

type streamSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&streamSuite{})

func changeDoc(c *gc.C, op, id string) bson.Raw {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: bson.D{{Key: "_data", Value: id}}},
		{Key: "operationType", Value: op},
		{Key: "ns", Value: bson.D{{Key: "db", Value: "casbin"}, {Key: "coll", Value: "casbin_rule"}}},
		{Key: "fullDocument", Value: bson.D{{Key: "ptype", Value: "p"}, {Key: "v0", Value: "alice"}}},
	})
	c.Assert(err, jc.ErrorIsNil)
	return raw
}

func (s *streamSuite) TestDecodeEvent(c *gc.C) {
	doc := changeDoc(c, "insert", "8264BC")
	ev := mongo.DecodeEventDoc(doc)
	c.Check(ev.Operation, gc.Equals, changestream.Insert)
	c.Check(ev.ID, gc.Equals, "8264BC")
	c.Check([]byte(ev.Raw), jc.DeepEquals, []byte(doc))
}

func (s *streamSuite) TestDecodeEventMissingFields(c *gc.C) {
	raw, err := bson.Marshal(bson.D{{Key: "other", Value: 1}})
	c.Assert(err, jc.ErrorIsNil)
	ev := mongo.DecodeEventDoc(raw)
	c.Check(ev.Operation, gc.Equals, changestream.OperationType(""))
	c.Check(ev.ID, gc.Equals, "")
}

func (s *streamSuite) TestDecodeEventPayload(c *gc.C) {
	ev := mongo.DecodeEventDoc(changeDoc(c, "update", "01"))
	var doc struct {
		FullDocument struct {
			PType string `bson:"ptype"`
			V0    string `bson:"v0"`
		} `bson:"fullDocument"`
	}
	err := mongo.DecodeEvent(ev, &doc)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(doc.FullDocument.PType, gc.Equals, "p")
	c.Check(doc.FullDocument.V0, gc.Equals, "alice")
}

func (s *streamSuite) TestNextCopiesCurrent(c *gc.C) {
	docs := []bson.Raw{changeDoc(c, "insert", "01"), changeDoc(c, "delete", "02")}
	buf := make(bson.Raw, 0, 256)
	cur := &fakeCursor{n: len(docs)}
	stream := mongo.NewStreamForTest(cur, func() bson.Raw {
		// Mimic the driver reusing its buffer between calls.
		buf = append(buf[:0], docs[cur.pos-1]...)
		return buf
	})

	ctx := context.Background()
	c.Assert(stream.Next(ctx), jc.IsTrue)
	first := stream.Event()
	c.Assert(stream.Next(ctx), jc.IsTrue)
	second := stream.Event()
	c.Assert(stream.Next(ctx), jc.IsFalse)

	c.Check(first.Operation, gc.Equals, changestream.Insert)
	c.Check(first.ID, gc.Equals, "01")
	c.Check([]byte(first.Raw), jc.DeepEquals, []byte(docs[0]))
	c.Check(second.Operation, gc.Equals, changestream.Delete)
	c.Check(second.ID, gc.Equals, "02")
	c.Check(stream.Ready(), jc.IsTrue)
	c.Check(stream.Err(), jc.ErrorIsNil)
}

func (s *streamSuite) TestErrAndClose(c *gc.C) {
	cur := &fakeCursor{err: errors.New("connection reset"), closeErr: errors.New("boom")}
	stream := mongo.NewStreamForTest(cur, nil)
	c.Check(stream.Next(context.Background()), jc.IsFalse)
	c.Check(stream.Err(), gc.ErrorMatches, "connection reset")
	c.Check(stream.Close(context.Background()), gc.ErrorMatches, "boom")
	c.Check(cur.closed, jc.IsTrue)
}

func (s *streamSuite) TestDefaultDatabase(c *gc.C) {
	for i, test := range []struct {
		url      string
		expected string
	}{{
		url:      "mongodb://localhost:27001,localhost:27002/casbin?replicaSet=rs0",
		expected: "casbin",
	}, {
		url:      "mongodb://localhost:27001,localhost:27002/?replicaSet=rs0",
		expected: mongo.DefaultDatabaseName,
	}, {
		url:      "mongodb://localhost",
		expected: mongo.DefaultDatabaseName,
	}} {
		c.Logf("test %d: %s", i, test.url)
		name, err := mongo.DefaultDatabase(test.url)
		c.Check(err, jc.ErrorIsNil)
		c.Check(name, gc.Equals, test.expected)
	}
}

func (s *streamSuite) TestDefaultDatabaseBadURL(c *gc.C) {
	_, err := mongo.DefaultDatabase("http://localhost")
	c.Check(err, gc.NotNil)
}

type fakeCursor struct {
	n        int
	pos      int
	err      error
	closeErr error
	closed   bool
}

func (f *fakeCursor) Next(context.Context) bool {
	if f.pos >= f.n {
		return false
	}
	f.pos++
	return true
}

func (f *fakeCursor) Err() error {
	return f.err
}

func (f *fakeCursor) Close(context.Context) error {
	f.closed = true
	return f.closeErr
}
