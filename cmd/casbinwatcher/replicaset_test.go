// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"time"

	"github.com/juju/cmd/v4/cmdtesting"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/casbinwatcher/mongo"
)

type replicaSetStatusSuite struct {
	testing.IsolationSuite

	stub *testing.Stub
}

var _ = gc.Suite(&replicaSetStatusSuite{})

func (s *replicaSetStatusSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.stub = &testing.Stub{}
}

func (s *replicaSetStatusSuite) newCommand() *replicaSetStatusCommand {
	command := newReplicaSetStatusCommand()
	command.replicaSetStatus = replicaSetStatusFunc(s.stub, &mongo.ReplicaSetInfo{
		Name: "rs0",
		Members: []mongo.ReplicaSetMember{
			{ID: 1, Address: "localhost:27001", State: "PRIMARY", Healthy: true, Self: true},
			{ID: 2, Address: "localhost:27002", State: "SECONDARY", Healthy: true},
		},
	})
	return command
}

func (s *replicaSetStatusSuite) TestInitNoURL(c *gc.C) {
	err := cmdtesting.InitCommand(s.newCommand(), nil)
	c.Assert(err, gc.ErrorMatches, "no mongo URL specified")
}

func (s *replicaSetStatusSuite) TestInitBadTimeout(c *gc.C) {
	err := cmdtesting.InitCommand(s.newCommand(), []string{"--timeout", "0s", testURL})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *replicaSetStatusSuite) TestRun(c *gc.C) {
	ctx, err := cmdtesting.RunCommand(c, s.newCommand(), "--format", "json", "--timeout", "5s", testURL)
	c.Assert(err, jc.ErrorIsNil)
	s.stub.CheckCall(c, 0, "ReplicaSetStatus", testURL, 5*time.Second)
	c.Check(cmdtesting.Stdout(ctx), gc.Equals, `{"name":"rs0","members":[`+
		`{"id":1,"address":"localhost:27001","state":"PRIMARY","healthy":true,"self":true},`+
		`{"id":2,"address":"localhost:27002","state":"SECONDARY","healthy":true}]}`+"\n")
}

func (s *replicaSetStatusSuite) TestRunError(c *gc.C) {
	s.stub.SetErrors(errors.New("cannot get replica set status: not running with --replSet"))
	_, err := cmdtesting.RunCommand(c, s.newCommand(), testURL)
	c.Assert(err, gc.ErrorMatches, "cannot get replica set status: not running with --replSet")
}
