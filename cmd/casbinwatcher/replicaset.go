// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"time"

	"github.com/juju/cmd/v4"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/casbinwatcher/mongo"
)

const replicaSetStatusDoc = `
Show the members of the replica set a mongo URL points to.

Change streams are only available on replica sets, so a store that is not
part of one cannot be watched.
`

type replicaSetStatusCommand struct {
	cmd.CommandBase
	out cmd.Output

	replicaSetStatus ReplicaSetStatusFunc

	url     string
	timeout time.Duration
}

func newReplicaSetStatusCommand() *replicaSetStatusCommand {
	return &replicaSetStatusCommand{
		replicaSetStatus: mongo.ReplicaSetStatus,
	}
}

// Info implements cmd.Command.
func (c *replicaSetStatusCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "replicaset-status",
		Args:    "<mongo-url>",
		Purpose: "Show the replica set behind a mongo URL.",
		Doc:     replicaSetStatusDoc,
		Examples: `
    casbinwatcher replicaset-status mongodb://localhost:27001/casbin
    casbinwatcher replicaset-status --format json --timeout 5s <url>
`,
	}
}

// SetFlags implements cmd.Command.
func (c *replicaSetStatusCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	c.out.AddFlags(f, "yaml", cmd.DefaultFormatters.Formatters())
	f.DurationVar(&c.timeout, "timeout", 30*time.Second, "how long to wait for the replica set")
}

// Init implements cmd.Command.
func (c *replicaSetStatusCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no mongo URL specified")
	}
	if c.timeout <= 0 {
		return errors.NotValidf("timeout %v", c.timeout)
	}
	c.url = args[0]
	return cmd.CheckEmpty(args[1:])
}

// Run implements cmd.Command.
func (c *replicaSetStatusCommand) Run(ctx *cmd.Context) error {
	info, err := c.replicaSetStatus(c.url, c.timeout)
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, info)
}
