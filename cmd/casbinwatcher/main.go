// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v4"
)

const doc = `
casbinwatcher follows the change stream of a MongoDB collection holding
casbin policy rules, and reports every change made to it.

Change streams are only available on replica sets and sharded clusters.
`

func main() {
	os.Exit(Main(os.Args))
}

// Main runs the casbinwatcher command line and returns its exit code.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return cmd.Main(NewSuperCommand(), ctx, args[1:])
}

// NewSuperCommand returns the casbinwatcher super command with all of
// its subcommands registered.
func NewSuperCommand() cmd.Command {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "casbinwatcher",
		Purpose: "Watch a casbin policy collection for changes.",
		Doc:     doc,
	})
	super.Register(newWatchCommand())
	super.Register(newReplicaSetStatusCommand())
	return super
}
