// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo

import (
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3"
	"github.com/juju/replicaset/v3"
)

// ReplicaSetMember describes one member of a replica set.
type ReplicaSetMember struct {
	ID      int    `json:"id" yaml:"id"`
	Address string `json:"address" yaml:"address"`
	State   string `json:"state" yaml:"state"`
	Healthy bool   `json:"healthy" yaml:"healthy"`
	Self    bool   `json:"self,omitempty" yaml:"self,omitempty"`
}

// ReplicaSetInfo is the status of the replica set a URL points to.
type ReplicaSetInfo struct {
	Name    string             `json:"name" yaml:"name"`
	Members []ReplicaSetMember `json:"members" yaml:"members"`
}

// dialFunc opens an mgo session; tests replace it.
var dialFunc = mgo.DialWithInfo

// statusFunc reads the replica set status; tests replace it.
var statusFunc = replicaset.CurrentStatus

// ReplicaSetStatus reports the replica set behind url. Change streams
// are only available on replica sets and sharded clusters, so this is a
// useful check before starting a watcher.
func ReplicaSetStatus(url string, timeout time.Duration) (*ReplicaSetInfo, error) {
	info, err := mgo.ParseURL(url)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing mongo URL")
	}
	info.Timeout = timeout

	session, err := dialFunc(info)
	if err != nil {
		return nil, errors.Annotatef(err, "dialing %v", info.Addrs)
	}
	defer session.Close()

	status, err := statusFunc(session)
	if err != nil {
		return nil, errors.Annotate(err, "cannot get replica set status")
	}
	result := &ReplicaSetInfo{Name: status.Name}
	for _, m := range status.Members {
		result.Members = append(result.Members, ReplicaSetMember{
			ID:      m.Id,
			Address: m.Address,
			State:   m.State.String(),
			Healthy: m.Healthy,
			Self:    m.Self,
		})
	}
	return result, nil
}
