// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"time"

	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v3"
)

// fileConfig is the layout of the file given with --config. Every key
// mirrors a flag of the watch command.
type fileConfig struct {
	Collection   string `yaml:"collection"`
	Database     string `yaml:"database"`
	ForwardClose bool   `yaml:"forward-close"`
	NoWait       bool   `yaml:"no-wait"`
	ReadyTimeout string `yaml:"ready-timeout"`
	Pipeline     string `yaml:"pipeline"`
	MetricsAddr  string `yaml:"metrics-addr"`
	Debug        bool   `yaml:"debug"`
}

func readConfigFile(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Trace(err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Annotatef(err, "parsing %s", path)
	}
	if cfg.ReadyTimeout != "" {
		if _, err := time.ParseDuration(cfg.ReadyTimeout); err != nil {
			return cfg, errors.Annotatef(err, "parsing %s", path)
		}
	}
	return cfg, nil
}

// parsePipeline reads an aggregation pipeline written as an extended
// JSON array of stages.
func parsePipeline(s string) (mongo.Pipeline, error) {
	if s == "" {
		return nil, nil
	}
	var doc struct {
		Pipeline mongo.Pipeline `bson:"pipeline"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"pipeline":`+s+`}`), false, &doc); err != nil {
		return nil, errors.Annotatef(err, "parsing pipeline %q", s)
	}
	return doc.Pipeline, nil
}
