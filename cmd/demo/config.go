// Command demo is a tiny wire-wired CLI exercising the whole stack:
// it seeds an in-memory collection, runs a live query against it, and
// prints the query's diff stream to stdout as the seed data mutates.
package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config is this command's user-visible configuration, bound the way
// internal/source/server.Config binds cdc-sink's server flags.
type Config struct {
	// PriorityThreshold is the live query's WHERE bound: only todos
	// with Priority greater than this value are tracked.
	PriorityThreshold int64

	// MutateInterval is how often the seed driver applies a random
	// mutation to the todos collection.
	MutateInterval time.Duration

	// GCTime is passed through to the live query's collection.Config,
	// per spec.md §4.2's idle-collection garbage collection.
	GCTime time.Duration
}

// Bind registers this command's flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.Int64Var(
		&c.PriorityThreshold,
		"priorityThreshold",
		0,
		"only track todos with a priority greater than this value")
	flags.DurationVar(
		&c.MutateInterval,
		"mutateInterval",
		time.Second,
		"how often the demo driver mutates the seed data")
	flags.DurationVar(
		&c.GCTime,
		"gcTime",
		time.Minute,
		"idle time before the live query's collection is torn down")
}

// Preflight validates the configuration, per internal/source/logical.Config's
// Preflight contract.
func (c *Config) Preflight() error {
	if c.MutateInterval <= 0 {
		return errors.New("mutateInterval must be positive")
	}
	if c.GCTime <= 0 {
		return errors.New("gcTime must be positive")
	}
	return nil
}
