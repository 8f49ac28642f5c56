//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
)

// InitializeDemo wires a Config into a running Printer, per
// internal/source/logical.Set's provider-set pattern.
func InitializeDemo(ctx context.Context, config *Config) (*Printer, error) {
	panic(wire.Build(Set))
}
