// Command demo wires an in-memory collection, a live query over it,
// and a printer together and runs until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	config := &Config{}
	config.Bind(pflag.CommandLine)
	pflag.Parse()

	if err := config.Preflight(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	printer, err := InitializeDemo(ctx, config)
	if err != nil {
		log.WithError(err).Fatal("initializing demo")
	}

	printer.Run(ctx)
}
