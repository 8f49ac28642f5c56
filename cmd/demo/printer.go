package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/compiler"
	"github.com/samwillis/reactive-db/internal/util/metrics"
)

var activeTodosGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "reactive_db_demo_active_todos",
	Help: "Rows currently matching the demo's live query.",
}, metrics.QueryLabels)

func init() {
	metrics.MustRegister(activeTodosGauge)
}

// Printer subscribes to a live query collection and prints each
// change batch to stdout, the demo's stand-in for a real sink.
type Printer struct {
	lq *collection.Collection[compiler.Row]
}

// Run subscribes and blocks until ctx is canceled.
func (p *Printer) Run(ctx context.Context) {
	gauge := activeTodosGauge.WithLabelValues("active-todos")
	unsub := p.lq.Subscribe(func(events []collection.ChangeMessage[compiler.Row]) {
		for _, e := range events {
			printChange(e)
		}
		gauge.Set(float64(p.lq.Size()))
	}, true, nil)
	defer unsub()

	log.WithField("collection", "active-todos").Info("printer: subscribed")
	<-ctx.Done()
}

func printChange(e collection.ChangeMessage[compiler.Row]) {
	switch e.Type {
	case collection.Insert:
		fmt.Printf("+ %v\n", e.Value.Value)
	case collection.Update:
		fmt.Printf("~ %v\n", e.Value.Value)
	case collection.Delete:
		fmt.Printf("- %v\n", e.Previous.Value)
	}
}
