// Package diag is a process-local registry of named health checks,
// mirrored off the diag.Diagnostics injection point threaded through
// cdc-sink's wire providers (every ProvideXxxPool call registers itself
// with a *diag.Diagnostics). A host process such as cmd/demo registers
// its checks here so it can expose status without the core depending
// on net/http or any particular transport.
package diag

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Check is a named health probe.
type Check func(ctx context.Context) error

// Diagnostics is a registry of named Checks.
type Diagnostics struct {
	mu     sync.Mutex
	checks map[string]Check
}

// New constructs an empty Diagnostics registry.
func New() *Diagnostics {
	return &Diagnostics{checks: make(map[string]Check)}
}

// Register associates name with check. It is an error to register the
// same name twice.
func (d *Diagnostics) Register(name string, check Check) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, found := d.checks[name]; found {
		return errors.Errorf("diagnostic %q already registered", name)
	}
	d.checks[name] = check
	return nil
}

// Unregister removes a previously registered check, if present.
func (d *Diagnostics) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.checks, name)
}

// RunAll executes every registered check and returns a map of name to
// error (nil for a passing check).
func (d *Diagnostics) RunAll(ctx context.Context) map[string]error {
	d.mu.Lock()
	snapshot := make(map[string]Check, len(d.checks))
	for name, check := range d.checks {
		snapshot[name] = check
	}
	d.mu.Unlock()

	results := make(map[string]error, len(snapshot))
	for name, check := range snapshot {
		results[name] = check(ctx)
	}
	return results
}
