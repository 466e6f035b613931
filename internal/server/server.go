package server

import (
	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
)

// NewSession wires a fresh dispatcher and handle registry for one
// connected client, with db registered as the session's root Database
// handle (pipe id 1, by construction: it is the first Register call on
// an empty registry). workerLimit bounds how many handler calls this
// session runs concurrently.
func NewSession(db engine.Database, workerLimit int) (*rpc.Dispatcher, *registry.Registry, *registry.Handle) {
	reg := registry.New()
	d := rpc.New(reg, workerLimit)

	RegisterDatabase(d)
	RegisterView(d)
	RegisterIndex(d)
	RegisterCursor(d)
	RegisterTransaction(d)
	RegisterSorter(d)
	RegisterSnapshot(d)
	RegisterTable(d)
	RegisterQuery(d)
	RegisterScanner(d)
	RegisterUpdater(d)
	RegisterAccessor(d)

	root := NewDatabase(reg, db)
	return d, reg, root
}
