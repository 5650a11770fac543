// Package memory provides the in-memory implementation of the storage
// interfaces.
//
// One Store serves as the grant store, the access token store and the
// consent ledger. A single mutex guards all of them so that Reset is atomic
// with respect to every other operation. Grants and access tokens are
// evicted by timers scheduled on an injectable clock; an entry whose expiry
// has passed is treated as absent even if its timer has not fired.
//
// State is lost when the process exits.
//
// Example usage:
//
//	store := memory.New(time.Hour, time.Hour)
//	defer store.Stop()
//
//	srv, err := server.New(reg, store, store, store, store, cfg, logger)
package memory
