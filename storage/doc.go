// Package storage provides the interfaces for authorization grant state.
//
// The storage package defines the core storage interfaces used by the server:
//   - ConsentLedger: standing (client, scope) approvals from the resource owner
//   - GrantStore: single-use, time-limited grant codes
//   - AccessTokenStore: time-limited access token records
//   - Resetter: atomic clearing of consent and grants
//
// State is held in process only. Implementations are provided in subpackages:
//   - storage/memory: mutex-guarded in-memory store with timer-driven eviction
package storage
