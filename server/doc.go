// Package server implements the OAuth 2.0 authorization code grant.
//
// Server composes the client registry, the consent ledger, the grant and
// access token stores and the token fountain into the grant flow:
//
//	Authorize   -> consent prompt, or grant code redirect
//	ApproveAuth -> grant code redirect, or access_denied redirect
//	Token       -> access token, single use per grant code
//	Reset       -> forget all consent and outstanding grants
//
// The package does no HTTP I/O. It receives request parameters as
// url.Values and returns results or typed errors, which the HTTP layer in
// the root package turns into responses.
//
// Example usage:
//
//	store := memory.New(time.Hour, time.Hour) // grant and token lifetimes
//	reg, _ := registry.Load("config.yaml", logger)
//
//	srv, err := server.New(reg, store, store, store, store, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := srv.Authorize(ctx, r.URL.Query())
package server
